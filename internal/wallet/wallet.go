// Package wallet reads SOL balances over Solana JSON-RPC.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	defaultTimeout = 10 * time.Second
	lamportsPerSOL = 1e9
)

// ErrNoWallet is returned when no wallet address is configured.
var ErrNoWallet = errors.New("no wallet configured")

// Balance returns the SOL balance of wallet as seen by rpcURL.
func Balance(ctx context.Context, rpcURL, wallet string) (float64, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return 0, ErrNoWallet
	}
	pk, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return 0, fmt.Errorf("invalid wallet address: %w", err)
	}
	if rpcURL == "" {
		rpcURL = rpc.MainNetBeta_RPC
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	client := rpc.New(rpcURL)
	out, err := client.GetBalance(ctx, pk, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return float64(out.Value) / lamportsPerSOL, nil
}

// BudgetIndication returns the SOL amount of one trade sized at pct percent
// of balance.
func BudgetIndication(balance, pct float64) float64 {
	if balance <= 0 || pct <= 0 {
		return 0
	}
	if pct > 100 {
		pct = 100
	}
	return balance * pct / 100
}
