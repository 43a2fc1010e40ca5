package dexscreener

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number decodes a JSON number, a numeric string ("1,234.5" included) or null.
// Anything unparseable or non-finite decodes to zero rather than failing the
// whole record.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*n = 0
			return nil
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		*n = parseFinite(s)
		return nil
	}
	if bytes.Equal(b, []byte("true")) {
		*n = 1
		return nil
	}
	if bytes.Equal(b, []byte("false")) {
		*n = 0
		return nil
	}
	*n = parseFinite(string(b))
	return nil
}

// parseFinite returns zero for anything ParseFloat rejects and for NaN or
// infinities, which it accepts.
func parseFinite(s string) Number {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return Number(f)
}

// Float returns the value as float64.
func (n Number) Float() float64 { return float64(n) }

// Int truncates the value toward zero, clamped to the int32 range.
func (n Number) Int() int {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

// BoostItem is one entry of /token-boosts/{latest,top}/v1. Field names have
// drifted across API versions, so every known alias is decoded.
type BoostItem struct {
	ChainID      string  `json:"chainId"`
	TokenAddress string  `json:"tokenAddress"`
	URL          string  `json:"url"`
	Amount       *Number `json:"amount"`
	BoostAmount  *Number `json:"boostAmount"`
	ActiveBoosts *Number `json:"activeBoosts"`
	TotalAmount  *Number `json:"totalAmount"`
	BoostTotal   *Number `json:"boostTotal"`
	TotalBoosts  *Number `json:"totalBoosts"`
	Type         string  `json:"type"`
	BoostType    string  `json:"boostType"`
}

// BoostAmountValue resolves the active boost amount across aliases.
func (b *BoostItem) BoostAmountValue() float64 {
	return firstNumber(b.Amount, b.BoostAmount, b.ActiveBoosts)
}

// BoostTotalValue resolves the total boost amount, defaulting to the active amount.
func (b *BoostItem) BoostTotalValue() float64 {
	if b.TotalAmount == nil && b.BoostTotal == nil && b.TotalBoosts == nil {
		return b.BoostAmountValue()
	}
	return firstNumber(b.TotalAmount, b.BoostTotal, b.TotalBoosts)
}

// BoostTypeValue returns the boost type under either alias.
func (b *BoostItem) BoostTypeValue() string {
	if b.Type != "" {
		return b.Type
	}
	return b.BoostType
}

func firstNumber(ns ...*Number) float64 {
	for _, n := range ns {
		if n != nil {
			return n.Float()
		}
	}
	return 0
}

// AdItem is one entry of /ads/latest/v1.
type AdItem struct {
	ChainID       string  `json:"chainId"`
	TokenAddress  string  `json:"tokenAddress"`
	URL           string  `json:"url"`
	Type          string  `json:"type"`
	Date          string  `json:"date"`
	DurationHours *Number `json:"durationHours"`
}

// ProfileItem is one entry of /token-profiles/latest/v1.
type ProfileItem struct {
	ChainID      string            `json:"chainId"`
	TokenAddress string            `json:"tokenAddress"`
	URL          string            `json:"url"`
	Icon         string            `json:"icon"`
	Header       string            `json:"header"`
	Description  string            `json:"description"`
	Links        []json.RawMessage `json:"links"`
}

// TakeoverItem is one entry of /community-takeovers/latest/v1.
type TakeoverItem struct {
	ChainID      string            `json:"chainId"`
	TokenAddress string            `json:"tokenAddress"`
	URL          string            `json:"url"`
	Description  string            `json:"description"`
	Links        []json.RawMessage `json:"links"`
}

// Order is one paid order from /orders/v1.
type Order struct {
	Type             string `json:"type"`
	Status           string `json:"status"`
	PaymentTimestamp Number `json:"paymentTimestamp"`
}

// Token is the base or quote side of a pair.
type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// BuysSells counts transactions in one window.
type BuysSells struct {
	Buys  Number `json:"buys"`
	Sells Number `json:"sells"`
}

// Windows holds a metric for the m5/h1/h6/h24 windows.
type Windows struct {
	M5  Number `json:"m5"`
	H1  Number `json:"h1"`
	H6  Number `json:"h6"`
	H24 Number `json:"h24"`
}

// Txns holds buy/sell counts per window.
type Txns struct {
	M5  BuysSells `json:"m5"`
	H1  BuysSells `json:"h1"`
	H6  BuysSells `json:"h6"`
	H24 BuysSells `json:"h24"`
}

// Liquidity of a pair. The API sends null for some pools.
type Liquidity struct {
	USD   Number `json:"usd"`
	Base  Number `json:"base"`
	Quote Number `json:"quote"`
}

// Pair is one trading pair from /tokens/v1 or /token-pairs/v1.
type Pair struct {
	ChainID       string     `json:"chainId"`
	DexID         string     `json:"dexId"`
	URL           string     `json:"url"`
	PairAddress   string     `json:"pairAddress"`
	BaseToken     Token      `json:"baseToken"`
	QuoteToken    Token      `json:"quoteToken"`
	PriceNative   Number     `json:"priceNative"`
	PriceUSD      Number     `json:"priceUsd"`
	Txns          Txns       `json:"txns"`
	Volume        Windows    `json:"volume"`
	PriceChange   Windows    `json:"priceChange"`
	Liquidity     *Liquidity `json:"liquidity"`
	FDV           Number     `json:"fdv"`
	MarketCap     Number     `json:"marketCap"`
	PairCreatedAt Number     `json:"pairCreatedAt"`
}

// LiquidityUSD returns the USD liquidity, zero when absent.
func (p *Pair) LiquidityUSD() float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.USD.Float()
}

// NormalizeChainID maps common aliases onto the API's chain id.
func NormalizeChainID(chainID string) string {
	c := strings.ToLower(strings.TrimSpace(chainID))
	switch c {
	case "sol", "solana-mainnet", "mainnet", "sol-mainnet":
		return "solana"
	}
	return c
}
