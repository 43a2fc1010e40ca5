package dexscreener

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL, Timeout: 2 * time.Second}), srv
}

func TestNumber_Lenient(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{`12.5`, 12.5},
		{`"1,234.5"`, 1234.5},
		{`null`, 0},
		{`"abc"`, 0},
		{`true`, 1},
		{`{}`, 0},
		{`"NaN"`, 0},
		{`"Inf"`, 0},
		{`"-Infinity"`, 0},
		{`"+Inf"`, 0},
		{`1e400`, 0},
	}
	for _, tt := range tests {
		var n Number
		require.NoError(t, json.Unmarshal([]byte(tt.in), &n), tt.in)
		assert.Equal(t, tt.want, n.Float(), tt.in)
	}
}

func TestNumber_IntClamps(t *testing.T) {
	tests := []struct {
		in   Number
		want int
	}{
		{Number(12.9), 12},
		{Number(-3.7), -3},
		{Number(1e20), math.MaxInt32},
		{Number(-1e20), math.MinInt32},
		{Number(math.NaN()), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.Int(), "%v", float64(tt.in))
	}
}

func TestPair_NonFiniteStringsDecodeToZero(t *testing.T) {
	var p Pair
	require.NoError(t, json.Unmarshal([]byte(`{"liquidity":{"usd":"NaN"},"volume":{"h24":"Infinity"},"priceUsd":"-Inf"}`), &p))
	assert.Equal(t, 0.0, p.LiquidityUSD())
	assert.Equal(t, 0.0, p.Volume.H24.Float())
}

func TestBoostItem_Aliases(t *testing.T) {
	var b BoostItem
	require.NoError(t, json.Unmarshal([]byte(`{"chainId":"solana","tokenAddress":"AAA","activeBoosts":"50","boostType":"x10"}`), &b))
	assert.Equal(t, 50.0, b.BoostAmountValue())
	assert.Equal(t, 50.0, b.BoostTotalValue(), "total defaults to amount")
	assert.Equal(t, "x10", b.BoostTypeValue())

	b = BoostItem{}
	require.NoError(t, json.Unmarshal([]byte(`{"amount":10,"totalAmount":500}`), &b))
	assert.Equal(t, 10.0, b.BoostAmountValue())
	assert.Equal(t, 500.0, b.BoostTotalValue())
}

func TestUnwrapList(t *testing.T) {
	keys := []string{"data", "pairs"}
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{"bare array", `[{"a":1},{"a":2}]`, 2, false},
		{"wrapped", `{"pairs":[{"a":1}]}`, 1, false},
		{"null envelope", `{"pairs":null}`, 0, false},
		{"single record", `{"chainId":"solana","tokenAddress":"AAA"}`, 1, false},
		{"unknown object", `{"foo":"bar"}`, 0, true},
		{"scalar", `42`, 0, true},
		{"empty", ``, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unwrapList([]byte(tt.body), keys)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestLatestBoosts_SkipsBadItems(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token-boosts/latest/v1", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(`[{"chainId":"solana","tokenAddress":"AAA","amount":10},{"chainId":5},{"chainId":"solana","tokenAddress":"BBB"}]`))
	})

	var observed []CallDebug
	c.OnCall = func(dbg CallDebug, err error) { observed = append(observed, dbg) }

	items, dbg, err := c.LatestBoosts(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "AAA", items[0].TokenAddress)
	assert.Equal(t, 1, dbg.Skipped)
	assert.Equal(t, http.StatusOK, dbg.Status)
	assert.Equal(t, "token_boosts_latest", dbg.Endpoint)
	assert.Len(t, observed, 1)
}

func TestGet_StatusError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 500), http.StatusTooManyRequests)
	})

	_, dbg, err := c.LatestAds(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindStatus, KindOf(err))
	assert.Equal(t, http.StatusTooManyRequests, dbg.Status)
	assert.Len(t, dbg.Snippet, snippetLen)
	assert.NotEmpty(t, dbg.Error)
}

func TestGet_Malformed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	})

	_, _, err := c.LatestCommunityTakeovers(context.Background())
	assert.Equal(t, KindMalformed, KindOf(err))
}

func TestGet_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	c := NewClient(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	_, _, err := c.LatestProfiles(context.Background())
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestGet_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()
	c := NewClient(Options{BaseURL: base, Timeout: time.Second})

	_, _, err := c.LatestBoosts(context.Background())
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestPairsByTokens(t *testing.T) {
	var gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`[{"pairAddress":"P1","baseToken":{"address":"AAA"},"liquidity":{"usd":"1000"}}]`))
	})

	pairs, _, err := c.PairsByTokens(context.Background(), "sol", []string{"AAA", "aaa", " BBB ", ""})
	require.NoError(t, err)
	assert.Equal(t, "/tokens/v1/solana/AAA,BBB", gotPath)
	require.Len(t, pairs, 1)
	assert.Equal(t, 1000.0, pairs[0].LiquidityUSD())

	gotPath = ""
	pairs, _, err = c.PairsByTokens(context.Background(), "solana", nil)
	require.NoError(t, err)
	assert.Empty(t, pairs)
	assert.Empty(t, gotPath, "no request for an empty batch")

	many := make([]string, MaxBatchAddresses+1)
	for i := range many {
		many[i] = strings.Repeat("A", i+1)
	}
	_, _, err = c.PairsByTokens(context.Background(), "solana", many)
	assert.Error(t, err)
}

func TestPair_NullLiquidity(t *testing.T) {
	var p Pair
	require.NoError(t, json.Unmarshal([]byte(`{"pairAddress":"P","liquidity":null,"pairCreatedAt":null}`), &p))
	assert.Equal(t, 0.0, p.LiquidityUSD())
	assert.Equal(t, 0.0, p.PairCreatedAt.Float())
}

func TestNormalizeChainID(t *testing.T) {
	assert.Equal(t, "solana", NormalizeChainID(" SOL "))
	assert.Equal(t, "solana", NormalizeChainID("solana"))
	assert.Equal(t, "base", NormalizeChainID("Base"))
}
