package model

import (
	"strings"
	"time"
)

// Source identifies the paid listing feed a candidate was discovered in.
type Source string

const (
	SourceBoosts   Source = "boosts"
	SourceAds      Source = "ads"
	SourceCTO      Source = "cto"
	SourceProfiles Source = "profiles"
)

// Priority orders sources when two feeds report the same token.
func (s Source) Priority() int {
	switch s {
	case SourceBoosts:
		return 3
	case SourceAds:
		return 2
	case SourceCTO:
		return 1
	default:
		return 0
	}
}

// TokenCandidate is one scanned token together with its best trading pair.
// It is rebuilt on every scan cycle and never persisted as such.
type TokenCandidate struct {
	TokenAddress string `json:"tokenAddress"`
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	PairAddress  string `json:"pairAddress"`
	DexID        string `json:"dexId"`

	PriceUSD     float64 `json:"priceUsd"`
	LiquidityUSD float64 `json:"liquidityUsd"`
	MarketCap    float64 `json:"marketCap"`
	FDV          float64 `json:"fdv"`

	Vol5m  float64 `json:"vol5m"`
	Vol1h  float64 `json:"vol1h"`
	Vol24h float64 `json:"vol24h"`

	Buys5m   int `json:"buys5m"`
	Sells5m  int `json:"sells5m"`
	NetBuy5m int `json:"netBuy5m"`

	ChangeM5  float64 `json:"m5pct"`
	ChangeH1  float64 `json:"h1pct"`
	ChangeH6  float64 `json:"h6pct"`
	ChangeH24 float64 `json:"h24pct"`

	PairCreatedAt time.Time     `json:"pairCreatedAt"`
	Age           time.Duration `json:"ageNs"`

	// Turnover1h is 1h volume divided by liquidity, zero without liquidity.
	Turnover1h float64 `json:"turnover_1h_over_liq"`

	Paid        bool     `json:"paid"`
	Source      Source   `json:"source"`
	Sources     []Source `json:"sources"`
	BoostAmount float64  `json:"boostAmount"`
	BoostTotal  float64  `json:"boostTotal"`
	BoostType   string   `json:"boostType,omitempty"`
	IsCTO       bool     `json:"isCTO"`

	ProfileURL         string `json:"profileUrl,omitempty"`
	ProfileDescription string `json:"profileDescription,omitempty"`
	ProfileLinksCount  int    `json:"profileLinksCount"`

	URLDexscreener string `json:"urlDexscreener"`
	URLGMGN        string `json:"urlGMGN"`

	// Filled in by the scan engine.
	Score      float64 `json:"score"`
	SpikeScore float64 `json:"spike_score"`
	Mode       string  `json:"mode,omitempty"`
	DexPaid    bool    `json:"isDexPaid"`
	OrderCount int     `json:"orders_count"`
}

// Key returns the case-folded address used for merging and deduplication.
func (c *TokenCandidate) Key() string {
	return strings.ToLower(strings.TrimSpace(c.TokenAddress))
}

// AgeMinutes reports the pair age in minutes.
func (c *TokenCandidate) AgeMinutes() float64 {
	return c.Age.Minutes()
}

// HasSource reports whether s is among the candidate's sources.
func (c *TokenCandidate) HasSource(s Source) bool {
	for _, x := range c.Sources {
		if x == s {
			return true
		}
	}
	return false
}
