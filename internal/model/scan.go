package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Scan modes, from most to least permissive on age.
const (
	ModeUltraEarly  = "ultra_early"
	ModeEarlyStrict = "early_strict"
	ModeEarly       = "early"
	ModeStrict      = "strict"
	ModeDegen       = "degen"
)

// AllModes lists every known scan mode in display order.
var AllModes = []string{ModeUltraEarly, ModeEarlyStrict, ModeEarly, ModeStrict, ModeDegen}

// Ranking keys.
const (
	RankBySpike     = "spike"
	RankByScore     = "score"
	RankByVolume    = "volume"
	RankByLiquidity = "liquidity"
)

// Thresholds are the hard per-candidate floors. Every comparison is inclusive.
type Thresholds struct {
	MinLiquidityUSD float64 `json:"min_liquidity_usd"`
	MinVolume24hUSD float64 `json:"min_volume_24h_usd"`
	MinAgeMinutes   float64 `json:"min_age_minutes"`
	RequirePaid     bool    `json:"require_paid"`
}

// ScanConfig holds every user-tunable setting persisted in scanner_config.json.
type ScanConfig struct {
	Thresholds Thresholds `json:"thresholds"`

	Modes          []string `json:"modes"`
	TopN           int      `json:"top_n"`
	CandidatesMax  int      `json:"candidates_max"`
	AntiDead       bool     `json:"anti_dead"`
	UniquePerToken bool     `json:"unique_per_token"`
	PumpMode       bool     `json:"pump_mode"`
	RankBy         string   `json:"rank_by"`
	VerboseDebug   bool     `json:"verbose_debug"`

	IncludeBoosts   bool `json:"include_boosts"`
	IncludeProfiles bool `json:"include_profiles"`
	IncludeCTO      bool `json:"include_cto"`
	IncludeAds      bool `json:"include_ads"`
	IncludeOrders   bool `json:"include_orders"`

	TrendingFilters      bool    `json:"trending_filters"`
	TrendingMinLiquidity float64 `json:"trending_min_liquidity"`
	TrendingMinVol1h     float64 `json:"trending_min_vol1h"`
	TrendingMinVol5m     float64 `json:"trending_min_vol5m"`
	TrendingMinNetBuy5m  int     `json:"trending_min_netbuy5m"`
	SpikeScoreMin        float64 `json:"spike_score_min"`

	Wallet         string   `json:"wallet"`
	RPC            string   `json:"rpc"`
	BudgetPct      float64  `json:"budget_pct"`
	VisibleColumns []string `json:"visible_columns"`
	MaxDisplayRows int      `json:"max_display_rows"`
	LastScanTS     string   `json:"last_scan_ts,omitempty"`
}

// DefaultScanConfig returns the settings used on first run.
func DefaultScanConfig() *ScanConfig {
	return &ScanConfig{
		Modes:                []string{ModeEarlyStrict, ModeEarly, ModeStrict, ModeDegen},
		TopN:                 20,
		CandidatesMax:        250,
		AntiDead:             true,
		UniquePerToken:       true,
		PumpMode:             true,
		RankBy:               RankBySpike,
		IncludeBoosts:        true,
		IncludeProfiles:      true,
		IncludeCTO:           true,
		TrendingFilters:      true,
		TrendingMinLiquidity: 15000,
		TrendingMinVol1h:     1000,
		TrendingMinVol5m:     500,
		TrendingMinNetBuy5m:  2,
		SpikeScoreMin:        0.25,
		RPC:                  "https://api.mainnet-beta.solana.com",
		BudgetPct:            7,
		VisibleColumns:       []string{},
		MaxDisplayRows:       200,
	}
}

// Clone returns a deep copy.
func (c *ScanConfig) Clone() *ScanConfig {
	out := *c
	out.Modes = append([]string(nil), c.Modes...)
	out.VisibleColumns = append([]string(nil), c.VisibleColumns...)
	return &out
}

// Normalize clamps out-of-range values in place and returns one warning per
// adjusted field. It never fails.
func (c *ScanConfig) Normalize() []string {
	var warnings []string
	clampF := func(name string, v *float64) {
		if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
			warnings = append(warnings, fmt.Sprintf("%s=%v clamped to 0", name, *v))
			*v = 0
		}
	}
	clampF("min_liquidity_usd", &c.Thresholds.MinLiquidityUSD)
	clampF("min_volume_24h_usd", &c.Thresholds.MinVolume24hUSD)
	clampF("min_age_minutes", &c.Thresholds.MinAgeMinutes)
	clampF("trending_min_liquidity", &c.TrendingMinLiquidity)
	clampF("trending_min_vol1h", &c.TrendingMinVol1h)
	clampF("trending_min_vol5m", &c.TrendingMinVol5m)
	clampF("spike_score_min", &c.SpikeScoreMin)
	clampF("budget_pct", &c.BudgetPct)
	if c.BudgetPct > 100 {
		warnings = append(warnings, fmt.Sprintf("budget_pct=%v clamped to 100", c.BudgetPct))
		c.BudgetPct = 100
	}
	if c.TrendingMinNetBuy5m < 0 {
		warnings = append(warnings, fmt.Sprintf("trending_min_netbuy5m=%d clamped to 0", c.TrendingMinNetBuy5m))
		c.TrendingMinNetBuy5m = 0
	}
	if c.TopN < 1 {
		warnings = append(warnings, fmt.Sprintf("top_n=%d clamped to 1", c.TopN))
		c.TopN = 1
	}
	if c.CandidatesMax < 1 {
		warnings = append(warnings, fmt.Sprintf("candidates_max=%d clamped to 1", c.CandidatesMax))
		c.CandidatesMax = 1
	}
	if c.MaxDisplayRows < 0 {
		warnings = append(warnings, fmt.Sprintf("max_display_rows=%d clamped to 0", c.MaxDisplayRows))
		c.MaxDisplayRows = 0
	}

	modes := make([]string, 0, len(c.Modes))
	seen := make(map[string]bool)
	for _, m := range c.Modes {
		m = strings.ToLower(strings.TrimSpace(m))
		if !IsKnownMode(m) {
			warnings = append(warnings, fmt.Sprintf("unknown mode %q dropped", m))
			continue
		}
		if !seen[m] {
			seen[m] = true
			modes = append(modes, m)
		}
	}
	c.Modes = modes

	switch c.RankBy {
	case RankBySpike, RankByScore, RankByVolume, RankByLiquidity:
	case "":
		c.RankBy = RankBySpike
	default:
		warnings = append(warnings, fmt.Sprintf("unknown rank_by %q, using %s", c.RankBy, RankBySpike))
		c.RankBy = RankBySpike
	}
	if c.VisibleColumns == nil {
		c.VisibleColumns = []string{}
	}
	return warnings
}

// IsKnownMode reports whether m names a scan mode.
func IsKnownMode(m string) bool {
	for _, x := range AllModes {
		if x == m {
			return true
		}
	}
	return false
}

// ScanStatus distinguishes an empty result caused by missing data from one
// where data arrived but nothing matched.
type ScanStatus string

const (
	StatusOK          ScanStatus = "ok"
	StatusNoMatches   ScanStatus = "no_matches"
	StatusUnavailable ScanStatus = "unavailable"
)

// FilteredReason explains why a token was dropped during a cycle.
type FilteredReason struct {
	TokenAddress string `json:"tokenAddress"`
	Symbol       string `json:"symbol,omitempty"`
	Reason       string `json:"reason"`
}

// ScanResult is the ranked output of one scan cycle.
type ScanResult struct {
	Status       ScanStatus       `json:"status"`
	Rows         []TokenCandidate `json:"rows"`
	StartedAt    time.Time        `json:"startedAt"`
	Duration     time.Duration    `json:"durationNs"`
	Counts       map[string]int   `json:"counts"`
	WhyFiltered  []FilteredReason `json:"whyFiltered,omitempty"`
	Errors       []string         `json:"errors,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
	Blacklisted  int              `json:"blacklisted"`
	FailureKind  string           `json:"failureKind,omitempty"`
	StatusDetail string           `json:"statusDetail,omitempty"`
}

// Message renders a one-line summary for logs and notifications.
func (r *ScanResult) Message() string {
	switch r.Status {
	case StatusUnavailable:
		if r.StatusDetail != "" {
			return "no data available: " + r.StatusDetail
		}
		return "no data available"
	case StatusNoMatches:
		return "scan finished, no token passes the filters"
	}
	msg := fmt.Sprintf("scan finished, %d result(s)", len(r.Rows))
	if r.Blacklisted > 0 {
		msg += fmt.Sprintf(" (%d hidden by blacklist)", r.Blacklisted)
	}
	return msg
}
