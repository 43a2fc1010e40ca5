package scanner

import (
	"context"
	"sort"
	"strings"
	"time"

	"RunnerRadar/internal/collector"
	"RunnerRadar/internal/dexscreener"
	"RunnerRadar/internal/model"
)

const (
	maxWhyFiltered = 400
	maxErrors      = 50
)

// Engine runs scan cycles. It keeps no state between cycles.
type Engine struct {
	ChainID string
	Now     func() time.Time

	// Progress, when set, is forwarded to the fetcher.
	Progress func(done, total int)
}

// NewEngine creates a new Engine for chainID.
func NewEngine(chainID string) *Engine {
	if chainID == "" {
		chainID = dexscreener.DefaultChainID
	}
	return &Engine{ChainID: chainID, Now: time.Now}
}

// RunCycle fetches candidates and returns those that pass every filter,
// ranked. cfg and bl are not modified. A fetch failure yields an empty
// result with status unavailable.
func (e *Engine) RunCycle(ctx context.Context, cfg *model.ScanConfig, bl *model.Blacklist, f collector.Fetcher) (res model.ScanResult) {
	now := e.now()
	cfg = cfg.Clone()
	res = model.ScanResult{
		Status:    model.StatusNoMatches,
		Rows:      []model.TokenCandidate{},
		StartedAt: now,
		Counts:    make(map[string]int),
		Warnings:  cfg.Normalize(),
	}
	defer func() { res.Duration = e.now().Sub(now) }()

	q := collector.QueryFromConfig(cfg, e.ChainID)
	q.Progress = e.Progress
	candidates, rep, err := f.FetchCandidates(ctx, q)
	var why []model.FilteredReason
	if rep != nil {
		for k, v := range rep.Counts {
			res.Counts[k] = v
		}
		res.Errors = append(res.Errors, rep.Errors...)
		why = append(why, rep.WhyFiltered...)
	}
	if err != nil {
		res.Status = model.StatusUnavailable
		res.FailureKind = string(dexscreener.KindOf(err))
		if res.FailureKind == "" {
			res.FailureKind = string(dexscreener.KindNetwork)
		}
		res.StatusDetail = err.Error()
		res.Errors = capStrings(res.Errors, maxErrors)
		return res
	}

	reject := func(c *model.TokenCandidate, reason string) {
		if cfg.VerboseDebug {
			why = append(why, model.FilteredReason{TokenAddress: c.TokenAddress, Symbol: c.Symbol, Reason: reason})
		}
	}

	var rows []model.TokenCandidate
	for i := range candidates {
		c := candidates[i]
		if bl.Contains(c.TokenAddress) {
			res.Blacklisted++
			continue
		}
		if reason := thresholdReason(&c, cfg.Thresholds); reason != "" {
			res.Counts["below_thresholds"]++
			reject(&c, reason)
			continue
		}

		c.Score, c.SpikeScore = Score(&c, cfg.PumpMode)

		if cfg.AntiDead && !passesAntiDead(&c, cfg) {
			reject(&c, "anti_dead")
			continue
		}
		if cfg.TrendingFilters {
			if reasons := trendingReasons(&c, cfg); len(reasons) > 0 {
				reject(&c, strings.Join(reasons, ","))
				continue
			}
		}

		if len(cfg.Modes) == 0 {
			rows = append(rows, c)
			continue
		}
		matched := false
		for _, mode := range cfg.Modes {
			if !ThresholdsFor(mode, cfg.PumpMode).qualifies(&c) {
				continue
			}
			row := c
			row.Sources = append([]model.Source(nil), c.Sources...)
			row.Mode = mode
			rows = append(rows, row)
			matched = true
		}
		if !matched {
			reject(&c, "no_mode_match")
		}
	}
	res.Counts["blacklisted"] = res.Blacklisted
	res.Counts["rows_after_filters"] = len(rows)

	rows = Rank(rows, cfg.RankBy)
	if cfg.UniquePerToken {
		rows = uniquePerToken(rows)
	}
	if len(rows) > cfg.TopN {
		rows = rows[:cfg.TopN]
	}

	if cfg.IncludeOrders && len(rows) > 0 {
		if oc, ok := f.(collector.OrderChecker); ok {
			oc.MarkDexPaid(ctx, rows)
		}
	}

	res.Counts["rows_final"] = len(rows)
	if len(rows) > 0 {
		res.Rows = rows
		res.Status = model.StatusOK
	}
	if cfg.VerboseDebug {
		if len(why) > maxWhyFiltered {
			why = why[:maxWhyFiltered]
		}
		res.WhyFiltered = why
	}
	res.Errors = capStrings(res.Errors, maxErrors)
	return res
}

// Rank sorts rows by the rank key, then score, then liquidity, descending.
// Remaining ties are broken by address and mode so the order is stable
// across runs.
func Rank(rows []model.TokenCandidate, rankBy string) []model.TokenCandidate {
	primary := func(c *model.TokenCandidate) float64 {
		switch rankBy {
		case model.RankByScore:
			return c.Score
		case model.RankByVolume:
			return c.Vol24h
		case model.RankByLiquidity:
			return c.LiquidityUSD
		default:
			return c.SpikeScore
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if pa, pb := primary(a), primary(b); pa != pb {
			return pa > pb
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.LiquidityUSD != b.LiquidityUSD {
			return a.LiquidityUSD > b.LiquidityUSD
		}
		if ka, kb := a.Key(), b.Key(); ka != kb {
			return ka < kb
		}
		return modeIndex(a.Mode) < modeIndex(b.Mode)
	})
	return rows
}

// uniquePerToken keeps the first, best ranked, row of each token.
func uniquePerToken(rows []model.TokenCandidate) []model.TokenCandidate {
	seen := make(map[string]bool, len(rows))
	out := rows[:0]
	for _, r := range rows {
		k := r.Key()
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

func modeIndex(mode string) int {
	for i, m := range model.AllModes {
		if m == mode {
			return i
		}
	}
	return len(model.AllModes)
}

func capStrings(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}
