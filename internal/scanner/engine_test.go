package scanner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RunnerRadar/internal/collector"
	"RunnerRadar/internal/dexscreener"
	"RunnerRadar/internal/model"
)

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	e := NewEngine("solana")
	e.Now = func() time.Time { return fixedNow }
	return e
}

// plainConfig disables the heuristic filters so only the hard thresholds apply.
func plainConfig() *model.ScanConfig {
	cfg := model.DefaultScanConfig()
	cfg.Modes = nil
	cfg.AntiDead = false
	cfg.TrendingFilters = false
	cfg.RankBy = model.RankByVolume
	return cfg
}

func cand(addr string, liq, vol24 float64) model.TokenCandidate {
	return model.TokenCandidate{
		TokenAddress: addr,
		Symbol:       addr,
		LiquidityUSD: liq,
		Vol24h:       vol24,
		Age:          2 * time.Hour,
		Source:       model.SourceBoosts,
		Sources:      []model.Source{model.SourceBoosts},
		Paid:         true,
	}
}

func addrs(rows []model.TokenCandidate) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.TokenAddress
	}
	return out
}

func TestRunCycle_BlacklistScenario(t *testing.T) {
	cfg := plainConfig()
	cfg.Thresholds.MinVolume24hUSD = 100
	f := &collector.MockFetcher{Candidates: []model.TokenCandidate{cand("AAA", 0, 1000), cand("BBB", 0, 500)}}

	res := newTestEngine().RunCycle(context.Background(), cfg, model.NewBlacklist("AAA"), f)

	assert.Equal(t, model.StatusOK, res.Status)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "BBB", res.Rows[0].TokenAddress)
	assert.Equal(t, 500.0, res.Rows[0].Vol24h)
	assert.Equal(t, 1, res.Blacklisted)
}

func TestRunCycle_NetworkFailureIsUnavailable(t *testing.T) {
	f := &collector.MockFetcher{Err: &dexscreener.FetchError{Kind: dexscreener.KindTimeout, URL: "x", Err: errors.New("deadline")}}

	res := newTestEngine().RunCycle(context.Background(), plainConfig(), model.NewBlacklist(), f)

	assert.Equal(t, model.StatusUnavailable, res.Status)
	assert.Equal(t, "timeout", res.FailureKind)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
	assert.Contains(t, res.Message(), "no data available")
}

func TestRunCycle_NoMatches(t *testing.T) {
	cfg := plainConfig()
	cfg.Thresholds.MinLiquidityUSD = 1e9
	f := &collector.MockFetcher{Candidates: []model.TokenCandidate{cand("AAA", 10, 10)}}

	res := newTestEngine().RunCycle(context.Background(), cfg, nil, f)
	assert.Equal(t, model.StatusNoMatches, res.Status)
	assert.Empty(t, res.Rows)
}

func TestRunCycle_ThresholdBoundaryInclusive(t *testing.T) {
	cfg := plainConfig()
	cfg.Thresholds = model.Thresholds{MinLiquidityUSD: 1000, MinVolume24hUSD: 500, MinAgeMinutes: 120, RequirePaid: true}

	at := cand("EXACT", 1000, 500)
	below := cand("BELOW", 999.99, 500)
	young := cand("YOUNG", 1000, 500)
	young.Age = 119 * time.Minute
	unpaid := cand("UNPAID", 1000, 500)
	unpaid.Paid = false
	f := &collector.MockFetcher{Candidates: []model.TokenCandidate{at, below, young, unpaid}}

	res := newTestEngine().RunCycle(context.Background(), cfg, nil, f)
	assert.Equal(t, []string{"EXACT"}, addrs(res.Rows))
	assert.Equal(t, 3, res.Counts["below_thresholds"])
}

func TestRunCycle_ZeroThresholdsAdmitAll(t *testing.T) {
	cfg := plainConfig()
	cfg.Thresholds = model.Thresholds{}
	zero := cand("ZERO", 0, 0)
	zero.Age = 0
	zero.Paid = false
	f := &collector.MockFetcher{Candidates: []model.TokenCandidate{zero, cand("BIG", 1e6, 1e6)}}

	res := newTestEngine().RunCycle(context.Background(), cfg, nil, f)
	assert.Equal(t, []string{"BIG", "ZERO"}, addrs(res.Rows))
}

func TestRunCycle_NegativeConfigIsClamped(t *testing.T) {
	cfg := plainConfig()
	cfg.Thresholds.MinLiquidityUSD = -5
	cfg.TopN = -1
	f := &collector.MockFetcher{Candidates: []model.TokenCandidate{cand("A", 0, 1), cand("B", 0, 2)}}

	res := newTestEngine().RunCycle(context.Background(), cfg, nil, f)
	assert.Equal(t, []string{"B"}, addrs(res.Rows), "top_n clamps to 1")
	assert.Len(t, res.Warnings, 2)
	assert.Equal(t, -5.0, cfg.Thresholds.MinLiquidityUSD, "caller config untouched")
}

func TestRunCycle_Idempotent(t *testing.T) {
	cfg := model.DefaultScanConfig()
	cfg.AntiDead = false
	cands := randomCandidates(rand.New(rand.NewSource(7)), 60)
	e := newTestEngine()

	first := e.RunCycle(context.Background(), cfg, model.NewBlacklist(), &collector.MockFetcher{Candidates: cands})
	second := e.RunCycle(context.Background(), cfg, model.NewBlacklist(), &collector.MockFetcher{Candidates: cands})
	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, first.Status, second.Status)
}

func TestRunCycle_OutputRespectsBlacklistAndThresholds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	e := newTestEngine()
	for round := 0; round < 50; round++ {
		cands := randomCandidates(rng, 40)
		bl := model.NewBlacklist()
		for _, c := range cands {
			if rng.Intn(4) == 0 {
				bl.Add(c.TokenAddress)
			}
		}
		cfg := model.DefaultScanConfig()
		cfg.Modes = nil
		cfg.TopN = 100
		cfg.AntiDead = rng.Intn(2) == 0
		cfg.TrendingFilters = rng.Intn(2) == 0
		cfg.Thresholds = model.Thresholds{
			MinLiquidityUSD: float64(rng.Intn(50000)),
			MinVolume24hUSD: float64(rng.Intn(50000)),
			MinAgeMinutes:   float64(rng.Intn(600)),
			RequirePaid:     rng.Intn(2) == 0,
		}

		res := e.RunCycle(context.Background(), cfg, bl, &collector.MockFetcher{Candidates: cands})
		for _, r := range res.Rows {
			assert.False(t, bl.Contains(r.TokenAddress), "round %d: %s is blacklisted", round, r.TokenAddress)
			assert.GreaterOrEqual(t, r.LiquidityUSD, cfg.Thresholds.MinLiquidityUSD)
			assert.GreaterOrEqual(t, r.Vol24h, cfg.Thresholds.MinVolume24hUSD)
			assert.GreaterOrEqual(t, r.AgeMinutes(), cfg.Thresholds.MinAgeMinutes)
			if cfg.Thresholds.RequirePaid {
				assert.True(t, r.Paid || r.DexPaid)
			}
		}
	}
}

func TestRunCycle_ModesAndUniquePerToken(t *testing.T) {
	c := cand("RUNNER", 20000, 50000)
	c.Vol5m = 300
	c.Vol1h = 5000
	c.NetBuy5m = 5
	c.ChangeM5 = 8
	c.Turnover1h = 0.25
	c.Age = 3 * time.Hour

	cfg := model.DefaultScanConfig()
	cfg.Modes = []string{model.ModeEarly, model.ModeDegen}
	cfg.AntiDead = false
	cfg.TrendingFilters = false

	cfg.UniquePerToken = false
	res := newTestEngine().RunCycle(context.Background(), cfg, nil, &collector.MockFetcher{Candidates: []model.TokenCandidate{c}})
	require.Len(t, res.Rows, 2)
	assert.Equal(t, model.ModeEarly, res.Rows[0].Mode)
	assert.Equal(t, model.ModeDegen, res.Rows[1].Mode)

	cfg.UniquePerToken = true
	res = newTestEngine().RunCycle(context.Background(), cfg, nil, &collector.MockFetcher{Candidates: []model.TokenCandidate{c}})
	require.Len(t, res.Rows, 1)
	assert.Equal(t, model.ModeEarly, res.Rows[0].Mode)
}

func TestRunCycle_VerboseExplainsRejections(t *testing.T) {
	cfg := model.DefaultScanConfig()
	cfg.VerboseDebug = true
	cfg.AntiDead = false
	dead := cand("DEAD", 100, 10)

	res := newTestEngine().RunCycle(context.Background(), cfg, nil, &collector.MockFetcher{Candidates: []model.TokenCandidate{dead}})
	require.Len(t, res.WhyFiltered, 1)
	assert.Contains(t, res.WhyFiltered[0].Reason, "low_liq:100")
	assert.Contains(t, res.WhyFiltered[0].Reason, "m5_non_positive")
}

type orderFetcher struct {
	collector.MockFetcher
	checked int
}

func (o *orderFetcher) MarkDexPaid(_ context.Context, rows []model.TokenCandidate) []dexscreener.CallDebug {
	o.checked += len(rows)
	for i := range rows {
		rows[i].DexPaid = true
		rows[i].OrderCount = 1
	}
	return nil
}

func TestRunCycle_OrdersForFinalistsOnly(t *testing.T) {
	cfg := plainConfig()
	cfg.TopN = 2
	cfg.IncludeOrders = true
	f := &orderFetcher{MockFetcher: collector.MockFetcher{Candidates: []model.TokenCandidate{
		cand("A", 0, 3), cand("B", 0, 2), cand("C", 0, 1),
	}}}

	res := newTestEngine().RunCycle(context.Background(), cfg, nil, f)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, 2, f.checked)
	assert.True(t, res.Rows[0].DexPaid)
}

func TestRank_Tiebreaks(t *testing.T) {
	rows := []model.TokenCandidate{
		{TokenAddress: "b", SpikeScore: 1, Score: 1, LiquidityUSD: 10},
		{TokenAddress: "a", SpikeScore: 1, Score: 1, LiquidityUSD: 10},
		{TokenAddress: "c", SpikeScore: 1, Score: 2, LiquidityUSD: 5},
		{TokenAddress: "d", SpikeScore: 2, Score: 0, LiquidityUSD: 0},
	}
	assert.Equal(t, []string{"d", "c", "a", "b"}, addrs(Rank(rows, model.RankBySpike)))
	assert.Equal(t, []string{"c", "a", "b", "d"}, addrs(Rank(rows, model.RankByScore)))
}

func TestScore(t *testing.T) {
	flat := &model.TokenCandidate{LiquidityUSD: 9, Vol1h: 9}
	score, spike := Score(flat, true)
	assert.InDelta(t, 0.55, score, 1e-9)
	assert.InDelta(t, 0, spike, 1e-9)

	hot := &model.TokenCandidate{ChangeM5: 10, Turnover1h: 0.1, NetBuy5m: 99}
	score, spike = Score(hot, true)
	assert.InDelta(t, 1.2425, spike, 1e-9)
	assert.InDelta(t, 1.15*1.2425+0.15, score, 1e-9)

	_, normalSpike := Score(hot, false)
	assert.Less(t, normalSpike, spike, "pump mode weighs m5 more")
}

func TestThresholdsFor(t *testing.T) {
	tests := []struct {
		mode string
		pump bool
		want ModeThresholds
	}{
		{model.ModeUltraEarly, true, ModeThresholds{2500, 40, 0, 240, 0.15}},
		{model.ModeEarlyStrict, false, ModeThresholds{12000, 250, 2, 1440, 0.45}},
		{model.ModeEarly, true, ModeThresholds{3500, 80, 0, 1440, 0.25}},
		{model.ModeStrict, false, ModeThresholds{25000, 500, 3, 10080, 0.85}},
		{model.ModeDegen, true, ModeThresholds{2500, 60, 0, 10080, 0.20}},
		{"unknown", false, ModeThresholds{5000, 120, 1, 10080, 0.20}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ThresholdsFor(tt.mode, tt.pump), tt.mode)
	}
}

func TestModeThresholds_Qualifies(t *testing.T) {
	th := ThresholdsFor(model.ModeEarlyStrict, true)
	c := &model.TokenCandidate{LiquidityUSD: 6000, Vol5m: 120, NetBuy5m: 1, Age: 24 * time.Hour, Score: 0.45}
	assert.True(t, th.qualifies(c), "floors are inclusive")

	older := *c
	older.Age = 24*time.Hour + time.Minute
	assert.False(t, th.qualifies(&older))

	thin := *c
	thin.LiquidityUSD = 5999
	assert.False(t, th.qualifies(&thin))
}

func TestPassesAntiDead(t *testing.T) {
	cfg := model.DefaultScanConfig() // pump mode, trending liq 15000, vol5m 500

	tests := []struct {
		name string
		c    model.TokenCandidate
		want bool
	}{
		{"fresh pair passes", model.TokenCandidate{Age: 30 * time.Minute}, true},
		{"thin liquidity", model.TokenCandidate{Age: 200 * time.Minute, LiquidityUSD: 1000, Buys5m: 5}, false},
		{"no activity", model.TokenCandidate{Age: 200 * time.Minute, LiquidityUSD: 20000}, false},
		{"one buy is enough", model.TokenCandidate{Age: 200 * time.Minute, LiquidityUSD: 20000, Buys5m: 1}, true},
		{"volume is enough", model.TokenCandidate{Age: 200 * time.Minute, LiquidityUSD: 20000, Vol5m: 400}, true},
		{"too old", model.TokenCandidate{Age: 11 * 24 * time.Hour, LiquidityUSD: 20000, Buys5m: 10}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, passesAntiDead(&tt.c, cfg))
		})
	}
}

func TestTrendingReasons(t *testing.T) {
	cfg := model.DefaultScanConfig()

	good := &model.TokenCandidate{LiquidityUSD: 20000, Vol1h: 2000, NetBuy5m: 3, SpikeScore: 0.8, ChangeM5: 4}
	assert.Empty(t, trendingReasons(good, cfg))

	promoted := &model.TokenCandidate{LiquidityUSD: 20000, Vol1h: 2000, NetBuy5m: 0, SpikeScore: 0.3, ChangeM5: 1, BoostAmount: 10}
	assert.Equal(t, []string{"low_netbuy:0", "promoted_no_real_buy"}, trendingReasons(promoted, cfg))
}

func randomCandidates(rng *rand.Rand, n int) []model.TokenCandidate {
	out := make([]model.TokenCandidate, n)
	for i := range out {
		c := cand(fmt.Sprintf("TOKEN%03d", i), float64(rng.Intn(100000)), float64(rng.Intn(100000)))
		c.Vol5m = float64(rng.Intn(2000))
		c.Vol1h = float64(rng.Intn(10000))
		c.Buys5m = rng.Intn(30)
		c.Sells5m = rng.Intn(30)
		c.NetBuy5m = c.Buys5m - c.Sells5m
		c.ChangeM5 = rng.Float64()*40 - 20
		c.ChangeH1 = rng.Float64()*100 - 50
		c.Age = time.Duration(rng.Intn(20000)) * time.Minute
		c.Paid = rng.Intn(2) == 0
		if c.LiquidityUSD > 0 {
			c.Turnover1h = c.Vol1h / c.LiquidityUSD
		}
		out[i] = c
	}
	return out
}

func TestRunCycle_NonFiniteMetricsNeverPassThresholds(t *testing.T) {
	cfg := plainConfig()
	cfg.Thresholds.MinLiquidityUSD = 50000
	cfg.Thresholds.MinVolume24hUSD = 100000
	f := &collector.MockFetcher{Candidates: []model.TokenCandidate{
		cand("NANLIQ", math.NaN(), 200000),
		cand("INFLIQ", math.Inf(1), 200000),
		cand("NANVOL", 60000, math.NaN()),
		cand("INFVOL", 60000, math.Inf(-1)),
	}}

	res := newTestEngine().RunCycle(context.Background(), cfg, model.NewBlacklist(), f)

	assert.Empty(t, res.Rows)
	assert.Equal(t, model.StatusNoMatches, res.Status)
	assert.Equal(t, 4, res.Counts["below_thresholds"])
}
