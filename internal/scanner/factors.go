package scanner

import (
	"fmt"
	"math"

	"RunnerRadar/internal/model"
)

// ModeThresholds are the per-mode floors a scored row must meet.
type ModeThresholds struct {
	MinLiquidity  float64
	MinVol5m      float64
	MinNetBuy5m   int
	MaxAgeMinutes float64
	MinScore      float64
}

// Modes maps each scan mode to its pump-mode and normal thresholds.
// Unknown modes fall back to degen.
var Modes = map[string]struct {
	Pump, Normal ModeThresholds
}{
	model.ModeUltraEarly: {
		Pump:   ModeThresholds{MinLiquidity: 2500, MinVol5m: 40, MinNetBuy5m: 0, MaxAgeMinutes: 240, MinScore: 0.15},
		Normal: ModeThresholds{MinLiquidity: 4000, MinVol5m: 80, MinNetBuy5m: 1, MaxAgeMinutes: 240, MinScore: 0.15},
	},
	model.ModeEarlyStrict: {
		Pump:   ModeThresholds{MinLiquidity: 6000, MinVol5m: 120, MinNetBuy5m: 1, MaxAgeMinutes: 24 * 60, MinScore: 0.45},
		Normal: ModeThresholds{MinLiquidity: 12000, MinVol5m: 250, MinNetBuy5m: 2, MaxAgeMinutes: 24 * 60, MinScore: 0.45},
	},
	model.ModeEarly: {
		Pump:   ModeThresholds{MinLiquidity: 3500, MinVol5m: 80, MinNetBuy5m: 0, MaxAgeMinutes: 24 * 60, MinScore: 0.25},
		Normal: ModeThresholds{MinLiquidity: 8000, MinVol5m: 160, MinNetBuy5m: 1, MaxAgeMinutes: 24 * 60, MinScore: 0.25},
	},
	model.ModeStrict: {
		Pump:   ModeThresholds{MinLiquidity: 15000, MinVol5m: 250, MinNetBuy5m: 2, MaxAgeMinutes: 7 * 24 * 60, MinScore: 0.85},
		Normal: ModeThresholds{MinLiquidity: 25000, MinVol5m: 500, MinNetBuy5m: 3, MaxAgeMinutes: 7 * 24 * 60, MinScore: 0.85},
	},
	model.ModeDegen: {
		Pump:   ModeThresholds{MinLiquidity: 2500, MinVol5m: 60, MinNetBuy5m: 0, MaxAgeMinutes: 7 * 24 * 60, MinScore: 0.20},
		Normal: ModeThresholds{MinLiquidity: 5000, MinVol5m: 120, MinNetBuy5m: 1, MaxAgeMinutes: 7 * 24 * 60, MinScore: 0.20},
	},
}

// ThresholdsFor returns the floors of mode.
func ThresholdsFor(mode string, pump bool) ModeThresholds {
	m, ok := Modes[mode]
	if !ok {
		m = Modes[model.ModeDegen]
	}
	if pump {
		return m.Pump
	}
	return m.Normal
}

// qualifies reports whether c meets the floors of t.
func (t ModeThresholds) qualifies(c *model.TokenCandidate) bool {
	switch {
	case c.LiquidityUSD < t.MinLiquidity:
		return false
	case c.Vol5m < t.MinVol5m:
		return false
	case c.NetBuy5m < t.MinNetBuy5m:
		return false
	case c.AgeMinutes() > t.MaxAgeMinutes:
		return false
	case c.Score < t.MinScore:
		return false
	}
	return true
}

// Score computes the composite score and the spike score of a candidate.
// The spike score weighs momentum, turnover and net buying; the composite
// adds log-scaled liquidity and volume plus a bonus for a positive m5.
func Score(c *model.TokenCandidate, pump bool) (score, spike float64) {
	liqS := math.Log10(1 + math.Max(c.LiquidityUSD, 0))
	volS := math.Log10(1 + math.Max(c.Vol1h, 0))
	flowS := math.Log10(1 + math.Max(float64(c.NetBuy5m), 0))

	m5Weight := 0.85
	if pump {
		m5Weight = 1.15
	}
	mom := c.ChangeM5*m5Weight + c.ChangeH1*0.35

	spike = 0.55*math.Max(0, mom/10) +
		0.30*math.Min(2.5, c.Turnover1h*12) +
		0.25*math.Min(2.0, flowS/2)

	score = 0.30*liqS + 0.25*volS + 1.15*spike
	if c.ChangeM5 > 0 {
		score += 0.15
	}
	return score, spike
}

// passesAntiDead drops pairs with no life left. Fresh pairs always pass;
// the floors scale with the trending thresholds.
func passesAntiDead(c *model.TokenCandidate, cfg *model.ScanConfig) bool {
	age := c.AgeMinutes()
	fresh, factor, minTxns := 60.0, 0.85, 2
	if cfg.PumpMode {
		fresh, factor, minTxns = 90, 0.75, 1
	}
	if age <= fresh {
		return true
	}

	if c.LiquidityUSD < math.Max(1200, cfg.TrendingMinLiquidity*factor) {
		return false
	}
	volFloor := math.Max(40, cfg.TrendingMinVol5m*factor)
	if c.Buys5m+c.Sells5m < minTxns && c.Vol5m < volFloor {
		return false
	}
	return age <= 10*24*60
}

// trendingReasons lists why c fails the trending filters. Empty means it passes.
func trendingReasons(c *model.TokenCandidate, cfg *model.ScanConfig) []string {
	var reasons []string
	if c.LiquidityUSD < cfg.TrendingMinLiquidity {
		reasons = append(reasons, fmt.Sprintf("low_liq:%.0f", c.LiquidityUSD))
	}
	if c.Vol1h < cfg.TrendingMinVol1h && c.Vol5m < cfg.TrendingMinVol5m {
		reasons = append(reasons, fmt.Sprintf("low_vol:1h=%.0f,5m=%.0f", c.Vol1h, c.Vol5m))
	}
	if c.NetBuy5m < cfg.TrendingMinNetBuy5m {
		reasons = append(reasons, fmt.Sprintf("low_netbuy:%d", c.NetBuy5m))
	}
	if c.SpikeScore < cfg.SpikeScoreMin {
		reasons = append(reasons, fmt.Sprintf("low_spike:%.3f", c.SpikeScore))
	}
	// boosted with no real buying behind it
	if c.BoostAmount > 0 && c.NetBuy5m <= 0 && c.Turnover1h < 0.01 && c.SpikeScore < math.Max(cfg.SpikeScoreMin, 0.40) {
		reasons = append(reasons, "promoted_no_real_buy")
	}
	if c.ChangeM5 <= 0 && c.SpikeScore < math.Max(cfg.SpikeScoreMin, 0.55) {
		reasons = append(reasons, "m5_non_positive")
	}
	return reasons
}

// thresholdReason returns the first hard threshold c misses, or "".
// Every comparison is inclusive.
func thresholdReason(c *model.TokenCandidate, t model.Thresholds) string {
	switch {
	case !finite(c.LiquidityUSD) || c.LiquidityUSD < t.MinLiquidityUSD:
		return fmt.Sprintf("below_min_liquidity:%.0f", c.LiquidityUSD)
	case !finite(c.Vol24h) || c.Vol24h < t.MinVolume24hUSD:
		return fmt.Sprintf("below_min_volume_24h:%.0f", c.Vol24h)
	case c.AgeMinutes() < t.MinAgeMinutes:
		return fmt.Sprintf("below_min_age:%.0fm", c.AgeMinutes())
	case t.RequirePaid && !c.Paid && !c.DexPaid:
		return "not_paid"
	}
	return ""
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
