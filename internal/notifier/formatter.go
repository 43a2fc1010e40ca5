package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"RunnerRadar/internal/model"
)

// FormatScanReport formats rows of a finished cycle into a Telegram message.
// Rows are expected ranked; at most limit are listed.
func FormatScanReport(res *model.ScanResult, rows []model.TokenCandidate, limit int) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🚀 <b>RunnerRadar</b> | %s\n", res.StartedAt.UTC().Format("2006-01-02 15:04 UTC")))
	b.WriteString(html.EscapeString(res.Message()) + "\n")

	if res.Status != model.StatusOK || len(rows) == 0 {
		return b.String()
	}
	if limit <= 0 || limit > len(rows) {
		limit = len(rows)
	}
	b.WriteString("\n")
	for i, r := range rows[:limit] {
		b.WriteString(formatRow(i+1, &r))
	}
	if len(rows) > limit {
		b.WriteString(fmt.Sprintf("\n… and %d more\n", len(rows)-limit))
	}
	return b.String()
}

func formatRow(rank int, r *model.TokenCandidate) string {
	var b strings.Builder
	symbol := r.Symbol
	if symbol == "" {
		symbol = shortAddr(r.TokenAddress)
	}
	b.WriteString(fmt.Sprintf("%d. <b>%s</b>", rank, html.EscapeString(symbol)))
	if r.Mode != "" {
		b.WriteString(fmt.Sprintf(" [%s]", r.Mode))
	}
	var tags []string
	if r.BoostAmount > 0 {
		tags = append(tags, fmt.Sprintf("⚡%.0f", r.BoostAmount))
	}
	if r.IsCTO {
		tags = append(tags, "CTO")
	}
	if r.DexPaid {
		tags = append(tags, "DEX✅")
	}
	if len(tags) > 0 {
		b.WriteString(" " + strings.Join(tags, " "))
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("   spike %.2f | score %.2f | liq $%s | vol1h $%s\n",
		r.SpikeScore, r.Score, compactUSD(r.LiquidityUSD), compactUSD(r.Vol1h)))
	b.WriteString(fmt.Sprintf("   m5 %+.1f%% | h1 %+.1f%% | netbuy5m %d | age %s\n",
		r.ChangeM5, r.ChangeH1, r.NetBuy5m, formatAge(r.Age)))
	links := []string{}
	if r.URLDexscreener != "" {
		links = append(links, fmt.Sprintf(`<a href="%s">DS</a>`, html.EscapeString(r.URLDexscreener)))
	}
	if r.URLGMGN != "" {
		links = append(links, fmt.Sprintf(`<a href="%s">GMGN</a>`, html.EscapeString(r.URLGMGN)))
	}
	links = append(links, "<code>"+html.EscapeString(r.TokenAddress)+"</code>")
	b.WriteString("   " + strings.Join(links, " | ") + "\n")
	return b.String()
}

// FormatBlacklist lists blacklisted addresses.
func FormatBlacklist(entries []string) string {
	if len(entries) == 0 {
		return "🚫 Blacklist is empty"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🚫 <b>Blacklist</b> (%d)\n\n", len(entries)))
	for _, e := range entries {
		b.WriteString("<code>" + html.EscapeString(e) + "</code>\n")
	}
	return b.String()
}

// FormatConfig summarises the active scan settings.
func FormatConfig(cfg *model.ScanConfig) string {
	var b strings.Builder
	b.WriteString("⚙️ <b>Scan config</b>\n\n")
	b.WriteString(fmt.Sprintf("Modes: %s\n", strings.Join(cfg.Modes, ", ")))
	b.WriteString(fmt.Sprintf("Top N: %d | candidates max: %d | rank by: %s\n", cfg.TopN, cfg.CandidatesMax, cfg.RankBy))
	b.WriteString(fmt.Sprintf("Min liquidity: $%s | min vol24h: $%s | min age: %.0fm | require paid: %v\n",
		compactUSD(cfg.Thresholds.MinLiquidityUSD), compactUSD(cfg.Thresholds.MinVolume24hUSD),
		cfg.Thresholds.MinAgeMinutes, cfg.Thresholds.RequirePaid))
	b.WriteString(fmt.Sprintf("Pump mode: %v | anti-dead: %v | unique per token: %v\n", cfg.PumpMode, cfg.AntiDead, cfg.UniquePerToken))
	b.WriteString(fmt.Sprintf("Sources: boosts=%v ads=%v cto=%v profiles=%v orders=%v\n",
		cfg.IncludeBoosts, cfg.IncludeAds, cfg.IncludeCTO, cfg.IncludeProfiles, cfg.IncludeOrders))
	if cfg.TrendingFilters {
		b.WriteString(fmt.Sprintf("Trending: liq ≥ $%s, vol1h ≥ $%s or vol5m ≥ $%s, netbuy5m ≥ %d, spike ≥ %.2f\n",
			compactUSD(cfg.TrendingMinLiquidity), compactUSD(cfg.TrendingMinVol1h), compactUSD(cfg.TrendingMinVol5m),
			cfg.TrendingMinNetBuy5m, cfg.SpikeScoreMin))
	} else {
		b.WriteString("Trending filters: off\n")
	}
	if cfg.LastScanTS != "" {
		b.WriteString(fmt.Sprintf("Last scan: %s\n", cfg.LastScanTS))
	}
	return b.String()
}

// FormatBalance formats the wallet balance and the per-trade budget.
func FormatBalance(wallet string, sol, budgetPct, budget float64) string {
	var b strings.Builder
	b.WriteString("👛 <b>Wallet</b>\n\n")
	b.WriteString(fmt.Sprintf("<code>%s</code>\n", html.EscapeString(wallet)))
	b.WriteString(fmt.Sprintf("Balance: %.4f SOL\n", sol))
	b.WriteString(fmt.Sprintf("Budget per trade (%.1f%%): %.4f SOL\n", budgetPct, budget))
	return b.String()
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return "🤖 <b>RunnerRadar commands</b>\n\n" +
		"/scan - run a scan now\n" +
		"/top - show the last results\n" +
		"/blacklist &lt;address&gt; - hide a token\n" +
		"/unblacklist &lt;address&gt; - unhide a token\n" +
		"/blacklisted - list hidden tokens\n" +
		"/config - show scan settings\n" +
		"/balance - show wallet balance\n"
}

func compactUSD(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

func formatAge(d time.Duration) string {
	m := d.Minutes()
	switch {
	case m >= 999999:
		return "?"
	case m < 60:
		return fmt.Sprintf("%.0fm", m)
	case m < 48*60:
		return fmt.Sprintf("%.1fh", m/60)
	default:
		return fmt.Sprintf("%.1fd", m/1440)
	}
}

func shortAddr(a string) string {
	if len(a) <= 10 {
		return a
	}
	return a[:4] + "…" + a[len(a)-4:]
}
