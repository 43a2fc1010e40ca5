package collector

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"RunnerRadar/internal/dexscreener"
	"RunnerRadar/internal/model"
)

const (
	// maxFallbackTokens caps single-token lookups for tokens missing from batches.
	maxFallbackTokens = 15
	// unknownAge stands in for pairs without a creation timestamp.
	unknownAge = 999999 * time.Minute
	maxErrors  = 50
)

// seed is a paid-listing candidate before pair data is attached.
type seed struct {
	Address            string
	Source             model.Source
	Sources            []model.Source
	BoostAmount        float64
	BoostTotal         float64
	BoostType          string
	IsCTO              bool
	ProfileURL         string
	ProfileDescription string
	ProfileLinksCount  int
}

// Collector assembles token candidates from Dexscreener's paid listing feeds
// and pair endpoints.
type Collector struct {
	API     API
	ChainID string
	Now     func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(api API, chainID string) *Collector {
	if chainID == "" {
		chainID = dexscreener.DefaultChainID
	}
	return &Collector{API: api, ChainID: dexscreener.NormalizeChainID(chainID), Now: time.Now}
}

func (c *Collector) Name() string { return "dexscreener" }

// FetchCandidates gathers paid candidates, enriches them with profiles and
// attaches each token's best pair. It fails only when every listing feed
// or every pair request fails; partial failures are listed in the report.
func (c *Collector) FetchCandidates(ctx context.Context, q Query) ([]model.TokenCandidate, *Report, error) {
	rep := newReport()
	chain := c.ChainID
	if q.ChainID != "" {
		chain = dexscreener.NormalizeChainID(q.ChainID)
	}

	seeds := make(map[string]*seed)
	var attempted, failed int
	var firstErr error
	track := func(dbg dexscreener.CallDebug, err error) bool {
		rep.Calls = append(rep.Calls, dbg)
		attempted++
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			rep.addError(fmt.Sprintf("%s: %v", dbg.Endpoint, err))
			return false
		}
		return true
	}

	// 1) paid candidates
	if q.IncludeBoosts {
		var items []dexscreener.BoostItem
		latest, dbg, err := c.API.LatestBoosts(ctx)
		if track(dbg, err) {
			items = append(items, latest...)
		}
		if q.PumpMode {
			top, dbg, err := c.API.TopBoosts(ctx)
			if track(dbg, err) {
				items = append(items, top...)
			}
		}
		rep.Counts["boost_items_raw"] = len(items)
		for i := range items {
			if s := seedFromBoost(&items[i], chain); s != nil {
				mergeInto(seeds, s)
			}
		}
	}
	if q.IncludeAds {
		items, dbg, err := c.API.LatestAds(ctx)
		track(dbg, err)
		rep.Counts["ads_items_raw"] = len(items)
		for i := range items {
			if s := seedFromAd(&items[i], chain); s != nil {
				mergeInto(seeds, s)
			}
		}
	}
	if q.IncludeCTO {
		items, dbg, err := c.API.LatestCommunityTakeovers(ctx)
		track(dbg, err)
		rep.Counts["cto_items_raw"] = len(items)
		for i := range items {
			if s := seedFromTakeover(&items[i], chain); s != nil {
				mergeInto(seeds, s)
			}
		}
	}
	if attempted > 0 && failed == attempted {
		return nil, rep, firstErr
	}

	ranked := rankSeeds(seeds)
	limit := q.CandidatesMax
	if limit < 1 {
		limit = 1
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	rep.Counts["candidates_unique"] = len(ranked)
	if len(ranked) == 0 {
		return []model.TokenCandidate{}, rep, nil
	}

	// 2) profiles
	if q.IncludeProfiles {
		profiles, dbg, err := c.API.LatestProfiles(ctx)
		rep.Calls = append(rep.Calls, dbg)
		if err != nil {
			rep.addError(fmt.Sprintf("%s: %v", dbg.Endpoint, err))
		}
		rep.Counts["profiles_raw"] = len(profiles)
		byToken := make(map[string]*dexscreener.ProfileItem)
		for i := range profiles {
			p := &profiles[i]
			if dexscreener.NormalizeChainID(p.ChainID) != chain {
				continue
			}
			if key := strings.ToLower(strings.TrimSpace(p.TokenAddress)); key != "" {
				byToken[key] = p
			}
		}
		for _, s := range ranked {
			p, ok := byToken[strings.ToLower(s.Address)]
			if !ok {
				continue
			}
			mergeSeed(s, &seed{
				ProfileURL:         p.URL,
				ProfileDescription: p.Description,
				ProfileLinksCount:  len(p.Links),
			})
		}
	}

	// 3) pairs in batches, then single-token fallback
	addrs := make([]string, len(ranked))
	for i, s := range ranked {
		addrs[i] = s.Address
	}
	pairsByToken := make(map[string][]dexscreener.Pair)
	var pairCalls, pairFailures int
	var pairErr error
	returned := 0
	for _, chunk := range Chunk(addrs, dexscreener.MaxBatchAddresses) {
		pairs, dbg, err := c.API.PairsByTokens(ctx, chain, chunk)
		rep.Calls = append(rep.Calls, dbg)
		pairCalls++
		if err != nil {
			pairFailures++
			if pairErr == nil {
				pairErr = err
			}
			rep.addError(fmt.Sprintf("%s: %v", dbg.Endpoint, err))
			continue
		}
		returned += len(pairs)
		indexPairs(pairsByToken, pairs)
	}
	rep.Counts["pairs_returned"] = returned
	if pairCalls > 0 && pairFailures == pairCalls {
		return nil, rep, pairErr
	}

	var missing []string
	for _, a := range addrs {
		if _, ok := pairsByToken[strings.ToLower(a)]; !ok {
			missing = append(missing, a)
		}
	}
	rep.Counts["tokens_missing_from_batch"] = len(missing)
	if len(missing) > maxFallbackTokens {
		missing = missing[:maxFallbackTokens]
	}
	for _, a := range missing {
		pairs, dbg, err := c.API.TokenPairs(ctx, chain, a)
		rep.Calls = append(rep.Calls, dbg)
		if err != nil {
			rep.addError(fmt.Sprintf("pairs_fallback %s.. kind=%s status=%d", shortAddr(a), dexscreener.KindOf(err), dbg.Status))
			continue
		}
		if len(pairs) > 0 {
			key := strings.ToLower(a)
			pairsByToken[key] = append(pairsByToken[key], pairs...)
		}
	}

	// 4) best pair per token
	now := c.Now()
	out := make([]model.TokenCandidate, 0, len(ranked))
	for i, s := range ranked {
		if q.Progress != nil {
			q.Progress(i+1, len(ranked))
		}
		best := BestPair(pairsByToken[strings.ToLower(s.Address)])
		if best == nil {
			if q.VerboseDebug {
				rep.WhyFiltered = append(rep.WhyFiltered, model.FilteredReason{TokenAddress: s.Address, Reason: "no_pairs_returned"})
			}
			continue
		}
		out = append(out, buildCandidate(s, best, chain, now))
	}
	rep.Counts["candidates_with_pairs"] = len(out)
	return out, rep, nil
}

// MarkDexPaid looks up paid orders for each row.
func (c *Collector) MarkDexPaid(ctx context.Context, rows []model.TokenCandidate) []dexscreener.CallDebug {
	calls := make([]dexscreener.CallDebug, 0, len(rows))
	for i := range rows {
		addr := strings.TrimSpace(rows[i].TokenAddress)
		if addr == "" {
			continue
		}
		orders, dbg, err := c.API.Orders(ctx, c.ChainID, addr)
		calls = append(calls, dbg)
		if err != nil {
			log.Printf("[WARN] orders lookup for %s failed: %v", shortAddr(addr), err)
			continue
		}
		rows[i].OrderCount = len(orders)
		rows[i].DexPaid = len(orders) > 0
	}
	return calls
}

func (r *Report) addError(msg string) {
	if len(r.Errors) < maxErrors {
		r.Errors = append(r.Errors, msg)
	}
}

func seedFromBoost(it *dexscreener.BoostItem, chain string) *seed {
	addr := strings.TrimSpace(it.TokenAddress)
	if dexscreener.NormalizeChainID(it.ChainID) != chain || addr == "" {
		return nil
	}
	return &seed{
		Address:     addr,
		Source:      model.SourceBoosts,
		Sources:     []model.Source{model.SourceBoosts},
		BoostAmount: it.BoostAmountValue(),
		BoostTotal:  it.BoostTotalValue(),
		BoostType:   it.BoostTypeValue(),
		ProfileURL:  it.URL,
	}
}

func seedFromAd(it *dexscreener.AdItem, chain string) *seed {
	addr := strings.TrimSpace(it.TokenAddress)
	if dexscreener.NormalizeChainID(it.ChainID) != chain || addr == "" {
		return nil
	}
	return &seed{
		Address:    addr,
		Source:     model.SourceAds,
		Sources:    []model.Source{model.SourceAds},
		ProfileURL: it.URL,
	}
}

func seedFromTakeover(it *dexscreener.TakeoverItem, chain string) *seed {
	addr := strings.TrimSpace(it.TokenAddress)
	if dexscreener.NormalizeChainID(it.ChainID) != chain || addr == "" {
		return nil
	}
	return &seed{
		Address:            addr,
		Source:             model.SourceCTO,
		Sources:            []model.Source{model.SourceCTO},
		IsCTO:              true,
		ProfileURL:         it.URL,
		ProfileDescription: it.Description,
		ProfileLinksCount:  len(it.Links),
	}
}

func mergeInto(seeds map[string]*seed, s *seed) {
	key := strings.ToLower(s.Address)
	if dst, ok := seeds[key]; ok {
		mergeSeed(dst, s)
		return
	}
	seeds[key] = s
}

// mergeSeed folds src into dst: sources are unioned, the higher-priority
// source wins, boost values keep their maximum and profile fields fill gaps.
func mergeSeed(dst, src *seed) {
	for _, s := range src.Sources {
		found := false
		for _, d := range dst.Sources {
			if d == s {
				found = true
				break
			}
		}
		if !found {
			dst.Sources = append(dst.Sources, s)
		}
	}
	if src.Source.Priority() > dst.Source.Priority() {
		dst.Source = src.Source
	}
	if src.BoostAmount > dst.BoostAmount {
		dst.BoostAmount = src.BoostAmount
	}
	if src.BoostTotal > dst.BoostTotal {
		dst.BoostTotal = src.BoostTotal
	}
	if dst.BoostType == "" {
		dst.BoostType = src.BoostType
	}
	dst.IsCTO = dst.IsCTO || src.IsCTO
	if dst.ProfileURL == "" {
		dst.ProfileURL = src.ProfileURL
	}
	if dst.ProfileDescription == "" {
		dst.ProfileDescription = src.ProfileDescription
	}
	if dst.ProfileLinksCount == 0 {
		dst.ProfileLinksCount = src.ProfileLinksCount
	}
}

// rankSeeds orders seeds by source priority, then boost amount, then address.
func rankSeeds(seeds map[string]*seed) []*seed {
	out := make([]*seed, 0, len(seeds))
	for _, s := range seeds {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Source.Priority(), out[j].Source.Priority()
		if pi != pj {
			return pi > pj
		}
		if out[i].BoostAmount != out[j].BoostAmount {
			return out[i].BoostAmount > out[j].BoostAmount
		}
		return strings.ToLower(out[i].Address) < strings.ToLower(out[j].Address)
	})
	return out
}

// Chunk splits items into slices of at most n elements.
func Chunk(items []string, n int) [][]string {
	if n < 1 {
		n = 1
	}
	var out [][]string
	for i := 0; i < len(items); i += n {
		end := i + n
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}

// indexPairs files each pair under both its base and quote token address.
func indexPairs(idx map[string][]dexscreener.Pair, pairs []dexscreener.Pair) {
	for _, p := range pairs {
		base := strings.ToLower(strings.TrimSpace(p.BaseToken.Address))
		quote := strings.ToLower(strings.TrimSpace(p.QuoteToken.Address))
		if base != "" {
			idx[base] = append(idx[base], p)
		}
		if quote != "" && quote != base {
			idx[quote] = append(idx[quote], p)
		}
	}
}

// BestPair picks the pair with the most liquidity, breaking ties on 24h
// volume. The earliest pair wins exact ties.
func BestPair(pairs []dexscreener.Pair) *dexscreener.Pair {
	var best *dexscreener.Pair
	bestLiq, bestVol := -1.0, -1.0
	for i := range pairs {
		liq := pairs[i].LiquidityUSD()
		vol := pairs[i].Volume.H24.Float()
		if liq > bestLiq || (liq == bestLiq && vol > bestVol) {
			best = &pairs[i]
			bestLiq, bestVol = liq, vol
		}
	}
	return best
}

func buildCandidate(s *seed, p *dexscreener.Pair, chain string, now time.Time) model.TokenCandidate {
	symbol, name := p.BaseToken.Symbol, p.BaseToken.Name
	key := strings.ToLower(s.Address)
	if strings.ToLower(strings.TrimSpace(p.BaseToken.Address)) != key &&
		strings.ToLower(strings.TrimSpace(p.QuoteToken.Address)) == key {
		if p.QuoteToken.Symbol != "" {
			symbol = p.QuoteToken.Symbol
		}
		if p.QuoteToken.Name != "" {
			name = p.QuoteToken.Name
		}
	}

	liq := p.LiquidityUSD()
	vol1h := p.Volume.H1.Float()
	buys, sells := p.Txns.M5.Buys.Int(), p.Txns.M5.Sells.Int()

	c := model.TokenCandidate{
		TokenAddress: s.Address,
		Symbol:       symbol,
		Name:         name,
		PairAddress:  p.PairAddress,
		DexID:        p.DexID,
		PriceUSD:     p.PriceUSD.Float(),
		LiquidityUSD: liq,
		MarketCap:    p.MarketCap.Float(),
		FDV:          p.FDV.Float(),
		Vol5m:        p.Volume.M5.Float(),
		Vol1h:        vol1h,
		Vol24h:       p.Volume.H24.Float(),
		Buys5m:       buys,
		Sells5m:      sells,
		NetBuy5m:     buys - sells,
		ChangeM5:     p.PriceChange.M5.Float(),
		ChangeH1:     p.PriceChange.H1.Float(),
		ChangeH6:     p.PriceChange.H6.Float(),
		ChangeH24:    p.PriceChange.H24.Float(),
		Age:          unknownAge,

		Paid:               s.Source == model.SourceBoosts || s.Source == model.SourceAds,
		Source:             s.Source,
		Sources:            append([]model.Source(nil), s.Sources...),
		BoostAmount:        s.BoostAmount,
		BoostTotal:         s.BoostTotal,
		BoostType:          s.BoostType,
		IsCTO:              s.IsCTO,
		ProfileURL:         s.ProfileURL,
		ProfileDescription: s.ProfileDescription,
		ProfileLinksCount:  s.ProfileLinksCount,
		URLGMGN:            "https://gmgn.ai/sol/token/" + s.Address,
	}
	if liq > 0 {
		c.Turnover1h = vol1h / liq
	}
	if ms := int64(p.PairCreatedAt.Float()); ms > 0 {
		c.PairCreatedAt = time.UnixMilli(ms).UTC()
		c.Age = now.Sub(c.PairCreatedAt)
		if c.Age < 0 {
			c.Age = 0
		}
	}
	if p.PairAddress != "" {
		c.URLDexscreener = fmt.Sprintf("https://dexscreener.com/%s/%s", chain, p.PairAddress)
	}
	return c
}

func shortAddr(a string) string {
	if len(a) > 6 {
		return a[:6]
	}
	return a
}
