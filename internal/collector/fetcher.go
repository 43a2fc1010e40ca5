package collector

import (
	"context"

	"RunnerRadar/internal/dexscreener"
	"RunnerRadar/internal/model"
)

// Query selects which feeds a fetch pulls candidates from.
type Query struct {
	ChainID         string
	CandidatesMax   int
	PumpMode        bool
	IncludeBoosts   bool
	IncludeProfiles bool
	IncludeCTO      bool
	IncludeAds      bool
	VerboseDebug    bool

	// Progress, when set, is called as each token's pairs are processed.
	Progress func(done, total int)
}

// QueryFromConfig derives a Query from the user's scan config.
func QueryFromConfig(cfg *model.ScanConfig, chainID string) Query {
	return Query{
		ChainID:         chainID,
		CandidatesMax:   cfg.CandidatesMax,
		PumpMode:        cfg.PumpMode,
		IncludeBoosts:   cfg.IncludeBoosts,
		IncludeProfiles: cfg.IncludeProfiles,
		IncludeCTO:      cfg.IncludeCTO,
		IncludeAds:      cfg.IncludeAds,
		VerboseDebug:    cfg.VerboseDebug,
	}
}

// Report carries the non-fatal detail of a fetch.
type Report struct {
	Calls       []dexscreener.CallDebug `json:"calls"`
	Counts      map[string]int          `json:"counts"`
	Errors      []string                `json:"errors,omitempty"`
	WhyFiltered []model.FilteredReason  `json:"whyFiltered,omitempty"`
}

func newReport() *Report {
	return &Report{Counts: make(map[string]int)}
}

// Fetcher produces token candidates for one scan cycle. On failure it returns
// no candidates and an error whose kind can be read with dexscreener.KindOf.
type Fetcher interface {
	FetchCandidates(ctx context.Context, q Query) ([]model.TokenCandidate, *Report, error)
	Name() string
}

// OrderChecker looks up paid orders for finalists. Fetchers may implement it.
type OrderChecker interface {
	MarkDexPaid(ctx context.Context, rows []model.TokenCandidate) []dexscreener.CallDebug
}

// API is the subset of the Dexscreener client the collector needs.
type API interface {
	LatestBoosts(ctx context.Context) ([]dexscreener.BoostItem, dexscreener.CallDebug, error)
	TopBoosts(ctx context.Context) ([]dexscreener.BoostItem, dexscreener.CallDebug, error)
	LatestAds(ctx context.Context) ([]dexscreener.AdItem, dexscreener.CallDebug, error)
	LatestProfiles(ctx context.Context) ([]dexscreener.ProfileItem, dexscreener.CallDebug, error)
	LatestCommunityTakeovers(ctx context.Context) ([]dexscreener.TakeoverItem, dexscreener.CallDebug, error)
	Orders(ctx context.Context, chainID, tokenAddress string) ([]dexscreener.Order, dexscreener.CallDebug, error)
	PairsByTokens(ctx context.Context, chainID string, addrs []string) ([]dexscreener.Pair, dexscreener.CallDebug, error)
	TokenPairs(ctx context.Context, chainID, tokenAddress string) ([]dexscreener.Pair, dexscreener.CallDebug, error)
}

// MockFetcher returns fixed candidates for development and testing.
type MockFetcher struct {
	Candidates []model.TokenCandidate
	Err        error
	Calls      int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchCandidates(_ context.Context, _ Query) ([]model.TokenCandidate, *Report, error) {
	m.Calls++
	rep := newReport()
	if m.Err != nil {
		rep.Errors = append(rep.Errors, m.Err.Error())
		return nil, rep, m.Err
	}
	out := make([]model.TokenCandidate, len(m.Candidates))
	copy(out, m.Candidates)
	rep.Counts["candidates_unique"] = len(out)
	return out, rep, nil
}
