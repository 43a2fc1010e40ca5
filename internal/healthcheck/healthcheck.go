package healthcheck

import (
	"context"
	"fmt"
	"io"
	"time"

	"RunnerRadar/internal/dexscreener"
)

// wrappedSOL is used as the sample token for per-token endpoints.
const wrappedSOL = "So11111111111111111111111111111111111111112"

// Endpoint is one API route checked by Run.
type Endpoint struct {
	Name string
	Path string
}

// Prober issues a single request. *dexscreener.Client implements it.
type Prober interface {
	Probe(ctx context.Context, endpoint, path string) (dexscreener.CallDebug, error)
}

// Endpoints returns every route the scanner depends on for chainID.
func Endpoints(chainID string) []Endpoint {
	chainID = dexscreener.NormalizeChainID(chainID)
	return []Endpoint{
		{"token_boosts_latest", "/token-boosts/latest/v1"},
		{"token_boosts_top", "/token-boosts/top/v1"},
		{"ads_latest", "/ads/latest/v1"},
		{"profiles_latest", "/token-profiles/latest/v1"},
		{"cto_latest", "/community-takeovers/latest/v1"},
		{"tokens_batch", fmt.Sprintf("/tokens/v1/%s/%s", chainID, wrappedSOL)},
		{"token_pairs", fmt.Sprintf("/token-pairs/v1/%s/%s", chainID, wrappedSOL)},
		{"orders", fmt.Sprintf("/orders/v1/%s/%s", chainID, wrappedSOL)},
	}
}

// Result is the outcome for one endpoint.
type Result struct {
	Endpoint Endpoint
	OK       bool
	Kind     dexscreener.ErrorKind
	Debug    dexscreener.CallDebug
}

// Report holds one result per endpoint, in check order.
type Report struct {
	Results []Result
	Elapsed time.Duration
}

// OK reports whether every endpoint was reachable.
func (r *Report) OK() bool {
	for _, res := range r.Results {
		if !res.OK {
			return false
		}
	}
	return len(r.Results) > 0
}

// Failed counts unreachable endpoints.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.OK {
			n++
		}
	}
	return n
}

// Run probes each endpoint once. A failure does not stop the remaining checks.
func Run(ctx context.Context, p Prober, endpoints []Endpoint) *Report {
	start := time.Now()
	rep := &Report{Results: make([]Result, 0, len(endpoints))}
	for _, ep := range endpoints {
		dbg, err := p.Probe(ctx, ep.Name, ep.Path)
		res := Result{Endpoint: ep, OK: err == nil, Debug: dbg}
		if err != nil {
			res.Kind = dexscreener.KindOf(err)
			if res.Debug.Error == "" {
				res.Debug.Error = err.Error()
			}
		}
		rep.Results = append(rep.Results, res)
	}
	rep.Elapsed = time.Since(start)
	return rep
}

// Write prints a human-readable report.
func (r *Report) Write(w io.Writer) {
	fmt.Fprintln(w, "Dexscreener health check")
	for _, res := range r.Results {
		mark := "OK  "
		if !res.OK {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "[%s] %-20s status=%-3d %6dms %s\n",
			mark, res.Endpoint.Name, res.Debug.Status, res.Debug.Elapsed.Milliseconds(), res.Debug.URL)
		if !res.OK {
			fmt.Fprintf(w, "       kind=%s error=%s\n", res.Kind, res.Debug.Error)
			if res.Debug.Snippet != "" {
				fmt.Fprintf(w, "       body=%q\n", res.Debug.Snippet)
			}
		}
	}
	fmt.Fprintf(w, "%d/%d endpoints reachable in %v\n",
		len(r.Results)-r.Failed(), len(r.Results), r.Elapsed.Round(time.Millisecond))
}
