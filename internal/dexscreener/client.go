package dexscreener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.dexscreener.com"
	DefaultChainID = "solana"
	DefaultTimeout = 12 * time.Second
	userAgent      = "RunnerRadar/1.0 (+paid runners scanner)"

	// MaxBatchAddresses is the /tokens/v1 limit per request.
	MaxBatchAddresses = 30

	snippetLen  = 200
	maxBodySize = 8 << 20
)

// ErrorKind classifies a failed call.
type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindTimeout   ErrorKind = "timeout"
	KindStatus    ErrorKind = "status"
	KindMalformed ErrorKind = "malformed"
)

// FetchError describes why a Dexscreener call produced no data.
type FetchError struct {
	Kind   ErrorKind
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("dexscreener %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("dexscreener %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// CallDebug is the raw HTTP detail of a single request.
type CallDebug struct {
	Endpoint string        `json:"endpoint"`
	URL      string        `json:"url"`
	Status   int           `json:"status,omitempty"`
	Elapsed  time.Duration `json:"elapsedNs"`
	Snippet  string        `json:"textSnippet,omitempty"`
	Error    string        `json:"error,omitempty"`
	Skipped  int           `json:"skippedItems,omitempty"`
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	ProxyURL  string
	ListRPM   int // listing endpoints (boosts, ads, profiles, cto, orders)
	PairRPM   int // pair endpoints (tokens, token-pairs)
	UserAgent string
}

// Client talks to the public Dexscreener REST API.
type Client struct {
	BaseURL   string
	UserAgent string
	HTTP      *http.Client

	listLimiter *rate.Limiter
	pairLimiter *rate.Limiter

	// OnCall, when set, is invoked after every request.
	OnCall func(dbg CallDebug, err error)
}

// NewClient creates a client with optional proxy support. A non-positive
// rate disables the corresponding limiter.
func NewClient(opts Options) *Client {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if opts.ProxyURL != "" {
		if u, err := url.Parse(opts.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = userAgent
	}
	return &Client{
		BaseURL:   strings.TrimRight(opts.BaseURL, "/"),
		UserAgent: opts.UserAgent,
		HTTP: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		listLimiter: newLimiter(opts.ListRPM),
		pairLimiter: newLimiter(opts.PairRPM),
	}
}

func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := rpm / 12
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), burst)
}

// LatestBoosts fetches the most recent paid boosts.
func (c *Client) LatestBoosts(ctx context.Context) ([]BoostItem, CallDebug, error) {
	return fetchList[BoostItem](ctx, c, c.listLimiter, "token_boosts_latest", "/token-boosts/latest/v1", "data", "boosts", "tokens", "results")
}

// TopBoosts fetches the tokens with the most active boosts.
func (c *Client) TopBoosts(ctx context.Context) ([]BoostItem, CallDebug, error) {
	return fetchList[BoostItem](ctx, c, c.listLimiter, "token_boosts_top", "/token-boosts/top/v1", "data", "boosts", "tokens", "results")
}

// LatestAds fetches the most recent sponsored listings.
func (c *Client) LatestAds(ctx context.Context) ([]AdItem, CallDebug, error) {
	return fetchList[AdItem](ctx, c, c.listLimiter, "ads_latest", "/ads/latest/v1", "data", "ads", "results")
}

// LatestProfiles fetches the most recent token profiles. The endpoint is
// documented as returning a single object, which is accepted too.
func (c *Client) LatestProfiles(ctx context.Context) ([]ProfileItem, CallDebug, error) {
	return fetchList[ProfileItem](ctx, c, c.listLimiter, "profiles_latest", "/token-profiles/latest/v1", "data", "profiles", "results")
}

// LatestCommunityTakeovers fetches the most recent community takeovers.
func (c *Client) LatestCommunityTakeovers(ctx context.Context) ([]TakeoverItem, CallDebug, error) {
	return fetchList[TakeoverItem](ctx, c, c.listLimiter, "cto_latest", "/community-takeovers/latest/v1", "data", "results", "ctos")
}

// Orders fetches paid orders for a token.
func (c *Client) Orders(ctx context.Context, chainID, tokenAddress string) ([]Order, CallDebug, error) {
	path := fmt.Sprintf("/orders/v1/%s/%s", url.PathEscape(NormalizeChainID(chainID)), url.PathEscape(tokenAddress))
	return fetchList[Order](ctx, c, c.listLimiter, "orders", path, "orders", "data", "results")
}

// PairsByTokens fetches pairs for up to MaxBatchAddresses tokens in one call.
// Addresses are deduplicated case-insensitively, keeping first-seen order.
func (c *Client) PairsByTokens(ctx context.Context, chainID string, addrs []string) ([]Pair, CallDebug, error) {
	seen := make(map[string]bool, len(addrs))
	unique := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" || seen[strings.ToLower(a)] {
			continue
		}
		seen[strings.ToLower(a)] = true
		unique = append(unique, url.PathEscape(a))
	}
	if len(unique) == 0 {
		return nil, CallDebug{Endpoint: "tokens_batch"}, nil
	}
	if len(unique) > MaxBatchAddresses {
		return nil, CallDebug{Endpoint: "tokens_batch"}, fmt.Errorf("pairs batch: %d addresses exceeds limit of %d", len(unique), MaxBatchAddresses)
	}
	path := fmt.Sprintf("/tokens/v1/%s/%s", url.PathEscape(NormalizeChainID(chainID)), strings.Join(unique, ","))
	return fetchList[Pair](ctx, c, c.pairLimiter, "tokens_batch", path, "pairs", "data", "results")
}

// TokenPairs fetches every pair of a single token.
func (c *Client) TokenPairs(ctx context.Context, chainID, tokenAddress string) ([]Pair, CallDebug, error) {
	path := fmt.Sprintf("/token-pairs/v1/%s/%s", url.PathEscape(NormalizeChainID(chainID)), url.PathEscape(tokenAddress))
	return fetchList[Pair](ctx, c, c.pairLimiter, "token_pairs", path, "pairs", "data", "results")
}

// fetchList issues a GET and decodes either a bare array or an object that
// wraps the array under one of keys. Items that fail to decode are skipped.
func fetchList[T any](ctx context.Context, c *Client, lim *rate.Limiter, endpoint, path string, keys ...string) ([]T, CallDebug, error) {
	body, dbg, err := c.get(ctx, lim, endpoint, path)
	if err != nil {
		return nil, dbg, err
	}

	raws, err := unwrapList(body, keys)
	if err != nil {
		ferr := &FetchError{Kind: KindMalformed, URL: dbg.URL, Status: dbg.Status, Err: err}
		dbg.Error = ferr.Error()
		c.observe(dbg, ferr)
		return nil, dbg, ferr
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			dbg.Skipped++
			continue
		}
		out = append(out, item)
	}
	c.observe(dbg, nil)
	return out, dbg, nil
}

// unwrapList returns the array elements of body. A lone record object (one
// carrying chainId and tokenAddress) is returned as a one-element list.
func unwrapList(body []byte, keys []string) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, errors.New("empty body")
	}
	switch trimmed[0] {
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(body, &arr); err != nil {
			return nil, err
		}
		return arr, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, err
		}
		for _, k := range keys {
			v, ok := obj[k]
			if !ok {
				continue
			}
			var arr []json.RawMessage
			if err := json.Unmarshal(v, &arr); err == nil {
				return arr, nil
			}
		}
		if _, ok := obj["tokenAddress"]; ok {
			if _, ok := obj["chainId"]; ok {
				return []json.RawMessage{json.RawMessage(body)}, nil
			}
		}
		// A recognised envelope without data, e.g. {"pairs": null}.
		for _, k := range keys {
			if v, ok := obj[k]; ok && string(v) == "null" {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("object without a list under %v", keys)
	default:
		return nil, fmt.Errorf("unexpected JSON value starting with %q", trimmed[0])
	}
}

// Probe issues a single GET and returns its debug detail. It is used by the
// health check and does not decode the body.
func (c *Client) Probe(ctx context.Context, endpoint, path string) (CallDebug, error) {
	_, dbg, err := c.get(ctx, nil, endpoint, path)
	if err == nil {
		c.observe(dbg, nil)
	}
	return dbg, err
}

func (c *Client) get(ctx context.Context, lim *rate.Limiter, endpoint, path string) ([]byte, CallDebug, error) {
	endpointURL := c.BaseURL + path
	dbg := CallDebug{Endpoint: endpoint, URL: endpointURL}

	fail := func(kind ErrorKind, err error) ([]byte, CallDebug, error) {
		ferr := &FetchError{Kind: kind, URL: endpointURL, Status: dbg.Status, Err: err}
		dbg.Error = ferr.Error()
		c.observe(dbg, ferr)
		return nil, dbg, ferr
	}

	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return fail(classify(err), err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		return fail(KindNetwork, err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	dbg.Elapsed = time.Since(start)
	if err != nil {
		return fail(classify(err), err)
	}
	defer resp.Body.Close()
	dbg.Status = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	dbg.Elapsed = time.Since(start)
	if err != nil {
		return fail(classify(err), fmt.Errorf("read body: %w", err))
	}
	if resp.StatusCode >= 400 {
		dbg.Snippet = snippet(body)
		return fail(KindStatus, fmt.Errorf("status %d", resp.StatusCode))
	}
	return body, dbg, nil
}

func (c *Client) observe(dbg CallDebug, err error) {
	if c.OnCall != nil {
		c.OnCall(dbg, err)
	}
}

func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

func snippet(body []byte) string {
	s := string(body)
	if len(s) > snippetLen {
		s = s[:snippetLen]
	}
	return s
}

// KindOf extracts the failure kind from err, or "" when err is not a FetchError.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
