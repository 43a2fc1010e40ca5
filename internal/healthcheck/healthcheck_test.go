package healthcheck

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RunnerRadar/internal/dexscreener"
)

func TestEndpoints(t *testing.T) {
	eps := Endpoints("SOL")
	require.Len(t, eps, 8)
	assert.Equal(t, "/tokens/v1/solana/"+wrappedSOL, eps[5].Path)

	names := make(map[string]bool)
	for _, ep := range eps {
		assert.False(t, names[ep.Name], "duplicate endpoint %s", ep.Name)
		names[ep.Name] = true
	}
}

func TestRun_AllReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := dexscreener.NewClient(dexscreener.Options{BaseURL: srv.URL})
	rep := Run(context.Background(), client, Endpoints("solana"))

	assert.True(t, rep.OK())
	assert.Equal(t, 0, rep.Failed())
	for _, res := range rep.Results {
		assert.Equal(t, http.StatusOK, res.Debug.Status)
	}
}

func TestRun_OneFailingEndpointStillReportsAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/ads/") {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream down"))
			return
		}
		w.Write([]byte(`{"pairs": []}`))
	}))
	defer srv.Close()

	client := dexscreener.NewClient(dexscreener.Options{BaseURL: srv.URL})
	eps := Endpoints("solana")
	rep := Run(context.Background(), client, eps)

	require.Len(t, rep.Results, len(eps))
	assert.False(t, rep.OK())
	assert.Equal(t, 1, rep.Failed())

	ads := rep.Results[2]
	assert.Equal(t, "ads_latest", ads.Endpoint.Name)
	assert.False(t, ads.OK)
	assert.Equal(t, dexscreener.KindStatus, ads.Kind)
	assert.Equal(t, http.StatusBadGateway, ads.Debug.Status)
	assert.Equal(t, "upstream down", ads.Debug.Snippet)

	var buf bytes.Buffer
	rep.Write(&buf)
	out := buf.String()
	assert.Contains(t, out, "[FAIL] ads_latest")
	assert.Contains(t, out, "kind=status")
	assert.Contains(t, out, "7/8 endpoints reachable")
}

func TestRun_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	client := dexscreener.NewClient(dexscreener.Options{BaseURL: srv.URL})
	rep := Run(context.Background(), client, Endpoints("solana")[:2])

	assert.Equal(t, 2, rep.Failed())
	assert.Equal(t, dexscreener.KindNetwork, rep.Results[0].Kind)
	assert.NotEmpty(t, rep.Results[0].Debug.Error)
}

func TestReport_EmptyIsNotOK(t *testing.T) {
	assert.False(t, (&Report{}).OK())
}
