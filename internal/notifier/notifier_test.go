package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RunnerRadar/internal/model"
)

func TestFormatScanReport(t *testing.T) {
	res := &model.ScanResult{
		Status:    model.StatusOK,
		StartedAt: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
		Rows:      make([]model.TokenCandidate, 3),
	}
	rows := []model.TokenCandidate{
		{TokenAddress: "GE5BJqTsVWfgv8qa6zQ6WFnLQGRATu3StN59kmTFpump", Symbol: "<PEPE>", Mode: model.ModeEarly, BoostAmount: 50, IsCTO: true,
			LiquidityUSD: 25000, Vol1h: 1500000, Age: 90 * time.Minute, URLDexscreener: "https://dexscreener.com/solana/x"},
		{TokenAddress: "BBB", Symbol: "BBB", Age: 999999 * time.Minute},
		{TokenAddress: "CCC", Symbol: "CCC"},
	}

	msg := FormatScanReport(res, rows, 2)
	assert.Contains(t, msg, "2026-10-15 09:00 UTC")
	assert.Contains(t, msg, "&lt;PEPE&gt;", "symbols are escaped")
	assert.Contains(t, msg, "[early]")
	assert.Contains(t, msg, "⚡50 CTO")
	assert.Contains(t, msg, "liq $25.0K")
	assert.Contains(t, msg, "vol1h $1.50M")
	assert.Contains(t, msg, "age 1.5h")
	assert.Contains(t, msg, "age ?")
	assert.NotContains(t, msg, "CCC</b>")
	assert.Contains(t, msg, "and 1 more")
}

func TestFormatScanReport_Unavailable(t *testing.T) {
	res := &model.ScanResult{Status: model.StatusUnavailable, StatusDetail: "timeout"}
	msg := FormatScanReport(res, nil, 5)
	assert.Contains(t, msg, "no data available: timeout")
}

func TestFormatBlacklistAndConfig(t *testing.T) {
	assert.Contains(t, FormatBlacklist(nil), "empty")
	assert.Contains(t, FormatBlacklist([]string{"AAA", "BBB"}), "(2)")

	cfg := model.DefaultScanConfig()
	cfg.LastScanTS = "2026-10-15 09:00:00 UTC"
	out := FormatConfig(cfg)
	assert.Contains(t, out, "early_strict, early, strict, degen")
	assert.Contains(t, out, "liq ≥ $15.0K")
	assert.Contains(t, out, "Last scan: 2026-10-15 09:00:00 UTC")
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	text := strings.Repeat("a", 6) + "\n" + strings.Repeat("b", 6)
	assert.Equal(t, []string{"aaaaaa", "bbbbbb"}, splitMessage(text, 10))

	assert.Equal(t, []string{"aaaa", "aa"}, splitMessage("aaaaaa", 4))
}

func TestSplitMessage_KeepsRunesAndTagsWhole(t *testing.T) {
	assert.Equal(t, []string{"a", "é"}, splitMessage("aé", 2))
	assert.Equal(t, []string{"🚀", "🚀", "🚀"}, splitMessage(strings.Repeat("🚀", 3), 5))
	assert.Equal(t, []string{"ab", "<b>c", "d", "</b>"}, splitMessage("ab<b>cd</b>", 4))

	text := strings.Repeat("🔥 <b>RUNNER</b> liq $12.3K ", 40)
	for _, part := range splitMessage(text, 50) {
		assert.LessOrEqual(t, len(part), 50)
		assert.True(t, utf8.ValidString(part), part)
		assert.Equal(t, strings.Count(part, "<"), strings.Count(part, ">"), part)
	}
}

type fakeTelegram struct {
	mu       sync.Mutex
	sent     []map[string]any
	fail     int
	updates  string
	polled   chan struct{}
	pollOnce sync.Once
}

func (f *fakeTelegram) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.fail > 0 {
				f.fail--
				http.Error(w, `{"ok":false}`, http.StatusBadGateway)
				return
			}
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			f.sent = append(f.sent, payload)
			w.Write([]byte(`{"ok":true}`))
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if r.URL.Query().Get("offset") == "0" {
				w.Write([]byte(f.updates))
				return
			}
			f.pollOnce.Do(func() { close(f.polled) })
			<-r.Context().Done()
		default:
			http.NotFound(w, r)
		}
	}
}

func (f *fakeTelegram) messages() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.sent...)
}

func newFakeNotifier(t *testing.T, f *fakeTelegram) *TelegramNotifier {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("TOKEN", "42", "")
	n.APIBase = srv.URL
	return n
}

func TestSend(t *testing.T) {
	f := &fakeTelegram{}
	n := newFakeNotifier(t, f)

	require.NoError(t, n.Send("hello"))
	msgs := f.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "42", msgs[0]["chat_id"])
	assert.Equal(t, "HTML", msgs[0]["parse_mode"])
	assert.Equal(t, "hello", msgs[0]["text"])
}

func TestSendWithRetry(t *testing.T) {
	f := &fakeTelegram{fail: 1}
	n := newFakeNotifier(t, f)

	require.NoError(t, n.SendWithRetry(context.Background(), "retry me", 2))
	assert.Len(t, f.messages(), 1)

	f.mu.Lock()
	f.fail = 10
	f.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, n.SendWithRetry(ctx, "give up", 3))
}

func TestStartPolling_OnlyConfiguredChat(t *testing.T) {
	f := &fakeTelegram{
		polled: make(chan struct{}),
		updates: `{"ok":true,"result":[
			{"update_id":1,"message":{"text":"/top","chat":{"id":42}}},
			{"update_id":2,"message":{"text":"/scan","chat":{"id":7}}}
		]}`,
	}
	n := newFakeNotifier(t, f)

	var got []string
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.StartPolling(ctx, func(cmd string) string {
			got = append(got, cmd)
			return "ok " + cmd
		})
		close(done)
	}()

	select {
	case <-f.polled:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not advance the offset")
	}
	cancel()
	<-done

	assert.Equal(t, []string{"/top"}, got)
	msgs := f.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ok /top", msgs[0]["text"])
}
