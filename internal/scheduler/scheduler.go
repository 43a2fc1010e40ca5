package scheduler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"sync"
	"time"

	"RunnerRadar/internal/collector"
	"RunnerRadar/internal/metrics"
	"RunnerRadar/internal/model"
	"RunnerRadar/internal/notifier"
	"RunnerRadar/internal/recorder"
	"RunnerRadar/internal/scanner"
	"RunnerRadar/internal/store"
	"RunnerRadar/internal/wallet"

	"github.com/robfig/cron/v3"
)

// ErrScanInProgress is returned when a scan is triggered while another runs.
var ErrScanInProgress = errors.New("scan already in progress")

// maxAnnounced bounds the set of tokens already sent to Telegram.
const maxAnnounced = 5000

// Sender delivers notifications. *notifier.TelegramNotifier implements it.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Progress reports how far the running cycle got.
type Progress struct {
	Running bool `json:"running"`
	Done    int  `json:"done"`
	Total   int  `json:"total"`
}

// Scheduler runs scan cycles on a cron schedule and on demand. At most one
// cycle runs at a time.
type Scheduler struct {
	Cron     *cron.Cron
	Engine   *scanner.Engine
	Fetcher  collector.Fetcher
	Store    *store.Manager
	Notifier Sender
	Recorder recorder.Recorder
	Metrics  *metrics.Metrics
	Ctx      context.Context

	// Notify enables pushing new runners after scheduled cycles.
	Notify    bool
	NotifyTop int

	// Balance looks up a wallet balance; defaults to wallet.Balance.
	Balance func(ctx context.Context, rpcURL, wallet string) (float64, error)

	scanMu    sync.Mutex
	mu        sync.RWMutex
	last      *model.ScanResult
	progress  Progress
	announced map[string]bool
}

// NewScheduler creates a new Scheduler. n may be nil to disable notifications.
func NewScheduler(ctx context.Context, eng *scanner.Engine, f collector.Fetcher, sm *store.Manager, n Sender, rec recorder.Recorder, m *metrics.Metrics) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	s := &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		Engine:    eng,
		Fetcher:   f,
		Store:     sm,
		Notifier:  n,
		Recorder:  rec,
		Metrics:   m,
		Ctx:       ctx,
		NotifyTop: 5,
		Balance:   wallet.Balance,
		announced: make(map[string]bool),
	}
	eng.Progress = s.setProgress
	return s
}

// Register schedules the periodic scan.
func (s *Scheduler) Register(scanCron string) error {
	if _, err := s.Cron.AddFunc(scanCron, s.scheduledScan); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

func (s *Scheduler) scheduledScan() {
	res, err := s.RunNow(s.Ctx)
	if errors.Is(err, ErrScanInProgress) {
		log.Println("[WARN] scheduled scan skipped, previous cycle still running")
		return
	}
	if res != nil && s.Notify {
		s.announce(res)
	}
}

// RunNow runs one scan cycle immediately. It returns ErrScanInProgress
// without waiting when a cycle is already running.
func (s *Scheduler) RunNow(ctx context.Context) (*model.ScanResult, error) {
	if !s.scanMu.TryLock() {
		s.Metrics.RecordSkipped()
		return nil, ErrScanInProgress
	}
	defer s.scanMu.Unlock()

	s.mu.Lock()
	s.progress = Progress{Running: true}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.progress.Running = false
		s.mu.Unlock()
	}()

	cfg, bl := s.Store.Snapshot()
	log.Println("[INFO] running scan cycle")
	res := s.Engine.RunCycle(ctx, cfg, bl, s.Fetcher)

	switch res.Status {
	case model.StatusUnavailable:
		log.Printf("[WARN] scan unavailable (%s): %s", res.FailureKind, res.StatusDetail)
	default:
		log.Printf("[INFO] %s in %v", res.Message(), res.Duration.Round(time.Millisecond))
		if err := s.Store.MarkScanned(res.StartedAt); err != nil {
			log.Printf("[ERROR] persist last scan time: %v", err)
		}
	}
	for _, w := range res.Warnings {
		log.Printf("[WARN] config: %s", w)
	}

	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()

	s.Metrics.ObserveCycle(&res)
	if err := s.Recorder.RecordScan(&res); err != nil {
		log.Printf("[ERROR] record scan: %v", err)
	}
	return &res, nil
}

// LastResult returns the most recent cycle, or nil before the first one.
func (s *Scheduler) LastResult() *model.ScanResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Progress returns the state of the running cycle.
func (s *Scheduler) Progress() Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

func (s *Scheduler) setProgress(done, total int) {
	s.mu.Lock()
	s.progress.Done, s.progress.Total = done, total
	s.mu.Unlock()
}

// announce sends the rows of res whose token was never announced before.
func (s *Scheduler) announce(res *model.ScanResult) {
	if s.Notifier == nil || res.Status != model.StatusOK {
		return
	}
	var fresh []model.TokenCandidate
	s.mu.Lock()
	if len(s.announced) > maxAnnounced {
		s.announced = make(map[string]bool)
	}
	for _, r := range res.Rows {
		if k := r.Key(); !s.announced[k] {
			s.announced[k] = true
			fresh = append(fresh, r)
		}
	}
	s.mu.Unlock()
	if len(fresh) == 0 {
		return
	}
	s.trySend(notifier.FormatScanReport(res, fresh, s.NotifyTop))
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	cmd := strings.ToLower(fields[0])
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch cmd {
	case "/scan":
		res, err := s.RunNow(s.Ctx)
		if errors.Is(err, ErrScanInProgress) {
			return "⏳ A scan is already running"
		}
		return notifier.FormatScanReport(res, res.Rows, s.NotifyTop)
	case "/top":
		res := s.LastResult()
		if res == nil {
			return "No scan has run yet. Use /scan"
		}
		_, bl := s.Store.Snapshot()
		return notifier.FormatScanReport(res, visibleRows(res.Rows, bl), s.NotifyTop)
	case "/blacklist":
		if arg == "" {
			return "Usage: /blacklist &lt;address&gt;"
		}
		added, warning, err := s.Store.AddToBlacklist(arg)
		if err != nil {
			return "❌ " + html.EscapeString(err.Error())
		}
		reply := "✅ Blacklisted <code>" + html.EscapeString(arg) + "</code>"
		if !added {
			reply = "Already blacklisted"
		}
		if warning != "" {
			reply += "\n⚠️ " + html.EscapeString(warning)
		}
		return reply
	case "/unblacklist":
		if arg == "" {
			return "Usage: /unblacklist &lt;address&gt;"
		}
		removed, err := s.Store.RemoveFromBlacklist(arg)
		if err != nil {
			return "❌ " + html.EscapeString(err.Error())
		}
		if !removed {
			return "Not in blacklist"
		}
		return "✅ Removed <code>" + html.EscapeString(arg) + "</code>"
	case "/blacklisted":
		return notifier.FormatBlacklist(s.Store.Blacklist().Entries())
	case "/config":
		return notifier.FormatConfig(s.Store.Config())
	case "/balance":
		cfg := s.Store.Config()
		sol, err := s.Balance(s.Ctx, cfg.RPC, cfg.Wallet)
		if err != nil {
			return "❌ balance: " + html.EscapeString(err.Error())
		}
		return notifier.FormatBalance(cfg.Wallet, sol, cfg.BudgetPct, wallet.BudgetIndication(sol, cfg.BudgetPct))
	default:
		return notifier.FormatHelp()
	}
}

// visibleRows drops rows blacklisted after the cycle ran.
func visibleRows(rows []model.TokenCandidate, bl *model.Blacklist) []model.TokenCandidate {
	out := make([]model.TokenCandidate, 0, len(rows))
	for _, r := range rows {
		if !bl.Contains(r.TokenAddress) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	err := s.Notifier.SendWithRetry(s.Ctx, text, 3)
	s.Metrics.RecordNotification(err)
	if err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
