// Package server exposes scan results and the config store over a JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"RunnerRadar/internal/metrics"
	"RunnerRadar/internal/model"
	"RunnerRadar/internal/recorder"
	"RunnerRadar/internal/scheduler"
	"RunnerRadar/internal/store"
	"RunnerRadar/internal/wallet"
)

const (
	defaultHistoryLimit = 20
	shutdownTimeout     = 10 * time.Second
)

// Server serves the HTTP API.
type Server struct {
	Sched    *scheduler.Scheduler
	Store    *store.Manager
	Recorder recorder.Recorder
	Metrics  *metrics.Metrics

	mux *http.ServeMux
}

// New creates a Server and registers its routes.
func New(sched *scheduler.Scheduler, sm *store.Manager, rec recorder.Recorder, m *metrics.Metrics) *Server {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	s := &Server{Sched: sched, Store: sm, Recorder: rec, Metrics: m, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if m != nil {
		s.mux.Handle("GET /metrics", m.Handler())
	}
	s.mux.HandleFunc("GET /api/results", s.handleResults)
	s.mux.HandleFunc("POST /api/scan", s.handleScan)
	s.mux.HandleFunc("GET /api/config", s.handleGetConfig)
	s.mux.HandleFunc("PUT /api/config", s.handlePutConfig)
	s.mux.HandleFunc("GET /api/blacklist", s.handleGetBlacklist)
	s.mux.HandleFunc("POST /api/blacklist", s.handleAddBlacklist)
	s.mux.HandleFunc("DELETE /api/blacklist", s.handleClearBlacklist)
	s.mux.HandleFunc("DELETE /api/blacklist/{address}", s.handleRemoveBlacklist)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/wallet", s.handleWallet)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] HTTP API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":   "ok",
		"scanning": s.Sched.Progress().Running,
	}
	if last := s.Sched.LastResult(); last != nil {
		resp["lastStatus"] = last.Status
		resp["lastScanAt"] = last.StartedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

type resultsResponse struct {
	Status       model.ScanStatus       `json:"status"`
	Message      string                 `json:"message"`
	StartedAt    *time.Time             `json:"startedAt,omitempty"`
	DurationMs   int64                  `json:"durationMs"`
	Rows         []model.TokenCandidate `json:"rows"`
	Total        int                    `json:"total"`
	Hidden       int                    `json:"hidden"`
	Blacklisted  int                    `json:"blacklisted"`
	Counts       map[string]int         `json:"counts,omitempty"`
	WhyFiltered  []model.FilteredReason `json:"whyFiltered,omitempty"`
	Errors       []string               `json:"errors,omitempty"`
	Warnings     []string               `json:"warnings,omitempty"`
	FailureKind  string                 `json:"failureKind,omitempty"`
	StatusDetail string                 `json:"statusDetail,omitempty"`
	Progress     scheduler.Progress     `json:"progress"`
}

// handleResults serves the last cycle. Tokens blacklisted since that cycle
// are removed here.
func (s *Server) handleResults(w http.ResponseWriter, _ *http.Request) {
	cfg, bl := s.Store.Snapshot()
	last := s.Sched.LastResult()
	if last == nil {
		writeJSON(w, http.StatusOK, resultsResponse{
			Status:   "pending",
			Message:  "no scan has run yet",
			Rows:     []model.TokenCandidate{},
			Progress: s.Sched.Progress(),
		})
		return
	}

	rows := make([]model.TokenCandidate, 0, len(last.Rows))
	hidden := 0
	for _, r := range last.Rows {
		if bl.Contains(r.TokenAddress) {
			hidden++
			continue
		}
		rows = append(rows, r)
	}
	total := len(rows)
	if cfg.MaxDisplayRows > 0 && len(rows) > cfg.MaxDisplayRows {
		rows = rows[:cfg.MaxDisplayRows]
	}

	started := last.StartedAt
	writeJSON(w, http.StatusOK, resultsResponse{
		Status:       last.Status,
		Message:      last.Message(),
		StartedAt:    &started,
		DurationMs:   last.Duration.Milliseconds(),
		Rows:         rows,
		Total:        total,
		Hidden:       hidden,
		Blacklisted:  last.Blacklisted,
		Counts:       last.Counts,
		WhyFiltered:  last.WhyFiltered,
		Errors:       last.Errors,
		Warnings:     last.Warnings,
		FailureKind:  last.FailureKind,
		StatusDetail: last.StatusDetail,
		Progress:     s.Sched.Progress(),
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	res, err := s.Sched.RunNow(r.Context())
	if errors.Is(err, scheduler.ErrScanInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.Config())
}

// handlePutConfig merges the body into the current config. Omitted fields
// keep their value; clamped values are reported as warnings.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	next := s.Store.Config()
	if err := json.NewDecoder(r.Body).Decode(next); err != nil {
		writeError(w, http.StatusBadRequest, "invalid config: "+err.Error())
		return
	}
	warnings, err := s.Store.UpdateConfig(func(cfg *model.ScanConfig) {
		last := cfg.LastScanTS
		*cfg = *next
		cfg.LastScanTS = last
	})
	if err != nil {
		log.Printf("[ERROR] save scanner config: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"config":   s.Store.Config(),
		"warnings": warnings,
	})
}

func (s *Server) handleGetBlacklist(w http.ResponseWriter, _ *http.Request) {
	entries := s.Store.Blacklist().Entries()
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func (s *Server) handleAddBlacklist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	body.Address = strings.TrimSpace(body.Address)
	if body.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	added, warning, err := s.Store.AddToBlacklist(body.Address)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	resp := map[string]any{"address": body.Address, "added": added}
	if warning != "" {
		resp["warning"] = warning
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleRemoveBlacklist(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")
	removed, err := s.Store.RemoveFromBlacklist(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "address not in blacklist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": addr, "removed": true})
}

func (s *Server) handleClearBlacklist(w http.ResponseWriter, _ *http.Request) {
	if err := s.Store.ClearBlacklist(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.Recorder.RecentRuns(limit)
	if err != nil {
		log.Printf("[ERROR] load scan history: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	cfg := s.Store.Config()
	sol, err := s.Sched.Balance(r.Context(), cfg.RPC, cfg.Wallet)
	switch {
	case errors.Is(err, wallet.ErrNoWallet):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":     cfg.Wallet,
		"balanceSol": sol,
		"budgetPct":  cfg.BudgetPct,
		"budgetSol":  wallet.BudgetIndication(sol, cfg.BudgetPct),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[WARN] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
