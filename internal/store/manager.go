package store

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mr-tron/base58"

	"RunnerRadar/internal/model"
)

// Manager owns the scan config and blacklist for the process and persists
// every change to disk.
type Manager struct {
	mu       sync.Mutex
	cfg      *model.ScanConfig
	bl       *model.Blacklist
	filePath string
	loadErr  error
}

// NewManager loads state from filePath, falling back to defaults when the file
// is missing or corrupt, and writes the normalized state back. A corrupt file
// is first copied to filePath + ".bak".
func NewManager(filePath string) *Manager {
	cfg, bl, err := Load(filePath)
	if err != nil {
		log.Printf("[WARN] %v, using defaults", err)
		if errors.Is(err, ErrMalformedConfig) {
			backupCorrupt(filePath)
		}
	}
	for _, w := range cfg.Normalize() {
		log.Printf("[WARN] scanner config: %s", w)
	}

	m := &Manager{cfg: cfg, bl: bl, filePath: filePath, loadErr: err}
	if err := m.save(); err != nil {
		log.Printf("[ERROR] failed to save scanner config: %v", err)
	}
	return m
}

// LoadWarning returns the error encountered while loading, if any.
func (m *Manager) LoadWarning() error {
	return m.loadErr
}

// Path returns the backing file path.
func (m *Manager) Path() string { return m.filePath }

// Config returns a copy of the current scan config.
func (m *Manager) Config() *model.ScanConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Clone()
}

// Blacklist returns a copy of the current blacklist.
func (m *Manager) Blacklist() *model.Blacklist {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bl.Clone()
}

// Snapshot returns consistent copies of both config and blacklist.
func (m *Manager) Snapshot() (*model.ScanConfig, *model.Blacklist) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Clone(), m.bl.Clone()
}

// UpdateConfig applies fn to a copy of the config, normalizes the result and
// persists it. The returned warnings list every clamped value.
func (m *Manager) UpdateConfig(fn func(cfg *model.ScanConfig)) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.cfg.Clone()
	fn(next)
	// Last scan time is owned by MarkScanned.
	next.LastScanTS = m.cfg.LastScanTS
	warnings := next.Normalize()
	if err := Save(m.filePath, next, m.bl); err != nil {
		return warnings, err
	}
	m.cfg = next
	return warnings, nil
}

// AddToBlacklist adds addr. The warning is set when addr does not look like
// a Solana address; the entry is kept anyway.
func (m *Manager) AddToBlacklist(addr string) (added bool, warning string, err error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false, "", errors.New("empty token address")
	}
	if err := ValidateAddress(addr); err != nil {
		warning = err.Error()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bl.Contains(addr) {
		return false, warning, nil
	}
	next := m.bl.Clone()
	next.Add(addr)
	if err := Save(m.filePath, m.cfg, next); err != nil {
		return false, warning, err
	}
	m.bl = next
	return true, warning, nil
}

// RemoveFromBlacklist removes addr and reports whether it was present.
func (m *Manager) RemoveFromBlacklist(addr string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.bl.Contains(addr) {
		return false, nil
	}
	next := m.bl.Clone()
	next.Remove(addr)
	if err := Save(m.filePath, m.cfg, next); err != nil {
		return false, err
	}
	m.bl = next
	return true, nil
}

// ClearBlacklist empties the blacklist.
func (m *Manager) ClearBlacklist() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := model.NewBlacklist()
	if err := Save(m.filePath, m.cfg, next); err != nil {
		return err
	}
	m.bl = next
	return nil
}

// MarkScanned records the time of the last successful scan.
func (m *Manager) MarkScanned(at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.cfg.Clone()
	next.LastScanTS = at.UTC().Format("2006-01-02 15:04:05 UTC")
	if err := Save(m.filePath, next, m.bl); err != nil {
		return err
	}
	m.cfg = next
	return nil
}

func (m *Manager) save() error {
	return Save(m.filePath, m.cfg, m.bl)
}

// backupCorrupt copies an undecodable config aside before defaults replace it.
func backupCorrupt(filePath string) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	bak := filePath + ".bak"
	if err := os.WriteFile(bak, data, 0o644); err != nil {
		log.Printf("[ERROR] back up corrupt scanner config: %v", err)
		return
	}
	log.Printf("[WARN] corrupt scanner config copied to %s", bak)
}

// ValidateAddress checks that addr decodes as a 32-byte base58 public key.
func ValidateAddress(addr string) error {
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("%q is not base58: %v", addr, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%q decodes to %d bytes, want 32", addr, len(raw))
	}
	return nil
}
