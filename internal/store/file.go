package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"RunnerRadar/internal/model"
)

// ErrMalformedConfig is returned by Load alongside usable defaults when the
// config file exists but cannot be decoded. Callers should treat it as a warning.
var ErrMalformedConfig = errors.New("malformed scanner config")

const (
	keyBlacklist       = "token_blacklist"
	keyLegacyBlacklist = "blocked_token_addresses"
	keyLegacyMaxRows   = "max_rows"
)

// Load reads the scan config and blacklist from a JSON file. A missing file
// yields defaults and no error. A corrupt file yields defaults and an error
// wrapping ErrMalformedConfig.
func Load(path string) (*model.ScanConfig, *model.Blacklist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.DefaultScanConfig(), model.NewBlacklist(), nil
		}
		return model.DefaultScanConfig(), model.NewBlacklist(), fmt.Errorf("%w: read %s: %v", ErrMalformedConfig, path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.DefaultScanConfig(), model.NewBlacklist(), fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}

	cfg := model.DefaultScanConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return model.DefaultScanConfig(), model.NewBlacklist(), fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}
	if _, ok := raw["max_display_rows"]; !ok {
		if v, ok := raw[keyLegacyMaxRows]; ok {
			var n int
			if json.Unmarshal(v, &n) == nil && n > 0 {
				cfg.MaxDisplayRows = n
			}
		}
	}

	key := keyBlacklist
	if _, ok := raw[key]; !ok {
		key = keyLegacyBlacklist
	}
	return cfg, decodeBlacklist(raw[key]), nil
}

// decodeBlacklist keeps string entries and skips anything else.
func decodeBlacklist(msg json.RawMessage) *model.Blacklist {
	bl := model.NewBlacklist()
	if len(msg) == 0 {
		return bl
	}
	var items []any
	if err := json.Unmarshal(msg, &items); err != nil {
		return bl
	}
	for _, it := range items {
		if s, ok := it.(string); ok {
			bl.Add(s)
		}
	}
	return bl
}

// Save writes cfg and bl to path atomically. Keys already present in the file
// that this package does not know about are carried over unchanged.
func Save(path string, cfg *model.ScanConfig, bl *model.Blacklist) error {
	merged := make(map[string]json.RawMessage)
	if data, err := os.ReadFile(path); err == nil {
		// A corrupt file is simply overwritten.
		_ = json.Unmarshal(data, &merged)
	}
	delete(merged, keyLegacyBlacklist)
	delete(merged, keyLegacyMaxRows)

	known, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return fmt.Errorf("remarshal config: %w", err)
	}
	if cfg.LastScanTS == "" {
		// omitempty would otherwise leave a stale timestamp behind
		delete(merged, "last_scan_ts")
	}
	for k, v := range fields {
		merged[k] = v
	}
	entries, err := json.Marshal(bl.Entries())
	if err != nil {
		return fmt.Errorf("marshal blacklist: %w", err)
	}
	merged[keyBlacklist] = entries

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal file: %w", err)
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
