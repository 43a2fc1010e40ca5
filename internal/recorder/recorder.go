package recorder

import (
	"time"

	"RunnerRadar/internal/model"
)

// Run is one recorded scan cycle.
type Run struct {
	ID          int64         `json:"id"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"durationNs"`
	Status      string        `json:"status"`
	RowCount    int           `json:"rowCount"`
	Blacklisted int           `json:"blacklisted"`
	ErrorCount  int           `json:"errorCount"`
	FailureKind string        `json:"failureKind,omitempty"`
	Detail      string        `json:"detail,omitempty"`
	Rows        []RowRecord   `json:"rows,omitempty"`
}

// RowRecord is the persisted subset of a ranked row.
type RowRecord struct {
	Rank         int     `json:"rank"`
	TokenAddress string  `json:"tokenAddress"`
	Symbol       string  `json:"symbol"`
	Mode         string  `json:"mode,omitempty"`
	Score        float64 `json:"score"`
	SpikeScore   float64 `json:"spikeScore"`
	LiquidityUSD float64 `json:"liquidityUsd"`
	Vol24h       float64 `json:"vol24h"`
	PriceUSD     float64 `json:"priceUsd"`
	Paid         bool    `json:"paid"`
}

// Recorder persists scan history for analysis.
type Recorder interface {
	RecordScan(res *model.ScanResult) error
	RecentRuns(limit int) ([]Run, error)
	Close() error
}
