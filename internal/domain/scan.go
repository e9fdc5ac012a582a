package domain

import (
	"context"
	"time"
)

// Scan history statuses.
const (
	ScanStatusSucceeded = "succeeded"
	ScanStatusFailed    = "failed"
)

// ScanRecord is one entry of the scan history kept by the host.
type ScanRecord struct {
	ID         string
	TableName  string
	Object     string
	Pages      int
	Records    int64
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the scan ran.
func (s ScanRecord) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// ScanHistoryFilter narrows a scan history listing.
type ScanHistoryFilter struct {
	TableName *string
	Status    *string
	Page      PageRequest
}

// ScanHistoryRepository persists scan history entries.
type ScanHistoryRepository interface {
	Create(ctx context.Context, rec *ScanRecord) error
	List(ctx context.Context, filter ScanHistoryFilter) ([]ScanRecord, int64, error)
}

// Reporter receives advisory diagnostics from the adapter. Implementations must
// never be handed a full access token.
type Reporter interface {
	PageFetched(page, pageRecords, totalRecords int)
	Info(msg string, args ...any)
}
