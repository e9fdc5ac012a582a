// Package repository implements domain persistence over the SQLite store.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"duck-restfdw/internal/domain"
)

// ScanHistoryRepo implements domain.ScanHistoryRepository.
type ScanHistoryRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

var _ domain.ScanHistoryRepository = (*ScanHistoryRepo)(nil)

// NewScanHistoryRepo creates a ScanHistoryRepo. readDB may be nil, in which
// case reads go through writeDB.
func NewScanHistoryRepo(writeDB, readDB *sql.DB) *ScanHistoryRepo {
	if readDB == nil {
		readDB = writeDB
	}
	return &ScanHistoryRepo{writeDB: writeDB, readDB: readDB}
}

// Create stores rec, assigning an ID when it has none.
func (r *ScanHistoryRepo) Create(ctx context.Context, rec *domain.ScanRecord) error {
	if rec.ID == "" {
		rec.ID = domain.NewID()
	}
	_, err := r.writeDB.ExecContext(ctx, `
		INSERT INTO scan_history (id, table_name, object, pages, records, status, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TableName, rec.Object, rec.Pages, rec.Records, rec.Status, rec.Error,
		formatTime(rec.StartedAt), formatTime(rec.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert scan history: %w", err)
	}
	return nil
}

// List returns matching entries, newest first, and the total match count.
func (r *ScanHistoryRepo) List(ctx context.Context, filter domain.ScanHistoryFilter) ([]domain.ScanRecord, int64, error) {
	// nil filter = match everything
	var tableFilter, statusFilter interface{}
	if filter.TableName != nil {
		tableFilter = *filter.TableName
	}
	if filter.Status != nil {
		statusFilter = *filter.Status
	}

	const where = `WHERE (?1 IS NULL OR table_name = ?1) AND (?2 IS NULL OR status = ?2)`

	var total int64
	if err := r.readDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scan_history `+where, tableFilter, statusFilter).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count scan history: %w", err)
	}

	rows, err := r.readDB.QueryContext(ctx, `
		SELECT id, table_name, object, pages, records, status, error, started_at, finished_at
		FROM scan_history `+where+`
		ORDER BY started_at DESC, id DESC
		LIMIT ?3 OFFSET ?4`,
		tableFilter, statusFilter, filter.Page.Limit(), filter.Page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list scan history: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.ScanRecord
	for rows.Next() {
		var rec domain.ScanRecord
		var started, finished string
		if err := rows.Scan(&rec.ID, &rec.TableName, &rec.Object, &rec.Pages, &rec.Records,
			&rec.Status, &rec.Error, &started, &finished); err != nil {
			return nil, 0, fmt.Errorf("scan history row: %w", err)
		}
		rec.StartedAt = parseTime(started)
		rec.FinishedAt = parseTime(finished)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list scan history: %w", err)
	}
	return out, total, nil
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
