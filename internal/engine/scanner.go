package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"duck-restfdw/internal/config"
	"duck-restfdw/internal/domain"
	"duck-restfdw/internal/fdw"
	"duck-restfdw/internal/transport"
)

// ScanResult summarizes one completed scan.
type ScanResult struct {
	ScanID   string
	Table    string
	Object   string
	Pages    int
	Rows     int64
	Duration time.Duration
}

// ColumnInfo describes one column of a foreign table.
type ColumnInfo struct {
	Name    string         `json:"name"`
	Type    domain.TypeTag `json:"type"`
	SQLType string         `json:"sql_type"`
}

// TableInfo describes a foreign table definition.
type TableInfo struct {
	Name    string       `json:"name"`
	Server  string       `json:"server"`
	Object  string       `json:"object"`
	Refresh string       `json:"refresh,omitempty"`
	Columns []ColumnInfo `json:"columns"`
}

// Scanner runs foreign table scans, creating one adapter per scan.
type Scanner struct {
	tables  *config.TablesFile
	tr      transport.Transport
	history domain.ScanHistoryRepository
	logger  *slog.Logger
}

// NewScanner creates a Scanner. history may be nil.
func NewScanner(tables *config.TablesFile, tr transport.Transport, history domain.ScanHistoryRepository, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{tables: tables, tr: tr, history: history, logger: logger}
}

// Tables returns the configured table names.
func (s *Scanner) Tables() []string { return s.tables.TableNames() }

// Describe returns the definition of the named table.
func (s *Scanner) Describe(name string) (*TableInfo, error) {
	def, err := s.tables.Table(name)
	if err != nil {
		return nil, err
	}
	info := &TableInfo{Name: def.Name, Server: def.Server, Object: def.Object(), Refresh: def.RefreshSchedule()}
	for _, c := range def.DomainColumns() {
		typ, err := SQLType(c.Type)
		if err != nil {
			return nil, err
		}
		info.Columns = append(info.Columns, ColumnInfo{Name: c.Name, Type: c.Type, SQLType: typ})
	}
	return info, nil
}

// Scan reads every row of the named table and hands each to emit in order.
// An error from emit stops the scan. Every scan, successful or not, is
// written to the scan history.
func (s *Scanner) Scan(ctx context.Context, name string, emit func(domain.Row) error) (*ScanResult, error) {
	def, err := s.tables.Table(name)
	if err != nil {
		return nil, err
	}
	server, err := s.tables.ServerOptions(def.Server)
	if err != nil {
		return nil, err
	}

	rec := &domain.ScanRecord{
		ID:        domain.NewID(),
		TableName: def.Name,
		Object:    def.Object(),
		StartedAt: time.Now(),
	}
	pages, rows, scanErr := s.stream(ctx, server, def, emit)
	rec.FinishedAt = time.Now()
	rec.Pages = pages
	rec.Records = rows
	rec.Status = domain.ScanStatusSucceeded
	if scanErr != nil {
		rec.Status = domain.ScanStatusFailed
		rec.Error = scanErr.Error()
	}
	s.record(ctx, rec)

	if scanErr != nil {
		return nil, fmt.Errorf("scan %s: %w", name, scanErr)
	}
	return &ScanResult{
		ScanID:   rec.ID,
		Table:    rec.TableName,
		Object:   rec.Object,
		Pages:    pages,
		Rows:     rows,
		Duration: rec.Duration(),
	}, nil
}

func (s *Scanner) stream(ctx context.Context, server domain.Options, def config.TableDef, emit func(domain.Row) error) (pages int, rows int64, err error) {
	a := fdw.New(s.tr, fdw.WithLogger(s.logger.With("table", def.Name)))
	if err := a.Init(ctx, server); err != nil {
		return 0, 0, err
	}
	defer func() { _ = a.EndScan(ctx) }()

	err = a.BeginScan(ctx, def.ScanRequest())
	pages, _, _ = a.Stats()
	if err != nil {
		return pages, 0, err
	}
	for {
		if err := ctx.Err(); err != nil {
			return pages, rows, err
		}
		var row domain.Row
		more, err := a.IterScan(ctx, &row)
		if err != nil {
			return pages, rows, err
		}
		if !more {
			return pages, rows, nil
		}
		if err := emit(row); err != nil {
			return pages, rows, err
		}
		rows++
	}
}

func (s *Scanner) record(ctx context.Context, rec *domain.ScanRecord) {
	if s.history == nil {
		return
	}
	if err := s.history.Create(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("failed to record scan history", "table", rec.TableName, "error", err)
	}
}
