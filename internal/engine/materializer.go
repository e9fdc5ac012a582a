package engine

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"

	"github.com/duckdb/duckdb-go/v2"
	"golang.org/x/sync/singleflight"

	"duck-restfdw/internal/domain"
)

const stagingPrefix = "__restfdw_stage_"

// Materializer loads foreign tables into DuckDB tables of the same name.
// Concurrent requests for the same table share one load.
type Materializer struct {
	db      *sql.DB
	scanner *Scanner
	logger  *slog.Logger
	group   singleflight.Group
}

// NewMaterializer creates a Materializer writing into db.
func NewMaterializer(db *sql.DB, scanner *Scanner, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{db: db, scanner: scanner, logger: logger}
}

// Scanner returns the scanner the materializer loads through.
func (m *Materializer) Scanner() *Scanner { return m.scanner }

// Materialize scans the named table and replaces its DuckDB copy. Rows are
// appended to a staging table first; the visible table only changes when
// every row was loaded. The shared load is detached from the caller's
// cancellation; a caller whose ctx ends stops waiting and gets ctx.Err().
func (m *Materializer) Materialize(ctx context.Context, name string) (*ScanResult, error) {
	ch := m.group.DoChan(name, func() (interface{}, error) {
		return m.materialize(context.WithoutCancel(ctx), name)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ScanResult), nil
	}
}

func (m *Materializer) materialize(ctx context.Context, name string) (*ScanResult, error) {
	def, err := m.scanner.tables.Table(name)
	if err != nil {
		return nil, err
	}
	cols := def.DomainColumns()
	stage := stagingPrefix + name

	ddl, err := createTableSQL(stage, cols)
	if err != nil {
		return nil, fmt.Errorf("materialize %s: %w", name, err)
	}

	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire duckdb connection: %w", err)
	}
	defer conn.Close() //nolint:errcheck

	if _, err := conn.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create staging table for %s: %w", name, err)
	}
	dropStage := func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS "+quoteIdent(stage))
	}

	var res *ScanResult
	err = conn.Raw(func(raw any) error {
		driverConn, ok := raw.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected raw conn type %T", raw)
		}
		appender, err := duckdb.NewAppenderFromConn(driverConn, "", stage)
		if err != nil {
			return fmt.Errorf("create appender: %w", err)
		}

		res, err = m.scanner.Scan(ctx, name, func(row domain.Row) error {
			return appender.AppendRow(appendValues(row)...)
		})
		if err != nil {
			_ = appender.Close()
			return err
		}
		if err := appender.Close(); err != nil {
			return fmt.Errorf("flush appender: %w", err)
		}
		return nil
	})
	if err != nil {
		dropStage()
		return nil, fmt.Errorf("materialize %s: %w", name, err)
	}

	if err := swap(ctx, conn, name, stage, cols); err != nil {
		dropStage()
		return nil, fmt.Errorf("materialize %s: %w", name, err)
	}

	m.logger.Info("table materialized", "table", name, "rows", res.Rows, "pages", res.Pages, "duration", res.Duration)
	return res, nil
}

func swap(ctx context.Context, conn *sql.Conn, name, stage string, cols []domain.Column) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin swap: %w", err)
	}
	if _, err := tx.ExecContext(ctx, swapSQL(name, stage, cols)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("replace table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE "+quoteIdent(stage)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("drop staging table: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit swap: %w", err)
	}
	return nil
}

// Loaded reports whether the named table has been materialized.
func (m *Materializer) Loaded(ctx context.Context, name string) (bool, error) {
	var n int
	err := m.db.QueryRowContext(ctx,
		`SELECT count(*) FROM duckdb_tables() WHERE schema_name = 'main' AND table_name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return n > 0, nil
}

func appendValues(row domain.Row) []driver.Value {
	out := make([]driver.Value, len(row))
	for i, c := range row {
		out[i] = c.Value()
	}
	return out
}
