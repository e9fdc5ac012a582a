package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"duck-restfdw/internal/domain"
	"duck-restfdw/internal/fdw"
)

// QueryResult holds the rows of a read query.
type QueryResult struct {
	Columns []string
	Rows    [][]any
}

// QueryService runs read-only SQL against DuckDB. Foreign tables a query
// mentions are materialized first if they have not been loaded yet.
type QueryService struct {
	db  *sql.DB
	mat *Materializer
}

// NewQueryService creates a QueryService.
func NewQueryService(db *sql.DB, mat *Materializer) *QueryService {
	return &QueryService{db: db, mat: mat}
}

// Query executes sqlText and returns all result rows. Writes to a foreign
// table are handed to the adapter write path, which rejects them. Other
// writes and DDL are rejected as invalid.
func (s *QueryService) Query(ctx context.Context, sqlText string) (*QueryResult, error) {
	stmt, err := ClassifyStatement(sqlText)
	if err != nil {
		return nil, err
	}
	foreign := s.mat.scanner.Tables()

	switch stmt.Type {
	case StmtEmpty:
		return nil, domain.ErrValidation("empty statement")
	case StmtInsert, StmtUpdate, StmtDelete:
		if lo.ContainsBy(foreign, func(n string) bool { return strings.EqualFold(n, stmt.Target) }) {
			return nil, fmt.Errorf("%s %s: %w", stmt.Type, stmt.Target, rejectWrite(ctx, stmt.Type))
		}
		return nil, domain.ErrValidation("only read statements are allowed, got %s", stmt.Type)
	case StmtDDL:
		return nil, domain.ErrValidation("only read statements are allowed, got %s", stmt.Type)
	}

	for _, name := range stmt.Mentions(foreign) {
		loaded, err := s.mat.Loaded(ctx, name)
		if err != nil {
			return nil, err
		}
		if !loaded {
			if _, err := s.mat.Materialize(ctx, name); err != nil {
				return nil, err
			}
		}
	}

	rows, err := s.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, domain.ErrValidation("execute query: %v", err)
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	res := &QueryResult{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return res, nil
}

// rejectWrite drives the adapter's modify lifecycle for a write statement.
func rejectWrite(ctx context.Context, typ StmtType) error {
	a := fdw.New(nil)
	if err := a.BeginModify(ctx); err != nil {
		return err
	}
	defer func() { _ = a.EndModify(ctx) }()
	switch typ {
	case StmtInsert:
		return a.Insert(ctx, nil)
	case StmtUpdate:
		return a.Update(ctx, domain.NullCell(), nil)
	default:
		return a.Delete(ctx, domain.NullCell())
	}
}

// FormatValue renders a query result value for text output.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
