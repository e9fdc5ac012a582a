// Package engine binds foreign tables to a DuckDB query engine: live scans,
// materialization into DuckDB tables and read-only SQL over them.
package engine

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"duck-restfdw/internal/domain"
)

// SQLType returns the DuckDB column type for a type tag.
func SQLType(t domain.TypeTag) (string, error) {
	switch t {
	case domain.TypeBool:
		return "BOOLEAN", nil
	case domain.TypeInt64:
		return "BIGINT", nil
	case domain.TypeString:
		return "VARCHAR", nil
	case domain.TypeTimestamp:
		return "TIMESTAMPTZ", nil
	case domain.TypeJSON:
		return "JSON", nil
	default:
		return "", domain.ErrProjection("", "type %q has no DuckDB mapping", t)
	}
}

// stagingType is the column type used while rows are appended. JSON is
// staged as text and cast when the table is swapped in.
func stagingType(t domain.TypeTag) (string, error) {
	if t == domain.TypeJSON {
		return "VARCHAR", nil
	}
	return SQLType(t)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func createTableSQL(name string, cols []domain.Column) (string, error) {
	defs := make([]string, len(cols))
	for i, c := range cols {
		typ, err := stagingType(c.Type)
		if err != nil {
			return "", fmt.Errorf("column %s: %w", c.Name, err)
		}
		defs[i] = quoteIdent(c.Name) + " " + typ
	}
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", ")), nil
}

func swapSQL(name, stage string, cols []domain.Column) string {
	list := lo.Map(cols, func(c domain.Column, _ int) string {
		if c.Type == domain.TypeJSON {
			return fmt.Sprintf("CAST(%s AS JSON) AS %s", quoteIdent(c.Name), quoteIdent(c.Name))
		}
		return quoteIdent(c.Name)
	})
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT %s FROM %s",
		quoteIdent(name), strings.Join(list, ", "), quoteIdent(stage))
}
