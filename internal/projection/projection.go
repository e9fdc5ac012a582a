// Package projection converts raw JSON records into typed rows.
package projection

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"duck-restfdw/internal/domain"
)

// MissingFieldPolicy decides what happens when a record lacks a requested column.
type MissingFieldPolicy string

// Missing field policies.
const (
	MissingFieldError MissingFieldPolicy = "error"
	MissingFieldNull  MissingFieldPolicy = "null"
)

// ParseMissingFieldPolicy validates a policy name. The empty string selects the default.
func ParseMissingFieldPolicy(s string) (MissingFieldPolicy, error) {
	switch MissingFieldPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MissingFieldError:
		return MissingFieldError, nil
	case MissingFieldNull:
		return MissingFieldNull, nil
	default:
		return "", domain.ErrConfig(domain.OptMissingFields, "missing_fields must be %q or %q, got %q", MissingFieldError, MissingFieldNull, s)
	}
}

// converter turns one present JSON value into a cell. Returning a Null cell
// signals a type mismatch; returning an error aborts the row.
type converter func(column string, v any) (domain.Cell, error)

// converters is the single conversion table for every supported type tag.
var converters = map[domain.TypeTag]converter{
	domain.TypeBool:      toBool,
	domain.TypeInt64:     toInt64,
	domain.TypeString:    toString,
	domain.TypeTimestamp: toTimestamp,
	domain.TypeJSON:      toJSON,
}

// Projector builds rows from records.
type Projector struct {
	missing MissingFieldPolicy
}

// New creates a Projector with the given missing-field policy.
func New(policy MissingFieldPolicy) *Projector {
	if policy == "" {
		policy = MissingFieldError
	}
	return &Projector{missing: policy}
}

// Project converts record into a row with one cell per column, in column
// order. It returns the first error encountered and never a partial row.
func (p *Projector) Project(record domain.RawRecord, columns []domain.Column) (domain.Row, error) {
	row := make(domain.Row, 0, len(columns))
	for _, col := range columns {
		conv, ok := converters[col.Type]
		if !ok {
			return nil, domain.ErrProjection(col.Name, "column `%s` type is not supported", col.Name)
		}
		v, present := record[col.Name]
		if !present {
			if p.missing == MissingFieldError {
				return nil, domain.ErrProjection(col.Name, "source column `%s` not found", col.Name)
			}
			row = append(row, domain.NullCell())
			continue
		}
		if v == nil {
			row = append(row, domain.NullCell())
			continue
		}
		cell, err := conv(col.Name, v)
		if err != nil {
			return nil, err
		}
		row = append(row, cell)
	}
	return row, nil
}

func toBool(_ string, v any) (domain.Cell, error) {
	if b, ok := v.(bool); ok {
		return domain.BoolCell(b), nil
	}
	return domain.NullCell(), nil
}

func toInt64(_ string, v any) (domain.Cell, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return domain.Int64Cell(i), nil
		}
	case float64:
		// records decoded without UseNumber
		if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 {
			return domain.Int64Cell(int64(n)), nil
		}
	case int64:
		return domain.Int64Cell(n), nil
	case int:
		return domain.Int64Cell(int64(n)), nil
	}
	return domain.NullCell(), nil
}

func toString(_ string, v any) (domain.Cell, error) {
	if s, ok := v.(string); ok {
		return domain.StringCell(s), nil
	}
	return domain.NullCell(), nil
}

func toTimestamp(column string, v any) (domain.Cell, error) {
	s, ok := v.(string)
	if !ok {
		return domain.NullCell(), nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return domain.Cell{}, domain.ErrProjection(column, "column `%s`: %q is not an RFC 3339 timestamp", column, s)
	}
	return domain.TimestampCell(ts), nil
}

func toJSON(column string, v any) (domain.Cell, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return domain.NullCell(), nil
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return domain.Cell{}, domain.ErrProjection(column, "column `%s`: re-encode JSON: %v", column, err)
	}
	return domain.JSONCell(string(b)), nil
}

// Describe renders columns as "name type" pairs for diagnostics.
func Describe(columns []domain.Column) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = fmt.Sprintf("%s %s", c.Name, c.Type)
	}
	return strings.Join(parts, ", ")
}
