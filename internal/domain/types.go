package domain

import (
	"fmt"
	"strings"
	"time"
)

// TypeTag is the declared output type of a foreign table column.
type TypeTag string

// Supported type tags. Anything else is rejected at projection time.
const (
	TypeBool      TypeTag = "bool"
	TypeInt64     TypeTag = "int64"
	TypeString    TypeTag = "string"
	TypeTimestamp TypeTag = "timestamp"
	TypeJSON      TypeTag = "json"
)

// ParseTypeTag maps a user-facing type name onto a TypeTag. SQL spellings are
// accepted so table definitions can be written the way DuckDB prints them.
// Unknown names are returned verbatim; the projector rejects them per column.
func ParseTypeTag(s string) TypeTag {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bool", "boolean":
		return TypeBool
	case "int64", "bigint", "int8", "integer", "int":
		return TypeInt64
	case "string", "text", "varchar":
		return TypeString
	case "timestamp", "timestamptz", "datetime":
		return TypeTimestamp
	case "json", "jsonb":
		return TypeJSON
	default:
		return TypeTag(s)
	}
}

// Known reports whether the tag is one the projector can convert.
func (t TypeTag) Known() bool {
	switch t {
	case TypeBool, TypeInt64, TypeString, TypeTimestamp, TypeJSON:
		return true
	}
	return false
}

// Column is one requested output column.
type Column struct {
	Name string
	Type TypeTag
}

// RawRecord is one remote entity as decoded from the page body.
type RawRecord map[string]any

// ScanRequest is the caller's input to BeginScan.
type ScanRequest struct {
	Object  string
	Columns []Column
	Options Options // table-level options: object, limit, cursor, missing_fields
}

// CellKind tags the value held by a Cell.
type CellKind int

const (
	CellNull CellKind = iota
	CellBool
	CellInt64
	CellString
	CellTimestamp
	CellJSON
)

func (k CellKind) String() string {
	switch k {
	case CellBool:
		return "bool"
	case CellInt64:
		return "int64"
	case CellString:
		return "string"
	case CellTimestamp:
		return "timestamp"
	case CellJSON:
		return "json"
	default:
		return "null"
	}
}

// Cell is a single typed value of a row. The zero value is Null.
type Cell struct {
	Kind CellKind
	Bool bool
	Int  int64
	Str  string // String and JSON payloads
	Time time.Time
}

// NullCell returns a Null cell.
func NullCell() Cell { return Cell{} }

// BoolCell returns a Bool cell.
func BoolCell(v bool) Cell { return Cell{Kind: CellBool, Bool: v} }

// Int64Cell returns an Int64 cell.
func Int64Cell(v int64) Cell { return Cell{Kind: CellInt64, Int: v} }

// StringCell returns a String cell.
func StringCell(v string) Cell { return Cell{Kind: CellString, Str: v} }

// TimestampCell returns a Timestamp cell.
func TimestampCell(v time.Time) Cell { return Cell{Kind: CellTimestamp, Time: v} }

// JSONCell returns a Json cell holding serialized JSON text.
func JSONCell(v string) Cell { return Cell{Kind: CellJSON, Str: v} }

// IsNull reports whether the cell holds no value.
func (c Cell) IsNull() bool { return c.Kind == CellNull }

// Value returns the cell as a plain Go value (nil for Null), suitable for
// database/sql drivers and JSON encoding.
func (c Cell) Value() any {
	switch c.Kind {
	case CellBool:
		return c.Bool
	case CellInt64:
		return c.Int
	case CellString, CellJSON:
		return c.Str
	case CellTimestamp:
		return c.Time
	default:
		return nil
	}
}

// String renders the cell for text output.
func (c Cell) String() string {
	switch c.Kind {
	case CellNull:
		return "NULL"
	case CellTimestamp:
		return c.Time.Format(time.RFC3339)
	default:
		return fmt.Sprint(c.Value())
	}
}

// Row is one output row, one cell per requested column in request order.
type Row []Cell

// Values returns the row's cells as plain Go values.
func (r Row) Values() []any {
	out := make([]any, len(r))
	for i, c := range r {
		out[i] = c.Value()
	}
	return out
}
