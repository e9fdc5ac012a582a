package engine

import (
	"strings"
	"unicode"

	"duck-restfdw/internal/domain"
)

// StmtType classifies a SQL statement by what it does to data.
type StmtType int

// Statement kinds.
const (
	StmtRead StmtType = iota
	StmtInsert
	StmtUpdate
	StmtDelete
	StmtDDL
	StmtEmpty
)

func (t StmtType) String() string {
	switch t {
	case StmtRead:
		return "read"
	case StmtInsert:
		return "insert"
	case StmtUpdate:
		return "update"
	case StmtDelete:
		return "delete"
	case StmtDDL:
		return "ddl"
	default:
		return "empty"
	}
}

// Statement is the classification of one SQL statement.
type Statement struct {
	Type   StmtType
	Target string // table written by INSERT, UPDATE or DELETE
	words  []token
}

var readKeywords = map[string]bool{
	"select": true, "values": true, "from": true, "table": true,
	"show": true, "describe": true, "summarize": true, "explain": true,
}

// prohibitedFunctions can read the filesystem, leak internal metadata or
// escape the query sandbox.
var prohibitedFunctions = map[string]bool{
	"read_csv":             true,
	"read_csv_auto":        true,
	"read_parquet":         true,
	"read_json":            true,
	"read_json_auto":       true,
	"read_ndjson":          true,
	"read_text":            true,
	"read_blob":            true,
	"glob":                 true,
	"sqlite_scan":          true,
	"query_table":          true,
	"duckdb_extensions":    true,
	"duckdb_settings":      true,
	"duckdb_databases":     true,
	"duckdb_secrets":       true,
	"pragma_database_list": true,
}

// ClassifyStatement inspects the leading keywords of sqlText. It rejects
// input holding more than one statement, calls to prohibited functions and
// file paths used as tables. It does not validate syntax; DuckDB does that
// when the statement runs.
func ClassifyStatement(sqlText string) (Statement, error) {
	toks, err := singleStatement(tokenize(sqlText))
	if err != nil {
		return Statement{}, err
	}
	if err := checkProhibited(toks); err != nil {
		return Statement{}, err
	}
	st := Statement{Type: StmtEmpty, words: toks}
	if len(toks) == 0 {
		return st, nil
	}

	// EXPLAIN ANALYZE runs its statement, so EXPLAIN takes the kind of what it explains.
	body := toks
	for len(body) > 0 && body[0].kind == tokWord && strings.EqualFold(body[0].text, "explain") {
		body = body[1:]
		if len(body) > 0 && body[0].kind == tokWord && strings.EqualFold(body[0].text, "analyze") {
			body = body[1:]
		}
		if len(body) > 0 && body[0].kind == tokPunct && body[0].text == "(" {
			body = skipGroup(body)
		}
	}
	if len(body) == 0 {
		st.Type = StmtRead
		return st, nil
	}

	lead := leadingKeyword(body)
	switch {
	case readKeywords[lead]:
		st.Type = StmtRead
	case lead == "insert":
		st.Type = StmtInsert
		st.Target = nameAfter(body, "into")
	case lead == "update":
		st.Type = StmtUpdate
		st.Target = nameAfter(body, "update")
	case lead == "delete":
		st.Type = StmtDelete
		st.Target = nameAfter(body, "from")
	default:
		st.Type = StmtDDL
	}
	return st, nil
}

// singleStatement drops trailing semicolons and fails if any other
// statement follows the first.
func singleStatement(toks []token) ([]token, error) {
	for i, t := range toks {
		if t.kind != tokPunct || t.text != ";" {
			continue
		}
		for _, rest := range toks[i+1:] {
			if rest.kind != tokPunct || rest.text != ";" {
				return nil, domain.ErrValidation("multiple statements are not allowed")
			}
		}
		return toks[:i], nil
	}
	return toks, nil
}

// checkProhibited rejects calls to prohibitedFunctions and string literals
// in table position, which DuckDB reads as file paths.
func checkProhibited(toks []token) error {
	for i, t := range toks {
		next := i + 1 < len(toks)
		switch {
		case (t.kind == tokWord || t.kind == tokQuoted) && prohibitedFunctions[strings.ToLower(t.text)] &&
			next && toks[i+1].kind == tokPunct && toks[i+1].text == "(":
			return domain.ErrValidation("prohibited function: %s", strings.ToLower(t.text))
		case t.kind == tokWord && (strings.EqualFold(t.text, "from") || strings.EqualFold(t.text, "join")) &&
			next && toks[i+1].kind == tokString:
			return domain.ErrValidation("reading files is not allowed: '%s'", toks[i+1].text)
		}
	}
	return nil
}

// skipGroup returns the tokens after the parenthesized group toks starts with.
func skipGroup(toks []token) []token {
	depth := 0
	for i, t := range toks {
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return toks[i+1:]
			}
		}
	}
	return nil
}

// Mentions returns which of names appear as identifiers in the statement,
// compared case-insensitively, in the order given.
func (s Statement) Mentions(names []string) []string {
	seen := make(map[string]bool)
	for _, t := range s.words {
		if t.kind == tokWord || t.kind == tokQuoted {
			seen[strings.ToLower(t.text)] = true
		}
	}
	var out []string
	for _, n := range names {
		if seen[strings.ToLower(n)] {
			out = append(out, n)
		}
	}
	return out
}

// leadingKeyword returns the keyword that decides the statement kind. For
// WITH it is the first top-level keyword after the CTE list.
func leadingKeyword(toks []token) string {
	first := strings.ToLower(toks[0].text)
	if toks[0].kind == tokPunct && first == "(" {
		for _, t := range toks {
			if t.kind == tokWord {
				return strings.ToLower(t.text)
			}
		}
	}
	if first != "with" {
		return first
	}
	depth := 0
	for _, t := range toks[1:] {
		switch {
		case t.kind == tokPunct && t.text == "(":
			depth++
		case t.kind == tokPunct && t.text == ")":
			depth--
		case depth == 0 && t.kind == tokWord:
			w := strings.ToLower(t.text)
			if readKeywords[w] || w == "insert" || w == "update" || w == "delete" {
				return w
			}
		}
	}
	return first
}

// nameAfter returns the last part of the possibly qualified name that
// follows the first occurrence of keyword.
func nameAfter(toks []token, keyword string) string {
	for i, t := range toks {
		if t.kind != tokWord || !strings.EqualFold(t.text, keyword) {
			continue
		}
		name := ""
		for j := i + 1; j < len(toks); j++ {
			tj := toks[j]
			if tj.kind == tokWord || tj.kind == tokQuoted {
				name = tj.text
				if j+1 < len(toks) && toks[j+1].kind == tokPunct && toks[j+1].text == "." {
					j++
					continue
				}
			}
			break
		}
		return name
	}
	return ""
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokQuoted
	tokString
	tokPunct
)

type token struct {
	kind tokenKind
	text string
}

// tokenize splits SQL into words, quoted identifiers, string literals and
// punctuation, dropping comments and whitespace.
func tokenize(s string) []token {
	var toks []token
	r := []rune(s)
	for i := 0; i < len(r); {
		c := r[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '-' && i+1 < len(r) && r[i+1] == '-':
			for i < len(r) && r[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(r) && r[i+1] == '*':
			i += 2
			for i+1 < len(r) && !(r[i] == '*' && r[i+1] == '/') {
				i++
			}
			i += 2
		case c == '\'' || c == '"':
			text, next := readQuoted(r, i)
			kind := tokString
			if c == '"' {
				kind = tokQuoted
			}
			toks = append(toks, token{kind: kind, text: text})
			i = next
		case c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c):
			start := i
			for i < len(r) && (r[i] == '_' || r[i] == '$' || unicode.IsLetter(r[i]) || unicode.IsDigit(r[i])) {
				i++
			}
			toks = append(toks, token{kind: tokWord, text: string(r[start:i])})
		default:
			toks = append(toks, token{kind: tokPunct, text: string(c)})
			i++
		}
	}
	return toks
}

// readQuoted reads a quoted run starting at r[i]; a doubled quote is an
// escaped quote. It returns the unquoted text and the index after it.
func readQuoted(r []rune, i int) (string, int) {
	q := r[i]
	var b strings.Builder
	i++
	for i < len(r) {
		if r[i] == q {
			if i+1 < len(r) && r[i+1] == q {
				b.WriteRune(q)
				i += 2
				continue
			}
			return b.String(), i + 1
		}
		b.WriteRune(r[i])
		i++
	}
	return b.String(), i
}
