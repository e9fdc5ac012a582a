package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"duck-restfdw/internal/domain"
)

// TablesFile is the parsed form of a tables.yaml document.
type TablesFile struct {
	Servers []ServerDef `yaml:"servers"`
	Tables  []TableDef  `yaml:"tables"`
}

// ServerDef describes one remote API connection.
type ServerDef struct {
	Name    string            `yaml:"name"`
	Options map[string]string `yaml:"options"`
}

// TableDef describes one foreign table over a remote collection.
type TableDef struct {
	Name    string            `yaml:"name"`
	Server  string            `yaml:"server"`
	Options map[string]string `yaml:"options,omitempty"`
	Columns []ColumnDef       `yaml:"columns"`
}

// ColumnDef is one declared column.
type ColumnDef struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var serverOptionKeys = []string{
	domain.OptBaseURL, domain.OptAccessToken, domain.OptAccessTokenEnv,
	domain.OptRecordsField, domain.OptCursorField, domain.OptCursorParam,
	domain.OptLimitParam, domain.OptUserAgent,
}

var tableOptionKeys = []string{
	domain.OptObject, domain.OptLimit, domain.OptCursor,
	domain.OptMissingFields, domain.OptRefresh, domain.OptRecordsField,
}

// LoadTables reads and validates a tables file.
func LoadTables(path string) (*TablesFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified config files
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	tf, err := ParseTables(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tf, nil
}

// ParseTables decodes a tables document strictly and validates it.
func ParseTables(data []byte) (*TablesFile, error) {
	var tf TablesFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&tf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := tf.Validate(); err != nil {
		return nil, err
	}
	return &tf, nil
}

// Validate checks names, references, option keys and column types. All
// problems are reported together.
func (tf *TablesFile) Validate() error {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	serverNames := lo.Map(tf.Servers, func(s ServerDef, _ int) string { return s.Name })
	for _, dup := range lo.FindDuplicates(serverNames) {
		add("server %q is defined more than once", dup)
	}
	for _, s := range tf.Servers {
		if s.Name == "" {
			add("server without a name")
			continue
		}
		for k := range s.Options {
			if !lo.Contains(serverOptionKeys, k) {
				add("server[%s]: unknown option %q", s.Name, k)
			}
		}
	}

	tableNames := lo.Map(tf.Tables, func(t TableDef, _ int) string { return t.Name })
	for _, dup := range lo.FindDuplicates(tableNames) {
		add("table %q is defined more than once", dup)
	}
	for _, t := range tf.Tables {
		if !identRe.MatchString(t.Name) {
			add("table name %q must be a plain identifier", t.Name)
			continue
		}
		if !lo.Contains(serverNames, t.Server) {
			add("table[%s]: unknown server %q", t.Name, t.Server)
		}
		for k := range t.Options {
			if !lo.Contains(tableOptionKeys, k) {
				add("table[%s]: unknown option %q", t.Name, k)
			}
		}
		if spec := strings.TrimSpace(t.Options[domain.OptRefresh]); spec != "" {
			if _, err := cron.ParseStandard(spec); err != nil {
				add("table[%s]: invalid refresh schedule %q: %v", t.Name, spec, err)
			}
		}
		if len(t.Columns) == 0 {
			add("table[%s]: at least one column is required", t.Name)
		}
		colNames := lo.Map(t.Columns, func(c ColumnDef, _ int) string { return c.Name })
		for _, dup := range lo.FindDuplicates(colNames) {
			add("table[%s]: column %q is declared more than once", t.Name, dup)
		}
		for _, c := range t.Columns {
			if c.Name == "" {
				add("table[%s]: column without a name", t.Name)
			}
			if !domain.ParseTypeTag(c.Type).Known() {
				add("table[%s]: column %q has unsupported type %q", t.Name, c.Name, c.Type)
			}
		}
	}

	if len(problems) > 0 {
		return domain.ErrValidation("invalid tables file: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Table returns the named table definition.
func (tf *TablesFile) Table(name string) (TableDef, error) {
	t, ok := lo.Find(tf.Tables, func(t TableDef) bool { return t.Name == name })
	if !ok {
		return TableDef{}, domain.ErrNotFound("table %q not found", name)
	}
	return t, nil
}

// ServerOptions returns the option map of the named server. When the
// access token is not given inline it is read from the variable named by
// access_token_env.
func (tf *TablesFile) ServerOptions(name string) (domain.Options, error) {
	s, ok := lo.Find(tf.Servers, func(s ServerDef) bool { return s.Name == name })
	if !ok {
		return domain.Options{}, domain.ErrNotFound("server %q not found", name)
	}
	opts := domain.NewOptions(domain.OptionsServer, s.Options)
	if _, ok := opts.Get(domain.OptAccessToken); !ok {
		if env, ok := opts.Get(domain.OptAccessTokenEnv); ok {
			opts.Values[domain.OptAccessToken] = os.Getenv(env)
		}
	}
	delete(opts.Values, domain.OptAccessTokenEnv)
	return opts, nil
}

// TableNames lists the defined tables in file order.
func (tf *TablesFile) TableNames() []string {
	return lo.Map(tf.Tables, func(t TableDef, _ int) string { return t.Name })
}

// DomainColumns converts the declared columns to adapter columns.
func (t TableDef) DomainColumns() []domain.Column {
	return lo.Map(t.Columns, func(c ColumnDef, _ int) domain.Column {
		return domain.Column{Name: c.Name, Type: domain.ParseTypeTag(c.Type)}
	})
}

// Object returns the remote collection the table reads; it defaults to the
// table name.
func (t TableDef) Object() string {
	if o := strings.TrimSpace(t.Options[domain.OptObject]); o != "" {
		return o
	}
	return t.Name
}

// ScanRequest builds the adapter request for a full scan of the table.
func (t TableDef) ScanRequest() domain.ScanRequest {
	return domain.ScanRequest{
		Object:  t.Object(),
		Columns: t.DomainColumns(),
		Options: domain.NewOptions(domain.OptionsTable, t.Options),
	}
}

// RefreshSchedule returns the table's cron spec, or "" when it is not refreshed.
func (t TableDef) RefreshSchedule() string {
	return strings.TrimSpace(t.Options[domain.OptRefresh])
}
