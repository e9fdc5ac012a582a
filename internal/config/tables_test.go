package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck-restfdw/internal/domain"
)

const sampleTables = `
servers:
  - name: square
    options:
      access_token_env: RESTFDW_TEST_SQUARE_TOKEN
  - name: inline
    options:
      base_url: https://api.example.com/v1
      access_token: tok-inline
      records_field: items
tables:
  - name: customers
    server: square
    options:
      refresh: "@every 1h"
    columns:
      - name: id
        type: string
      - name: created_at
        type: timestamptz
      - name: address
        type: json
  - name: items
    server: inline
    options:
      object: catalog/items
      limit: "100"
      missing_fields: "null"
    columns:
      - name: id
        type: varchar
      - name: price
        type: bigint
      - name: active
        type: boolean
`

func TestParseTables(t *testing.T) {
	tf, err := ParseTables([]byte(sampleTables))
	require.NoError(t, err)

	assert.Equal(t, []string{"customers", "items"}, tf.TableNames())

	customers, err := tf.Table("customers")
	require.NoError(t, err)
	assert.Equal(t, "customers", customers.Object(), "object defaults to the table name")
	assert.Equal(t, "@every 1h", customers.RefreshSchedule())
	assert.Equal(t, []domain.Column{
		{Name: "id", Type: domain.TypeString},
		{Name: "created_at", Type: domain.TypeTimestamp},
		{Name: "address", Type: domain.TypeJSON},
	}, customers.DomainColumns())

	items, err := tf.Table("items")
	require.NoError(t, err)
	req := items.ScanRequest()
	assert.Equal(t, "catalog/items", req.Object)
	limit, err := req.Options.Int(domain.OptLimit)
	require.NoError(t, err)
	assert.Equal(t, 100, limit)
	assert.Equal(t, domain.TypeBool, req.Columns[2].Type)
	assert.Empty(t, items.RefreshSchedule())

	_, err = tf.Table("orders")
	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf))
}

func TestServerOptions(t *testing.T) {
	t.Setenv("RESTFDW_TEST_SQUARE_TOKEN", "sq0atp-from-env")
	tf, err := ParseTables([]byte(sampleTables))
	require.NoError(t, err)

	opts, err := tf.ServerOptions("square")
	require.NoError(t, err)
	tok, err := opts.Require(domain.OptAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "sq0atp-from-env", tok)
	_, ok := opts.Get(domain.OptAccessTokenEnv)
	assert.False(t, ok)

	opts, err = tf.ServerOptions("inline")
	require.NoError(t, err)
	assert.Equal(t, "tok-inline", opts.RequireOr(domain.OptAccessToken, ""))
	assert.Equal(t, "items", opts.RequireOr(domain.OptRecordsField, ""))

	_, err = tf.ServerOptions("nope")
	require.Error(t, err)
}

func TestServerOptions_UnsetEnvLeavesTokenMissing(t *testing.T) {
	t.Setenv("RESTFDW_TEST_SQUARE_TOKEN", "")
	tf, err := ParseTables([]byte(sampleTables))
	require.NoError(t, err)

	opts, err := tf.ServerOptions("square")
	require.NoError(t, err)
	_, err = opts.Require(domain.OptAccessToken)
	var cfgErr *domain.ConfigError
	require.True(t, errors.As(err, &cfgErr))
}

func TestParseTables_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown yaml field",
			doc:  "servers:\n  - name: s\n    opts: {}\n",
			want: "field opts not found",
		},
		{
			name: "unknown server",
			doc:  "tables:\n  - name: t\n    server: ghost\n    columns: [{name: id, type: string}]\n",
			want: `unknown server "ghost"`,
		},
		{
			name: "duplicate table",
			doc: "servers: [{name: s}]\ntables:\n" +
				"  - {name: t, server: s, columns: [{name: id, type: string}]}\n" +
				"  - {name: t, server: s, columns: [{name: id, type: string}]}\n",
			want: `table "t" is defined more than once`,
		},
		{
			name: "no columns",
			doc:  "servers: [{name: s}]\ntables:\n  - {name: t, server: s}\n",
			want: "at least one column is required",
		},
		{
			name: "unsupported type",
			doc:  "servers: [{name: s}]\ntables:\n  - {name: t, server: s, columns: [{name: n, type: numeric}]}\n",
			want: `unsupported type "numeric"`,
		},
		{
			name: "unknown option",
			doc:  "servers: [{name: s, options: {token: x}}]\n",
			want: `unknown option "token"`,
		},
		{
			name: "bad table name",
			doc:  "servers: [{name: s}]\ntables:\n  - {name: \"drop table\", server: s, columns: [{name: id, type: string}]}\n",
			want: "must be a plain identifier",
		},
		{
			name: "bad refresh schedule",
			doc: "servers: [{name: s}]\ntables:\n" +
				"  - {name: t, server: s, options: {refresh: \"every tuesday\"}, columns: [{name: id, type: string}]}\n",
			want: "invalid refresh schedule",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTables([]byte(tc.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParseTables_ReportsAllProblems(t *testing.T) {
	doc := "tables:\n" +
		"  - {name: a, server: x, columns: [{name: id, type: money}]}\n" +
		"  - {name: b, server: y}\n"
	_, err := ParseTables([]byte(doc))
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Message, `table[a]: unknown server "x"`)
	assert.Contains(t, ve.Message, `unsupported type "money"`)
	assert.Contains(t, ve.Message, `table[b]: unknown server "y"`)
	assert.Contains(t, ve.Message, "table[b]: at least one column is required")
}

func TestParseTables_Empty(t *testing.T) {
	tf, err := ParseTables(nil)
	require.NoError(t, err)
	assert.Empty(t, tf.TableNames())
}

func TestLoadTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTables), 0o600))

	tf, err := LoadTables(path)
	require.NoError(t, err)
	assert.Len(t, tf.Tables, 2)

	_, err = LoadTables(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
