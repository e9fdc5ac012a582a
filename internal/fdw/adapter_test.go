package fdw

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck-restfdw/internal/domain"
	"duck-restfdw/internal/transport"
)

const testToken = "sq0atp-THIS-IS-A-LONG-SECRET"

var ctx = context.Background()

// squareStub serves pages keyed by the incoming cursor parameter.
func squareStub(t *testing.T, pages map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, ok := pages[r.URL.Query().Get("cursor")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func serverOpts(baseURL string) domain.Options {
	return domain.NewOptions(domain.OptionsServer, map[string]string{
		domain.OptBaseURL:     baseURL,
		domain.OptAccessToken: testToken,
	})
}

func customersRequest(extra map[string]string) domain.ScanRequest {
	opts := map[string]string{domain.OptObject: "customers"}
	for k, v := range extra {
		opts[k] = v
	}
	return domain.ScanRequest{
		Columns: []domain.Column{
			{Name: "id", Type: domain.TypeString},
			{Name: "given_name", Type: domain.TypeString},
			{Name: "created_at", Type: domain.TypeTimestamp},
		},
		Options: domain.NewOptions(domain.OptionsTable, opts),
	}
}

func newAdapter(t *testing.T, baseURL string, opts ...Option) *Adapter {
	t.Helper()
	a := New(transport.NewHTTPTransport(), opts...)
	require.NoError(t, a.Init(ctx, serverOpts(baseURL)))
	return a
}

func drain(t *testing.T, a *Adapter) []domain.Row {
	t.Helper()
	var rows []domain.Row
	for {
		var row domain.Row
		more, err := a.IterScan(ctx, &row)
		require.NoError(t, err)
		if !more {
			return rows
		}
		rows = append(rows, row)
	}
}

func TestInit_RequiresAccessToken(t *testing.T) {
	for _, opts := range []map[string]string{
		{},
		{domain.OptBaseURL: "https://api.test/v2/customers"},
		{domain.OptAccessToken: ""},
	} {
		err := New(transport.NewHTTPTransport()).Init(ctx, domain.NewOptions(domain.OptionsServer, opts))
		require.Error(t, err)
		var cfgErr *domain.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, domain.OptAccessToken, cfgErr.Option)
		assert.Contains(t, err.Error(), "access_token")
	}
}

func TestInit_Defaults(t *testing.T) {
	a := New(transport.NewHTTPTransport())
	require.NoError(t, a.Init(ctx, domain.NewOptions(domain.OptionsServer, map[string]string{
		domain.OptAccessToken: testToken,
	})))
	assert.Equal(t, DefaultBaseURL, a.conn.BaseURL)
	assert.Equal(t, DefaultUserAgent, a.conn.UserAgent)

	err := New(transport.NewHTTPTransport()).Init(ctx, domain.NewOptions(domain.OptionsServer, map[string]string{
		domain.OptAccessToken: testToken,
		domain.OptBaseURL:     "not a url",
	}))
	require.Error(t, err)
}

func TestScan_FullLifecycle(t *testing.T) {
	srv, calls := squareStub(t, map[string]string{
		"":   `{"customers":[{"id":"C1","given_name":"Ada","created_at":"2024-01-01T00:00:00Z"}],"cursor":"p2"}`,
		"p2": `{"customers":[{"id":"C2","given_name":"Grace","created_at":"2024-02-01T00:00:00Z"}]}`,
	})
	a := newAdapter(t, srv.URL+"/v2")

	require.NoError(t, a.BeginScan(ctx, customersRequest(nil)))
	assert.Equal(t, StateReady, a.State())
	pages, records, offset := a.Stats()
	assert.Equal(t, 2, pages)
	assert.Equal(t, 2, records)
	assert.Equal(t, 0, offset)
	assert.EqualValues(t, 2, calls.Load())

	rows := drain(t, a)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.StringCell("C1"), rows[0][0])
	assert.Equal(t, domain.StringCell("Grace"), rows[1][1])
	assert.Equal(t, StateExhausted, a.State())

	// further iteration keeps reporting exhaustion
	for i := 0; i < 3; i++ {
		var row domain.Row
		more, err := a.IterScan(ctx, &row)
		require.NoError(t, err)
		assert.False(t, more)
	}

	require.NoError(t, a.EndScan(ctx))
	assert.Equal(t, StateUnstarted, a.State())
	require.NoError(t, a.EndScan(ctx), "second EndScan is a no-op")
	pages, records, offset = a.Stats()
	assert.Zero(t, pages)
	assert.Zero(t, records)
	assert.Zero(t, offset)

	// a fresh begin/end cycle works
	require.NoError(t, a.BeginScan(ctx, customersRequest(nil)))
	assert.Len(t, drain(t, a), 2)
	require.NoError(t, a.EndScan(ctx))
}

func TestScan_EmptyCollection(t *testing.T) {
	srv, _ := squareStub(t, map[string]string{"": `{"customers":[],"cursor":null}`})
	a := newAdapter(t, srv.URL+"/v2/customers")

	require.NoError(t, a.BeginScan(ctx, customersRequest(nil)))
	var row domain.Row
	more, err := a.IterScan(ctx, &row)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, StateExhausted, a.State())
}

func TestBeginScan_WithoutEndFailsFast(t *testing.T) {
	srv, calls := squareStub(t, map[string]string{"": `{"customers":[{"id":"C1","given_name":"A","created_at":"2024-01-01T00:00:00Z"}]}`})
	a := newAdapter(t, srv.URL)

	require.NoError(t, a.BeginScan(ctx, customersRequest(nil)))
	err := a.BeginScan(ctx, customersRequest(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "call EndScan")
	assert.EqualValues(t, 1, calls.Load(), "no stale reuse and no second fetch")
}

func TestBeginScan_FailureMovesToFailed(t *testing.T) {
	srv, _ := squareStub(t, map[string]string{
		"": `{"customers":[{"id":"C1"}],"cursor":"missing-page"}`,
	})
	a := newAdapter(t, srv.URL)

	err := a.BeginScan(ctx, customersRequest(nil))
	require.Error(t, err)
	var statusErr *domain.HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, StateFailed, a.State())
	_, records, _ := a.Stats()
	assert.Zero(t, records, "partial pages are discarded")

	var row domain.Row
	_, err = a.IterScan(ctx, &row)
	require.Error(t, err)

	require.Error(t, a.BeginScan(ctx, customersRequest(nil)))
	require.NoError(t, a.EndScan(ctx))
	assert.Equal(t, StateUnstarted, a.State())
}

func TestBeginScan_Validation(t *testing.T) {
	a := New(transport.NewHTTPTransport())
	err := a.BeginScan(ctx, customersRequest(nil))
	require.Error(t, err, "not initialized")

	a = newAdapter(t, "https://api.test")
	err = a.BeginScan(ctx, domain.ScanRequest{Options: domain.NewOptions(domain.OptionsTable, nil)})
	var cfgErr *domain.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, domain.OptObject, cfgErr.Option)

	err = a.BeginScan(ctx, customersRequest(map[string]string{domain.OptLimit: "lots"}))
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, domain.OptLimit, cfgErr.Option)

	err = a.BeginScan(ctx, customersRequest(map[string]string{domain.OptMissingFields: "skip"}))
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, StateUnstarted, a.State())
}

func TestIterScan_ProjectionErrorDoesNotAdvance(t *testing.T) {
	srv, _ := squareStub(t, map[string]string{
		"": `{"customers":[{"id":"C1","given_name":"Ada"}]}`,
	})
	a := newAdapter(t, srv.URL)
	require.NoError(t, a.BeginScan(ctx, customersRequest(nil)))

	var row domain.Row
	more, err := a.IterScan(ctx, &row)
	require.Error(t, err)
	assert.False(t, more)
	assert.Nil(t, row)
	assert.Contains(t, err.Error(), "source column `created_at` not found")
	_, _, offset := a.Stats()
	assert.Zero(t, offset)
}

func TestIterScan_MissingFieldsNullOption(t *testing.T) {
	srv, _ := squareStub(t, map[string]string{
		"": `{"customers":[{"id":"C1","given_name":"Ada"}]}`,
	})
	a := newAdapter(t, srv.URL)
	require.NoError(t, a.BeginScan(ctx, customersRequest(map[string]string{domain.OptMissingFields: "null"})))

	rows := drain(t, a)
	require.Len(t, rows, 1)
	assert.True(t, rows[0][2].IsNull())
}

func TestIterScan_BeforeBeginScan(t *testing.T) {
	a := newAdapter(t, "https://api.test")
	var row domain.Row
	_, err := a.IterScan(ctx, &row)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scan in progress")
}

func TestUnsupportedOperations(t *testing.T) {
	srv, _ := squareStub(t, map[string]string{"": `{"customers":[]}`})
	a := newAdapter(t, srv.URL)

	checkUnsupported := func(t *testing.T, err error, op string) {
		t.Helper()
		var unsup *domain.UnsupportedOperationError
		require.True(t, errors.As(err, &unsup), "expected UnsupportedOperationError, got %v", err)
		assert.Equal(t, op, unsup.Operation)
	}

	// re_scan fails in every state
	checkUnsupported(t, a.ReScan(ctx), "re_scan")
	require.NoError(t, a.BeginScan(ctx, customersRequest(nil)))
	checkUnsupported(t, a.ReScan(ctx), "re_scan")
	drain(t, a)
	checkUnsupported(t, a.ReScan(ctx), "re_scan")
	require.NoError(t, a.EndScan(ctx))

	checkUnsupported(t, a.BeginModify(ctx), "modify")
	checkUnsupported(t, a.Insert(ctx, domain.Row{}), "insert")
	checkUnsupported(t, a.Update(ctx, domain.StringCell("C1"), domain.Row{}), "update")
	checkUnsupported(t, a.Delete(ctx, domain.StringCell("C1")), "delete")
	assert.NoError(t, a.EndModify(ctx))
}

func TestScan_TableHints(t *testing.T) {
	var gotLimit, gotCursor string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		gotCursor = r.URL.Query().Get("cursor")
		assert.Equal(t, "/v2/orders", r.URL.Path)
		_, _ = w.Write([]byte(`{"orders":[]}`))
	}))
	defer srv.Close()

	a := newAdapter(t, srv.URL+"/v2")
	req := customersRequest(map[string]string{
		domain.OptObject: "orders",
		domain.OptLimit:  "25",
		domain.OptCursor: "resume-here",
	})
	require.NoError(t, a.BeginScan(ctx, req))
	assert.Equal(t, "25", gotLimit)
	assert.Equal(t, "resume-here", gotCursor)
}

func TestDiagnostics_NeverContainFullToken(t *testing.T) {
	srv, _ := squareStub(t, map[string]string{
		"":   `{"customers":[{"id":"C1","given_name":"A","created_at":"2024-01-01T00:00:00Z"}],"cursor":"p2"}`,
		"p2": `{"customers":[]}`,
	})
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	a := New(transport.NewHTTPTransport(transport.WithLogger(logger)), WithLogger(logger))
	require.NoError(t, a.Init(ctx, serverOpts(srv.URL)))
	require.NoError(t, a.BeginScan(ctx, customersRequest(nil)))
	drain(t, a)
	require.NoError(t, a.EndScan(ctx))

	out := buf.String()
	assert.Contains(t, out, "page fetched")
	assert.Contains(t, out, "Retrieved 1 customers")
	assert.Contains(t, out, "sq0atp...")
	assert.NotContains(t, out, testToken)
}

func TestResourceURL(t *testing.T) {
	tests := []struct {
		base, object, want string
	}{
		{"https://connect.squareup.com/v2/customers", "customers", "https://connect.squareup.com/v2/customers"},
		{"https://connect.squareup.com/v2", "customers", "https://connect.squareup.com/v2/customers"},
		{"https://api.test", "/orders/", "https://api.test/orders"},
		{"https://api.test/v1?region=eu", "items", "https://api.test/v1/items?region=eu"},
		{"https://api.test/v1", "", "https://api.test/v1"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ResourceURL(tc.base, tc.object), "%s + %s", tc.base, tc.object)
	}
}
