// Package fdw implements the foreign table adapter: the scan lifecycle a
// query engine host drives to read a remote REST collection as rows.
//
// An Adapter serves one scan at a time and is not safe for concurrent use.
// Hosts that scan several tables concurrently create one Adapter per scan.
package fdw

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/samber/mo"

	"duck-restfdw/internal/domain"
	"duck-restfdw/internal/fetch"
	"duck-restfdw/internal/projection"
	"duck-restfdw/internal/transport"
)

// DefaultBaseURL is used when the server options carry no base_url.
const DefaultBaseURL = "https://connect.squareup.com/v2/customers"

// DefaultUserAgent identifies the adapter to the remote API.
const DefaultUserAgent = "SquareCustomers FDW"

// ConnectionConfig is fixed at Init and read by every scan.
type ConnectionConfig struct {
	BaseURL      string
	AccessToken  string
	RecordsField string
	CursorField  string
	CursorParam  string
	LimitParam   string
	UserAgent    string
}

// Adapter holds the connection config and the state of the current scan.
type Adapter struct {
	tr       transport.Transport
	logger   *slog.Logger
	reporter domain.Reporter

	conn        ConnectionConfig
	initialized bool

	state     State
	object    string
	columns   []domain.Column
	projector *projection.Projector
	buffer    []domain.RawRecord
	offset    int
	pages     int
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(l *slog.Logger) Option { return func(a *Adapter) { a.logger = l } }

// WithReporter replaces the slog-backed diagnostics reporter.
func WithReporter(r domain.Reporter) Option { return func(a *Adapter) { a.reporter = r } }

// New creates an uninitialized Adapter that issues requests through tr.
func New(tr transport.Transport, opts ...Option) *Adapter {
	a := &Adapter{tr: tr, logger: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	if a.reporter == nil {
		a.reporter = NewLogReporter(a.logger)
	}
	return a
}

// Init reads the server options. access_token is required; base_url
// defaults to the Square Customers endpoint.
func (a *Adapter) Init(_ context.Context, server domain.Options) error {
	if a.state != StateUnstarted {
		return fmt.Errorf("init: adapter has an active scan (state %s)", a.state)
	}
	token, err := server.Require(domain.OptAccessToken)
	if err != nil {
		return err
	}
	base := strings.TrimRight(server.RequireOr(domain.OptBaseURL, DefaultBaseURL), "/")
	if u, err := url.Parse(base); err != nil || u.Scheme == "" || u.Host == "" {
		return domain.ErrConfig(domain.OptBaseURL, "server option %q is not an absolute URL: %q", domain.OptBaseURL, base)
	}

	a.conn = ConnectionConfig{
		BaseURL:      base,
		AccessToken:  token,
		RecordsField: server.RequireOr(domain.OptRecordsField, ""),
		CursorField:  server.RequireOr(domain.OptCursorField, fetch.DefaultCursorField),
		CursorParam:  server.RequireOr(domain.OptCursorParam, fetch.DefaultCursorParam),
		LimitParam:   server.RequireOr(domain.OptLimitParam, fetch.DefaultLimitParam),
		UserAgent:    server.RequireOr(domain.OptUserAgent, DefaultUserAgent),
	}
	a.initialized = true

	a.logger.Debug("adapter initialized", "base_url", base, "access_token", transport.TokenPrefix(token))
	return nil
}

// BeginScan fetches every page of the requested object into the record
// buffer. It fails fast if a previous scan was not ended.
func (a *Adapter) BeginScan(ctx context.Context, req domain.ScanRequest) error {
	if !a.initialized {
		return domain.ErrConfig("", "begin_scan: adapter is not initialized")
	}
	if a.state != StateUnstarted {
		return fmt.Errorf("begin_scan: previous scan is still %s; call EndScan before starting a new scan", a.state)
	}

	object := req.Object
	if object == "" {
		o, err := req.Options.Require(domain.OptObject)
		if err != nil {
			return err
		}
		object = o
	}
	limit, err := req.Options.Int(domain.OptLimit)
	if err != nil {
		return err
	}
	policy, err := projection.ParseMissingFieldPolicy(req.Options.RequireOr(domain.OptMissingFields, ""))
	if err != nil {
		return err
	}
	start := mo.None[string]()
	if c, ok := req.Options.Get(domain.OptCursor); ok {
		start = mo.Some(c)
	}
	recordsField := req.Options.RequireOr(domain.OptRecordsField, a.conn.RecordsField)
	if recordsField == "" {
		recordsField = path.Base(object)
	}

	a.state = StateFetching
	a.object = object
	a.columns = append([]domain.Column(nil), req.Columns...)
	a.projector = projection.New(policy)

	f := fetch.New(a.tr, fetch.Config{
		AccessToken:  a.conn.AccessToken,
		RecordsField: recordsField,
		CursorField:  a.conn.CursorField,
		CursorParam:  a.conn.CursorParam,
		LimitParam:   a.conn.LimitParam,
		UserAgent:    a.conn.UserAgent,
		Limit:        limit,
		StartCursor:  start,
	}, a.reporter)

	records, pages, err := f.FetchAll(ctx, ResourceURL(a.conn.BaseURL, object))
	a.pages = pages
	if err != nil {
		a.state = StateFailed
		return fmt.Errorf("begin_scan %s: %w", object, err)
	}

	a.buffer = records
	a.offset = 0
	a.state = StateReady
	a.reporter.Info(fmt.Sprintf("Retrieved %d %s from remote API in %d pages.", len(records), object, pages),
		"columns", projection.Describe(a.columns))
	return nil
}

// IterScan projects the record at the current offset into row. It returns
// false once every record has been emitted; that is not an error.
func (a *Adapter) IterScan(_ context.Context, row *domain.Row) (bool, error) {
	switch a.state {
	case StateExhausted:
		return false, nil
	case StateReady:
	default:
		return false, fmt.Errorf("iter_scan: no scan in progress (state %s)", a.state)
	}

	if a.offset >= len(a.buffer) {
		a.state = StateExhausted
		return false, nil
	}
	out, err := a.projector.Project(a.buffer[a.offset], a.columns)
	if err != nil {
		return false, fmt.Errorf("iter_scan %s row %d: %w", a.object, a.offset, err)
	}
	*row = out
	a.offset++
	if a.offset == len(a.buffer) {
		a.state = StateExhausted
	}
	return true, nil
}

// ReScan is never supported: a scan must be ended and begun again.
func (a *Adapter) ReScan(context.Context) error {
	return domain.ErrUnsupported("re_scan")
}

// EndScan discards the record buffer and returns the adapter to Unstarted.
// Calling it again is a no-op.
func (a *Adapter) EndScan(context.Context) error {
	a.buffer = nil
	a.offset = 0
	a.pages = 0
	a.columns = nil
	a.projector = nil
	a.object = ""
	a.state = StateUnstarted
	return nil
}

// BeginModify rejects writes; the remote collection is read-only.
func (a *Adapter) BeginModify(context.Context) error { return domain.ErrUnsupported("modify") }

// Insert is not supported.
func (a *Adapter) Insert(context.Context, domain.Row) error { return domain.ErrUnsupported("insert") }

// Update is not supported.
func (a *Adapter) Update(context.Context, domain.Cell, domain.Row) error {
	return domain.ErrUnsupported("update")
}

// Delete is not supported.
func (a *Adapter) Delete(context.Context, domain.Cell) error { return domain.ErrUnsupported("delete") }

// EndModify has nothing to release.
func (a *Adapter) EndModify(context.Context) error { return nil }

// State returns the current lifecycle state.
func (a *Adapter) State() State { return a.state }

// Stats reports the pages fetched and records buffered by the current scan,
// and the read offset.
func (a *Adapter) Stats() (pages, records, offset int) {
	return a.pages, len(a.buffer), a.offset
}

// Columns returns the columns of the current scan.
func (a *Adapter) Columns() []domain.Column { return a.columns }

// ResourceURL joins object onto base unless base already names it.
func ResourceURL(base, object string) string {
	object = strings.Trim(object, "/")
	if object == "" {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return base + "/" + object
	}
	if strings.HasSuffix(strings.TrimRight(u.Path, "/"), "/"+object) {
		return base
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + object
	return u.String()
}
