// Package fetch walks a cursor-paginated JSON collection endpoint.
//
// A Fetcher retrieves one page at a time (FetchPage) or drives the loop to
// completion (FetchAll). Every page is held in memory until the walk ends:
// very large collections cost memory proportional to their size.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/buger/jsonparser"
	"github.com/samber/mo"

	"duck-restfdw/internal/domain"
	"duck-restfdw/internal/transport"
)

// Defaults match the Square Customers API.
const (
	DefaultRecordsField = "customers"
	DefaultCursorField  = "cursor"
	DefaultCursorParam  = "cursor"
	DefaultLimitParam   = "limit"
	DefaultUserAgent    = "restfdw/0.1"
)

var errInvalidJSON = errors.New("body is not valid JSON")

// maxErrorBody bounds the response excerpt carried by HTTPStatusError.
const maxErrorBody = 512

// Config describes one remote collection and how it paginates.
type Config struct {
	AccessToken  string
	RecordsField string
	CursorField  string
	CursorParam  string
	LimitParam   string
	UserAgent    string
	Limit        int                // page size hint; 0 omits the parameter
	StartCursor  mo.Option[string] // first cursor sent by FetchAll
}

func (c *Config) applyDefaults() {
	if c.RecordsField == "" {
		c.RecordsField = DefaultRecordsField
	}
	if c.CursorField == "" {
		c.CursorField = DefaultCursorField
	}
	if c.CursorParam == "" {
		c.CursorParam = DefaultCursorParam
	}
	if c.LimitParam == "" {
		c.LimitParam = DefaultLimitParam
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
}

// Page is one decoded response.
type Page struct {
	Records []domain.RawRecord
	Next    mo.Option[string]
}

// Fetcher fetches pages through a Transport.
type Fetcher struct {
	tr       transport.Transport
	cfg      Config
	reporter domain.Reporter
}

// New creates a Fetcher. reporter may be nil.
func New(tr transport.Transport, cfg Config, reporter domain.Reporter) *Fetcher {
	cfg.applyDefaults()
	return &Fetcher{tr: tr, cfg: cfg, reporter: reporter}
}

// FetchPage requests a single page, optionally positioned at cursor.
func (f *Fetcher) FetchPage(ctx context.Context, baseURL string, cursor mo.Option[string]) (Page, error) {
	res, err := f.tr.Get(ctx, transport.Request{
		URL:     f.pageURL(baseURL, cursor),
		Headers: f.headers(),
	})
	if err != nil {
		return Page{}, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Page{}, &domain.HTTPStatusError{StatusCode: res.StatusCode, Body: excerpt(res.Body)}
	}
	return parsePage(res.Body, f.cfg.RecordsField, f.cfg.CursorField)
}

// FetchAll walks every page starting from the configured start cursor and
// returns all records in request order along with the number of pages read.
// Any page error discards everything fetched so far.
func (f *Fetcher) FetchAll(ctx context.Context, baseURL string) ([]domain.RawRecord, int, error) {
	var (
		records []domain.RawRecord
		cursor  = f.cfg.StartCursor
		pages   int
	)
	for {
		page, err := f.FetchPage(ctx, baseURL, cursor)
		if err != nil {
			return nil, pages, fmt.Errorf("fetch page %d: %w", pages+1, err)
		}
		pages++
		records = append(records, page.Records...)
		if f.reporter != nil {
			f.reporter.PageFetched(pages, len(page.Records), len(records))
		}
		if page.Next.IsAbsent() {
			return records, pages, nil
		}
		cursor = page.Next
	}
}

func (f *Fetcher) headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+f.cfg.AccessToken)
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", f.cfg.UserAgent)
	return h
}

// pageURL appends pagination parameters by plain concatenation; existing
// query parameters on baseURL are left untouched.
func (f *Fetcher) pageURL(baseURL string, cursor mo.Option[string]) string {
	var params []string
	if f.cfg.Limit > 0 {
		params = append(params, f.cfg.LimitParam+"="+strconv.Itoa(f.cfg.Limit))
	}
	if c, ok := cursor.Get(); ok {
		params = append(params, f.cfg.CursorParam+"="+url.QueryEscape(c))
	}
	if len(params) == 0 {
		return baseURL
	}
	sep := "?"
	if strings.Contains(baseURL, "?") {
		sep = "&"
	}
	return baseURL + sep + strings.Join(params, "&")
}

// parsePage extracts the records array and the continuation cursor from a
// response body. A cursor that is missing, null, empty or not a string ends
// pagination.
func parsePage(body []byte, recordsField, cursorField string) (Page, error) {
	if !json.Valid(body) {
		return Page{}, &domain.ParseError{Err: errInvalidJSON}
	}
	if _, typ, _, err := jsonparser.Get(body); err != nil || typ != jsonparser.Object {
		return Page{}, domain.ErrSchema("", "expected response body to be a JSON object")
	}

	_, typ, _, err := jsonparser.Get(body, recordsField)
	if err != nil || typ != jsonparser.Array {
		return Page{}, domain.ErrSchema(recordsField, "expected field `%s` to be a JSON array", recordsField)
	}

	var (
		records []domain.RawRecord
		elemErr error
	)
	_, err = jsonparser.ArrayEach(body, func(value []byte, dt jsonparser.ValueType, _ int, _ error) {
		if elemErr != nil {
			return
		}
		if dt != jsonparser.Object {
			elemErr = domain.ErrSchema(recordsField, "expected field `%s` to contain JSON objects, found %s", recordsField, dt)
			return
		}
		rec, err := decodeRecord(value)
		if err != nil {
			elemErr = &domain.ParseError{Err: err}
			return
		}
		records = append(records, rec)
	}, recordsField)
	if elemErr != nil {
		return Page{}, elemErr
	}
	if err != nil {
		return Page{}, &domain.ParseError{Err: err}
	}

	page := Page{Records: records, Next: mo.None[string]()}
	if raw, typ, _, err := jsonparser.Get(body, cursorField); err == nil && typ == jsonparser.String {
		if s, err := jsonparser.ParseString(raw); err == nil && s != "" {
			page.Next = mo.Some(s)
		}
	}
	return page, nil
}

// decodeRecord decodes one object keeping numbers as json.Number so integer
// columns are not rounded through float64.
func decodeRecord(data []byte) (domain.RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec domain.RawRecord
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "..."
	}
	return s
}
