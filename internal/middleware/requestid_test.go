package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveWithID runs one request through RequestID and returns the ID the
// handler saw together with the echoed response header.
func serveWithID(t *testing.T, header []string) (seen, echoed string) {
	t.Helper()
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/tables", nil)
	for _, h := range header {
		req.Header.Add("X-Request-ID", h)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	return seen, rec.Header().Get("X-Request-ID")
}

func TestRequestID_GeneratesUUIDWhenAbsent(t *testing.T) {
	seen, echoed := serveWithID(t, nil)

	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, echoed)

	again, _ := serveWithID(t, nil)
	assert.NotEqual(t, seen, again)
}

func TestRequestID_KeepsWellFormedIDs(t *testing.T) {
	for _, id := range []string{
		"scan-42",
		"custom-id.123",
		"A_b-C.d",
		"...",
		"0",
		strings.Repeat("z", 128),
		"550e8400-e29b-41d4-a716-446655440000",
	} {
		t.Run(id, func(t *testing.T) {
			seen, echoed := serveWithID(t, []string{id})
			assert.Equal(t, id, seen)
			assert.Equal(t, id, echoed)
		})
	}
}

func TestRequestID_ReplacesMalformedIDs(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"one past max length", strings.Repeat("a", 129)},
		{"far over max length", strings.Repeat("req-", 100)},
		{"newline", "fake-id\nlevel=ERROR msg=forged"},
		{"carriage return", "fake-id\rforged"},
		{"tab", "id\tx"},
		{"space", "id with spaces"},
		{"slash", "tenant/42"},
		{"colon", "scan:42"},
		{"markup", "<script>alert(1)</script>"},
		{"quote", `id"x`},
		{"non-ascii letter", "req-é"},
		{"non-ascii digit", "req-٣"},
		{"nul byte", "id\x00"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen, echoed := serveWithID(t, []string{tt.id})

			assert.NotEqual(t, tt.id, seen)
			assert.Len(t, seen, 36)
			_, err := uuid.Parse(seen)
			assert.NoError(t, err, "replacement should be a UUID")
			assert.Equal(t, seen, echoed)
		})
	}
}

func TestRequestID_UsesFirstHeaderValue(t *testing.T) {
	seen, _ := serveWithID(t, []string{"first-id", "second-id"})
	assert.Equal(t, "first-id", seen)
}

func TestRequestIDFromContext_EmptyWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, RequestIDFromContext(req.Context()))
}
