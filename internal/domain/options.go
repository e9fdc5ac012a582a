package domain

import (
	"strconv"
	"strings"
)

// OptionsType selects which option scope a lookup targets.
type OptionsType string

// Option scopes.
const (
	OptionsServer OptionsType = "server"
	OptionsTable  OptionsType = "table"
)

// Server-level option keys.
const (
	OptBaseURL        = "base_url"
	OptAccessToken    = "access_token"
	OptAccessTokenEnv = "access_token_env"
	OptRecordsField   = "records_field"
	OptCursorField    = "cursor_field"
	OptCursorParam    = "cursor_param"
	OptLimitParam     = "limit_param"
	OptUserAgent      = "user_agent"
)

// Table-level option keys.
const (
	OptObject        = "object"
	OptLimit         = "limit"
	OptCursor        = "cursor"
	OptMissingFields = "missing_fields"
	OptRefresh       = "refresh"
)

// Options is a flat string option map for one scope.
type Options struct {
	Scope  OptionsType
	Values map[string]string
}

// NewOptions builds an Options value, copying the given map.
func NewOptions(scope OptionsType, values map[string]string) Options {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Options{Scope: scope, Values: cp}
}

// Get returns the trimmed value for key and whether it was set to a non-empty value.
func (o Options) Get(key string) (string, bool) {
	v, ok := o.Values[key]
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Require returns the value for key or a ConfigError naming the option.
func (o Options) Require(key string) (string, error) {
	v, ok := o.Get(key)
	if !ok {
		return "", ErrConfig(key, "required %s option %q is missing", o.Scope, key)
	}
	return v, nil
}

// RequireOr returns the value for key, or def when it is not set.
func (o Options) RequireOr(key, def string) string {
	if v, ok := o.Get(key); ok {
		return v
	}
	return def
}

// Int returns the value for key parsed as a positive integer. Unset keys yield (0, nil).
func (o Options) Int(key string) (int, error) {
	v, ok := o.Get(key)
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, ErrConfig(key, "%s option %q must be a positive integer, got %q", o.Scope, key, v)
	}
	return n, nil
}
