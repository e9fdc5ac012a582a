package transport

import (
	"net/http"
	"strings"
)

// tokenPrefixLen is the most of a secret that may ever appear in diagnostics.
const tokenPrefixLen = 6

// TokenPrefix returns a bounded prefix of a secret followed by "...".
// Short tokens are masked entirely so that the prefix never reveals most of them.
func TokenPrefix(token string) string {
	if len(token) <= tokenPrefixLen*2 {
		return "********"
	}
	return token[:tokenPrefixLen] + "..."
}

// RedactHeaders masks credential-bearing header values for logging.
func RedactHeaders(h http.Header) http.Header {
	if h == nil {
		return h
	}
	cp := http.Header{}
	for k, vs := range h {
		for _, v := range vs {
			switch {
			case strings.EqualFold(k, "Authorization"):
				scheme, cred, ok := strings.Cut(v, " ")
				if ok {
					cp.Add(k, scheme+" "+TokenPrefix(cred))
				} else {
					cp.Add(k, TokenPrefix(v))
				}
			case strings.EqualFold(k, "X-Api-Key"):
				cp.Add(k, TokenPrefix(v))
			default:
				cp.Add(k, v)
			}
		}
	}
	return cp
}
