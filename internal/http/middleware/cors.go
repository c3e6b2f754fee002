package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowedHeaders = "Authorization, Content-Type, X-Request-Id"
	corsAllowedMethods = "GET, POST, OPTIONS"
	corsMaxAge         = "600"
)

// originPolicy decides which browser origins may call the API. Entries are
// exact origins, "*" for any origin, or "https://*.example.com" for any
// subdomain of a practice site embedding the chat widget.
type originPolicy struct {
	any      bool
	exact    map[string]struct{}
	suffixes []string // "https://" + ".example.com"
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{exact: map[string]struct{}{}}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch {
		case origin == "":
		case origin == "*":
			p.any = true
		case strings.Contains(origin, "://*."):
			scheme, host, _ := strings.Cut(origin, "://*")
			p.suffixes = append(p.suffixes, scheme+"://\x00"+host)
		default:
			p.exact[strings.ToLower(origin)] = struct{}{}
		}
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if p.any {
		return true
	}
	origin = strings.ToLower(origin)
	if _, ok := p.exact[origin]; ok {
		return true
	}
	for _, s := range p.suffixes {
		prefix, suffix, _ := strings.Cut(s, "\x00")
		if strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) && len(origin) > len(prefix)+len(suffix) {
			return true
		}
	}
	return false
}

// CORS answers preflights and sets CORS headers for allowed origins. Preflights
// from other origins are refused with 403; simple requests pass through
// without CORS headers and the browser blocks the response.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			allowed := policy.allows(origin)
			if origin != "" {
				w.Header().Add("Vary", "Origin")
			}
			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Headers", corsAllowedHeaders)
				w.Header().Set("Access-Control-Allow-Methods", corsAllowedMethods)
				w.Header().Set("Access-Control-Max-Age", corsMaxAge)
			}

			if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
				if !allowed {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
