package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const adminClaimsKey contextKey = "adminClaims"

// adminClockSkew tolerates small drift between the token issuer and this host.
const adminClockSkew = 30 * time.Second

// AdminJWTOption adjusts token validation.
type AdminJWTOption func(*adminJWTConfig)

type adminJWTConfig struct {
	audience string
	leeway   time.Duration
}

// WithAudience requires tokens to name aud. Blank disables the check.
func WithAudience(aud string) AdminJWTOption {
	return func(c *adminJWTConfig) { c.audience = strings.TrimSpace(aud) }
}

// WithLeeway overrides the allowed clock skew.
func WithLeeway(d time.Duration) AdminJWTOption {
	return func(c *adminJWTConfig) {
		if d >= 0 {
			c.leeway = d
		}
	}
}

// AdminJWT guards the admin reporting endpoints with an HS256 bearer token
// that must carry a subject and an expiry.
func AdminJWT(secret string, opts ...AdminJWTOption) func(http.Handler) http.Handler {
	cfg := adminJWTConfig{leeway: adminClockSkew}
	for _, opt := range opts {
		opt(&cfg)
	}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.leeway),
	}
	if cfg.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(cfg.audience))
	}
	parser := jwt.NewParser(parserOpts...)
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeAuthError(w, "admin auth disabled")
				return
			}
			raw, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, "missing bearer token")
				return
			}
			claims := jwt.RegisteredClaims{}
			token, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
				return key, nil
			})
			if err != nil || !token.Valid || strings.TrimSpace(claims.Subject) == "" {
				writeAuthError(w, "invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), adminClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// AdminClaimsFromContext returns admin JWT claims if present.
func AdminClaimsFromContext(ctx context.Context) (jwt.RegisteredClaims, bool) {
	claims, ok := ctx.Value(adminClaimsKey).(jwt.RegisteredClaims)
	return claims, ok
}

// AdminSubject returns the authenticated admin's subject, or "".
func AdminSubject(ctx context.Context) string {
	claims, ok := AdminClaimsFromContext(ctx)
	if !ok {
		return ""
	}
	return claims.Subject
}
