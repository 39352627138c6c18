package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/loyalty-portal/api/responses"
	pkgerrors "github.com/angelmondragon/loyalty-portal/pkg/errors"
	"github.com/angelmondragon/loyalty-portal/pkg/kv"
	"github.com/angelmondragon/loyalty-portal/pkg/logger"
)

// maxPeekBytes caps how much of a credential body is buffered to find the email.
const maxPeekBytes = 64 << 10

// RateLimitPolicy throttles one credential endpoint. A zero limit disables
// that scope; a zero window disables the policy.
type RateLimitPolicy struct {
	Name     string
	Window   time.Duration
	PerIP    int
	PerEmail int
}

func (p RateLimitPolicy) enabled() bool {
	return p.Window > 0 && (p.PerIP > 0 || p.PerEmail > 0)
}

func (p RateLimitPolicy) key(scope, value string) string {
	name := strings.ToLower(strings.TrimSpace(p.Name))
	if name == "" {
		name = "auth"
	}
	return fmt.Sprintf("rl:%s:%s:%s", name, scope, value)
}

type rateScope struct {
	name  string
	value string
	limit int
}

// RateLimit counts attempts per client IP and per submitted email within the
// policy window. A nil counter disables limiting.
func RateLimit(policy RateLimitPolicy, counter kv.Counter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || counter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			scopes := make([]rateScope, 0, 2)
			if policy.PerIP > 0 {
				if ip := clientIP(r); ip != "" {
					scopes = append(scopes, rateScope{name: "ip", value: ip, limit: policy.PerIP})
				}
			}
			if policy.PerEmail > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "could not read request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if email := emailFrom(body); email != "" {
					scopes = append(scopes, rateScope{name: "email", value: hashValue(email), limit: policy.PerEmail})
				}
			}

			for _, scope := range scopes {
				count, err := counter.IncrWithTTL(ctx, policy.key(scope.name, scope.value), policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable"))
					return
				}
				if count > int64(scope.limit) {
					rejectRateLimited(ctx, logg, w, policy, scope, count)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, scope rateScope, count int64) {
	retryAfter := int(policy.Window.Seconds())
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":   policy.Name,
			"scope":    scope.name,
			"attempts": count,
			"limit":    scope.limit,
		}), "rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	err := pkgerrors.New(pkgerrors.CodeRateLimit, "Too many attempts. Try again later.").
		WithDetails(map[string]any{"scope": scope.name, "retryAfterSeconds": retryAfter})
	responses.WriteError(ctx, logg, w, err)
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		first, _, _ := strings.Cut(header, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func emailFrom(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
