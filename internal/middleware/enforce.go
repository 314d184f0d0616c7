package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aspira/backend/internal/metrics"
	"github.com/aspira/backend/internal/policy"
	"go.uber.org/zap"
)

// ErrAuthorizationDenied is the response to an anonymous request for a
// route that requires authentication.
var ErrAuthorizationDenied = errors.New("authentication required")

// Enforce rejects requests the policy does not allow with 401 before any
// handler runs. It must follow Authenticate.
func Enforce(p *policy.Policy, log *zap.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	log = orNop(log)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := policy.Anonymous
			if _, ok := UserFromContext(r.Context()); ok {
				state = policy.Resolved
			}

			decision := p.Decide(r.Method, r.URL.Path)
			allowed := decision.Allows(state)
			m.ObservePolicyDecision(decision.Access.String(), allowed)
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			log.Info("request denied",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("rule", decision.Pattern),
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="aspira"`)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": ErrAuthorizationDenied.Error()})
		})
	}
}
