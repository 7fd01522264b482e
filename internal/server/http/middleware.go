package httpserver

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/jdue/internal/errs"
	"github.com/and161185/jdue/internal/metrics"
	"github.com/and161185/jdue/internal/model"
	"github.com/and161185/jdue/internal/session"
	"github.com/and161185/jdue/internal/webauthn"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests writes one structured line per request. Bodies are never logged.
func logRequests(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)
			log.Info("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sr.status),
				zap.Duration("dur", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}

func recoverer(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("panic",
						zap.Any("reason", rec),
						zap.ByteString("stack", debug.Stack()),
						zap.String("path", r.URL.Path),
					)
					writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// instrument records request counts and latency labelled by route pattern.
func instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			m.ObserveHTTP(r.Method, route, sr.status, time.Since(start))
		})
	}
}

// Accounts is the user lookup the bearer middleware needs.
type Accounts interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// authenticate validates the bearer token and re-reads the account so that a
// ban or a revoked admin flag takes effect before the token expires.
func authenticate(sessions *session.Issuer, accounts Accounts, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("Authorization")
			if len(raw) < len("bearer ") || !strings.EqualFold(raw[:len("bearer ")], "bearer ") {
				writeError(w, log, errs.ErrUnauthorized)
				return
			}
			claims, err := sessions.Parse(strings.TrimSpace(raw[len("bearer "):]))
			if err != nil {
				writeError(w, log, err)
				return
			}
			u, err := accounts.GetByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, errs.ErrNotFound) {
					err = errs.ErrUnauthorized
				}
				writeError(w, log, err)
				return
			}
			if u.Status != model.StatusActive {
				writeError(w, log, &webauthn.AccountInactiveError{Status: u.Status})
				return
			}
			ctx := WithCaller(r.Context(), Caller{UserID: u.ID, Admin: u.IsAdmin})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requireAdmin(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := CallerFromCtx(r.Context())
			if !ok || !c.Admin {
				writeError(w, log, errs.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
