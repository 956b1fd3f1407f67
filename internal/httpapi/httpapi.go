package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"venuebook/backend/internal/domain"
	"venuebook/backend/internal/observability"
	"venuebook/backend/internal/service"
)

const (
	requestTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

type API struct {
	service        *service.Service
	auth           *AuthManager
	logger         *zap.Logger
	allowedOrigin  string
	bookingLimiter *attemptLimiter
}

type Options struct {
	AllowedOrigin     string
	Logger            *zap.Logger
	BookingsPerMinute int
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origin := opts.AllowedOrigin
	if origin == "" {
		origin = "*"
	}
	perMinute := opts.BookingsPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	return &API{
		service:        svc,
		auth:           auth,
		logger:         logger,
		allowedOrigin:  origin,
		bookingLimiter: newAttemptLimiter(perMinute, time.Minute),
	}
}

// attemptLimiter is a sliding-window counter per client key. Keys whose
// attempts have all aged out are swept at most once per window.
type attemptLimiter struct {
	mu        sync.Mutex
	max       int
	window    time.Duration
	entries   map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time), now: time.Now}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func (l *attemptLimiter) sweep(cutoff time.Time) {
	for key, history := range l.entries {
		if len(history) == 0 || !history[len(history)-1].After(cutoff) {
			delete(l.entries, key)
		}
	}
}

// clientKey is the TCP peer address. Forwarding headers are ignored since
// any client can set them.
func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		a.recoverer,
		observability.TraceMiddleware,
		a.accessLog,
		a.securityHeaders,
		middleware.Timeout(requestTimeout),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, r, http.StatusNotFound, "ROUTE_NOT_FOUND", fmt.Sprintf("no route for %s", r.URL.Path), nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", fmt.Sprintf("method %s not allowed on %s", r.Method, r.URL.Path), nil)
	})

	r.Get("/healthz", a.handleHealth)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/items/{id}/tax", a.handleItemTax)
		api.With(a.requireRole(domain.RoleAdmin)).Post("/items/{id}/availability", a.handleAddAvailability)

		api.Route("/pricing", func(p chi.Router) {
			p.Get("/item/{id}", a.handleCalculatePrice)
			p.Group(func(admin chi.Router) {
				admin.Use(a.requireRole(domain.RoleAdmin))
				admin.Post("/validate", a.handleValidatePricing)
				admin.Put("/item/{id}", a.handleSetPricing)
			})
		})

		api.Route("/bookings", func(b chi.Router) {
			b.Get("/slots/{itemId}", a.handleAvailableSlots)
			b.Post("/", a.handleCreateBooking)
			b.Group(func(owner chi.Router) {
				owner.Use(a.optionalActor)
				owner.Get("/{id}", a.handleGetBooking)
				owner.Post("/{id}/cancel", a.handleCancelBooking)
			})
		})
	})

	return r
}

func (a *API) requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
				writeFailure(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
				return
			}

			actor, err := a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
			if err != nil {
				writeFailure(w, r, http.StatusUnauthorized, "UNAUTHORIZED", err.Error(), nil)
				return
			}
			if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
				writeFailure(w, r, http.StatusForbidden, "FORBIDDEN", "forbidden role", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
		})
	}
}

// optionalActor attaches the token's actor when a bearer token is sent. A
// request without one passes through anonymously; a bad token is rejected.
func (a *API) optionalActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(r.Header.Get("Authorization")) == "" {
			next.ServeHTTP(w, r)
			return
		}
		a.requireRole()(next).ServeHTTP(w, r)
	})
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		a.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(startedAt)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// recoverer turns a handler panic into the standard 500 envelope.
func (a *API) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				a.logger.Error("handler panic",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
				writeFailure(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Message   string              `json:"message"`
	Code      string              `json:"code"`
	Details   []domain.FieldError `json:"details,omitempty"`
	RequestID string              `json:"requestId,omitempty"`
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return domain.Validation(fmt.Sprintf("Invalid request body: %v", err))
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for bodies the caller may leave empty.
func decodeOptionalJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		return domain.Validation(fmt.Sprintf("Invalid request body: %v", err))
	}
	return nil
}

// writeError maps service errors onto HTTP statuses. Anything that is not a
// domain error is logged and reported as a generic 500.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	derr, ok := domain.AsError(err)
	if !ok {
		a.logger.Error("internal error",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
		writeFailure(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		return
	}

	status := http.StatusInternalServerError
	switch derr.Kind {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindConflict:
		status = http.StatusConflict
	case domain.KindBusinessRule:
		status = http.StatusUnprocessableEntity
	}
	writeFailure(w, r, status, string(derr.Kind), derr.Message, derr.Details)
}

func writeFailure(w http.ResponseWriter, r *http.Request, status int, code, message string, details []domain.FieldError) {
	writeJSON(w, status, envelope{
		Error: &errorBody{
			Message:   message,
			Code:      code,
			Details:   details,
			RequestID: middleware.GetReqID(r.Context()),
		},
	})
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func pathParam(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(chi.URLParam(r, name))
	if v == "" {
		return "", domain.Validation("Missing path parameter", domain.FieldError{Field: name, Message: "is required"})
	}
	return v, nil
}
