// Package http exposes the ledger as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tally/internal/auth"
	"tally/internal/cache"
	"tally/internal/services"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyUserID    ctxKey = "user_id"
)

type Server struct {
	http.Server
	ledger      *services.LedgerService
	reports     *services.ReportService
	auth        *auth.Service
	rateLimiter *rateLimiter

	// Report responses are cached per user; a mutation bumps the user's
	// generation so stale entries age out of the LRU untouched.
	spendingCache cache.Cache[services.SpendingReport]
	incomeCache   cache.Cache[services.IncomeReport]
	generations   sync.Map
	janitor       *cache.Janitor

	shutdownOnce sync.Once
}

func NewServer(addr string, ledger *services.LedgerService, reports *services.ReportService, authSvc *auth.Service) *Server {
	mux := http.NewServeMux()

	spendingCache := cache.NewLRUCache[services.SpendingReport](200, 5*time.Minute)
	incomeCache := cache.NewLRUCache[services.IncomeReport](200, 5*time.Minute)

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		ledger:        ledger,
		reports:       reports,
		auth:          authSvc,
		rateLimiter:   newRateLimiter(),
		spendingCache: spendingCache,
		incomeCache:   incomeCache,
		janitor:       cache.NewJanitor(),
	}

	s.janitor.Register(spendingCache)
	s.janitor.Register(incomeCache)
	s.janitor.Start(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("POST /auth/register", s.withSecurityHeaders(s.handleRegister))
	mux.HandleFunc("POST /auth/login", s.withSecurityHeaders(s.handleLogin))
	mux.HandleFunc("POST /auth/logout", s.withSecurityHeaders(s.requireAuth(s.handleLogout)))

	mux.HandleFunc("POST /transactions", s.withSecurityHeaders(s.requireAuth(s.handleCreateTransaction)))
	mux.HandleFunc("GET /transactions/pending", s.withSecurityHeaders(s.requireAuth(s.handlePendingTransactions)))
	mux.HandleFunc("POST /transactions/{id}/payments", s.withSecurityHeaders(s.requireAuth(s.handleRecordPayment)))
	mux.HandleFunc("POST /transactions/{id}/paid", s.withSecurityHeaders(s.requireAuth(s.handleMarkPaid)))

	mux.HandleFunc("GET /transactions/pending/stream", s.withSecurityHeaders(s.requireAuth(s.handlePendingStream)))

	mux.HandleFunc("GET /summary", s.withSecurityHeaders(s.requireAuth(s.handleSummary)))
	mux.HandleFunc("GET /summary/stream", s.withSecurityHeaders(s.requireAuth(s.handleSummaryStream)))
	mux.HandleFunc("GET /reports/spending", s.withSecurityHeaders(s.requireAuth(s.handleSpendingReport)))
	mux.HandleFunc("GET /reports/income", s.withSecurityHeaders(s.requireAuth(s.handleIncomeReport)))

	mux.HandleFunc("PUT /user/currency", s.withSecurityHeaders(s.requireAuth(s.handleSetCurrency)))
	mux.HandleFunc("DELETE /user/data", s.withSecurityHeaders(s.requireAuth(s.handleWipeData)))

	return s
}

// Shutdown stops the HTTP server and the background cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		s.janitor.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := clientIP(r)

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

// requireAuth validates the bearer token and stores the user id in the
// request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
			return
		}

		userID, err := s.auth.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
		next(w, r.WithContext(ctx))
	}
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKeyUserID).(string)
	return id
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets the streaming handlers see through to the real writer.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
