// ABOUTME: HTTP renderer for OpsDeck sessions: HTML page, JSON state API, metrics and health.
// ABOUTME: Every request resolves its session by cookie and renders through the shell.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jfeddern/OpsDeck/internal/rbac"
	"github.com/jfeddern/OpsDeck/internal/shell"
	"github.com/jfeddern/OpsDeck/internal/views"

	"github.com/klauspost/compress/gzhttp"
	"github.com/sirupsen/logrus"
)

// SessionCookie names the cookie carrying the session id
const SessionCookie = "opsdeck_session"

// maxFormBytes bounds a form body; scanned code is the largest field
const maxFormBytes = 1 << 20

type Server struct {
	store    *shell.Store
	registry rbac.Resolver
	metrics  http.Handler
	logger   *logrus.Logger
}

func NewServer(store *shell.Store, registry rbac.Resolver, metrics http.Handler, logger *logrus.Logger) *Server {
	return &Server{
		store:    store,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
	}
}

// Handler returns the full route table behind compression and security headers
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.securityMiddleware(s.pageHandler))
	mux.HandleFunc("/api/session", s.securityMiddleware(s.sessionHandler))
	mux.HandleFunc("/nav", s.securityMiddleware(s.post(s.navHandler)))
	mux.HandleFunc("/cms", s.securityMiddleware(s.post(s.editorHandler)))
	mux.HandleFunc("/tasks", s.securityMiddleware(s.post(s.tasksHandler)))
	mux.HandleFunc("/scanner", s.securityMiddleware(s.post(s.scannerHandler)))
	mux.HandleFunc("/community", s.securityMiddleware(s.post(s.communityHandler)))
	mux.HandleFunc("/settings", s.securityMiddleware(s.post(s.settingsHandler)))
	if s.metrics != nil {
		mux.HandleFunc("/metrics", s.securityMiddleware(s.metrics.ServeHTTP))
	}
	mux.HandleFunc("/health", s.securityMiddleware(s.healthHandler))

	return gzhttp.GzipHandler(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.logger.WithField("port", port).Info("Starting HTTP server")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) securityMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Security headers
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; form-action 'self'; script-src 'none'; object-src 'none'; frame-ancestors 'none'")

		// Only allow specific HTTP methods
		if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"remote_ip":  r.RemoteAddr,
			"user_agent": r.UserAgent(),
		}).Debug("HTTP request received")

		next(w, r)
	}
}

// post restricts a handler to form submissions and parses the bounded body
func (s *Server) post(next func(http.ResponseWriter, *http.Request, *shell.Shell)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form body", http.StatusBadRequest)
			return
		}
		next(w, r, s.session(w, r))
	}
}

// session resolves the caller's shell, starting a new one for unknown cookies
func (s *Server) session(w http.ResponseWriter, r *http.Request) *shell.Shell {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}

	sh, created := s.store.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sh.Session().ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sh
}

func (s *Server) pageHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method == http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.renderPage(w, s.session(w, r).Render(), http.StatusOK, "")
}

func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.session(w, r).Render(), s.logger)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, s.store.Len())
}

// respond finishes a form action: 303 back to the page for browsers, the
// frame for API clients, or the mapped error status
func (s *Server) respond(w http.ResponseWriter, r *http.Request, sh *shell.Shell, err error) {
	if err == nil {
		if wantsJSON(r) {
			writeJSON(w, http.StatusOK, sh.Render(), s.logger)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	status := statusFor(err)
	logger := s.logger.WithFields(logrus.Fields{
		"path":    r.URL.Path,
		"session": sh.Session().ID,
		"status":  status,
	})
	if status >= http.StatusInternalServerError {
		logger.WithError(err).Warn("Action failed")
	} else {
		logger.WithError(err).Debug("Action rejected")
	}

	frame := sh.Render()
	if wantsJSON(r) {
		writeJSON(w, status, errorResponse{Error: err.Error(), Frame: frame}, s.logger)
		return
	}
	s.renderPage(w, frame, status, userMessage(err))
}

type errorResponse struct {
	Error string      `json:"error"`
	Frame shell.Frame `json:"frame"`
}

func statusFor(err error) int {
	var denied *shell.DeniedError
	switch {
	case errors.As(err, &denied), errors.Is(err, views.ErrReadOnly):
		return http.StatusForbidden
	case errors.Is(err, views.ErrNotFound), errors.Is(err, errUnknownView):
		return http.StatusNotFound
	case errors.Is(err, views.ErrEmptyInput), errors.Is(err, views.ErrInvalidArgument), errors.Is(err, rbac.ErrUnknownRole):
		return http.StatusBadRequest
	case errors.Is(err, shell.ErrViewNotActive), errors.Is(err, views.ErrScanInFlight), errors.Is(err, views.ErrPolishInFlight):
		return http.StatusConflict
	case errors.Is(err, shell.ErrClosed):
		return http.StatusGone
	case errors.Is(err, views.ErrCollaboratorNone):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func userMessage(err error) string {
	var denied *shell.DeniedError
	switch {
	case errors.As(err, &denied):
		return fmt.Sprintf("Access denied. This action requires %s clearance.", denied.Decision.RequiredRoles)
	case errors.Is(err, views.ErrReadOnly):
		return "This module is read-only for your role."
	case errors.Is(err, views.ErrEmptyInput):
		return "Nothing to submit."
	case errors.Is(err, views.ErrScanInFlight), errors.Is(err, views.ErrPolishInFlight):
		return "Please wait for the running request to finish."
	case errors.Is(err, shell.ErrViewNotActive):
		return "That module is no longer open."
	case errors.Is(err, shell.ErrClosed):
		return "Your session has ended. Reload to start a new one."
	case errors.Is(err, views.ErrCollaboratorNone):
		return "The AI service is not configured."
	default:
		return "The request could not be completed."
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *logrus.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("Failed to encode JSON response")
	}
}
