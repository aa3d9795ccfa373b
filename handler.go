package authgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clonex/auth-gateway/backend"
	"github.com/clonex/auth-gateway/instrumentation"
	"github.com/clonex/auth-gateway/security"
	"github.com/clonex/auth-gateway/server"
	"github.com/clonex/auth-gateway/session"
)

// Route paths. The /api/auth/* and /api/* paths are the contract with the
// frontend; /auth/callback must match the redirect URI registered with the
// provider.
const (
	PathLogin    = "/api/auth/twitter"
	PathCallback = "/auth/callback"
	PathRefresh  = "/api/auth/refresh"
	PathLogout   = "/api/auth/logout"
	PathMe       = "/api/auth/me"

	PathTimeline       = "/api/timeline"
	PathPosts          = "/api/posts"
	PathAnalysisCreate = "/api/analysis/create"
	PathGenerate       = "/api/generate"
	PathCheckout       = "/api/stripe/create-checkout-session"
)

// Handler provides the HTTP endpoints of the gateway
type Handler struct {
	server  *server.Server
	cookies *session.Manager
	backend *backend.Client
	config  *Config
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewHandler creates an HTTP handler around a flow server.
// backendClient may be nil when the proxy endpoints are not served.
func NewHandler(srv *server.Server, cookies *session.Manager, backendClient *backend.Client, config *Config, logger *slog.Logger) *Handler {
	if config == nil {
		config = &Config{}
	}
	config.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		server:  srv,
		cookies: cookies,
		backend: backendClient,
		config:  config,
		logger:  logger,
	}

	if srv.Instrumentation != nil {
		h.tracer = srv.Instrumentation.Tracer("http")
	}

	return h
}

// Routes returns a mux with all gateway endpoints registered
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

// RegisterRoutes registers the gateway endpoints on an existing mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(PathLogin, h.wrap(h.ServeLogin))
	mux.HandleFunc(PathCallback, h.wrap(h.ServeCallback))
	mux.HandleFunc(PathRefresh, h.wrap(h.ServeRefresh))
	mux.HandleFunc(PathLogout, h.wrap(h.ServeLogout))
	mux.HandleFunc(PathMe, h.wrap(h.ServeMe))

	if h.backend != nil {
		mux.HandleFunc(PathTimeline, h.wrap(h.ServeTimeline))
		mux.HandleFunc(PathPosts, h.wrap(h.ServePosts))
		mux.HandleFunc(PathAnalysisCreate, h.wrap(h.ServeAnalysisCreate))
		mux.HandleFunc(PathGenerate, h.wrap(h.ServeGenerate))
		mux.HandleFunc(PathCheckout, h.wrap(h.ServeCheckout))
	}
}

// wrap attaches a request ID to every request before dispatch
func (h *Handler) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r, _ = security.EnsureRequestID(w, r)
		next(w, r)
	}
}

// ServeLogin starts the authorization flow and redirects the browser to
// the provider's consent page
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "auth.http.login")
		defer span.End()
	}

	if r.Method != http.MethodGet {
		h.recordHTTPMetrics("login", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := h.clientIP(r)
	if !h.checkRateLimit(w, ctx, "login", clientIP) {
		h.recordHTTPMetrics("login", r.Method, http.StatusTooManyRequests, startTime)
		return
	}

	// The cookie verifier backend writes its cookie through the context;
	// other backends ignore the carrier.
	ctx = session.WithHTTP(ctx, w, r)

	redirect, err := h.server.StartAuthorizationFlow(ctx, h.config.Scope, clientIP)
	if err != nil {
		h.logger.Error("Failed to start authorization flow", "error", err)
		h.recordHTTPMetrics("login", r.Method, http.StatusInternalServerError, startTime)
		instrumentation.RecordError(span, err)
		instrumentation.SetSpanError(span, "authorization flow failed")
		h.writeError(w, "server_error", "Failed to start authorization flow", http.StatusInternalServerError)
		return
	}

	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrFlowOutcome, "started"))
	instrumentation.SetSpanSuccess(span)
	h.recordHTTPMetrics("login", r.Method, http.StatusFound, startTime)

	http.Redirect(w, r, redirect.URL, http.StatusFound)
}

// ServeCallback completes the authorization flow. Success issues the
// session cookies and lands the browser on the success page; every
// failure redirects to the error page with ?error={reason}.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "auth.http.callback")
		defer span.End()
	}

	if r.Method != http.MethodGet {
		h.recordHTTPMetrics("callback", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := h.clientIP(r)
	ctx = session.WithHTTP(ctx, w, r)

	q := r.URL.Query()
	cb := server.CallbackParams{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		ErrorCode:        q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}

	sess, err := h.server.CompleteAuthorization(ctx, cb, clientIP)
	if err != nil {
		reason := server.ReasonOf(err)
		instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrCallbackReason, reason))
		instrumentation.SetSpanError(span, "callback failed")
		h.recordHTTPMetrics("callback", r.Method, http.StatusFound, startTime)
		h.redirectError(w, r, reason)
		return
	}

	accessTTL := h.server.AccessTokenTTL(sess.Token)
	if err := h.cookies.Write(w, sess.User.ID, sess.Token, accessTTL, h.server.Config.RefreshTokenTTL); err != nil {
		h.logger.Error("Failed to write session cookies", "error", err)
		h.recordHTTPMetrics("callback", r.Method, http.StatusInternalServerError, startTime)
		instrumentation.RecordError(span, err)
		h.writeError(w, "server_error", "Failed to establish session", http.StatusInternalServerError)
		return
	}

	instrumentation.AddFlowAttributes(span, sess.User.ID, h.config.Scope)
	instrumentation.SetSpanSuccess(span)
	h.recordHTTPMetrics("callback", r.Method, http.StatusFound, startTime)

	http.Redirect(w, r, h.server.Config.SuccessRedirectURL, http.StatusFound)
}

// ServeRefresh exchanges the refresh token cookie for a new session.
// A rejected or missing refresh token clears the session cookies and
// answers 401 so the frontend sends the user back through login.
func (h *Handler) ServeRefresh(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "auth.http.refresh")
		defer span.End()
	}

	if h.handlePreflight(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		h.recordHTTPMetrics("refresh", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.setCORSHeaders(w, r)

	clientIP := h.clientIP(r)
	if !h.checkRateLimit(w, ctx, "refresh", clientIP) {
		h.recordHTTPMetrics("refresh", r.Method, http.StatusTooManyRequests, startTime)
		return
	}

	tokens := h.cookies.Read(r)

	sess, err := h.server.RefreshSession(ctx, tokens.RefreshToken, clientIP)
	if err != nil {
		reason := server.ReasonOf(err)
		status := httpStatusForReason(reason)
		if reason == ReasonSessionExpired {
			h.cookies.Clear(w)
			if h.server.Auditor != nil {
				h.server.Auditor.LogSessionExpired(tokens.UserID, clientIP, "refresh")
			}
			if m := h.metrics(); m != nil {
				m.RecordSessionExpired(ctx, "refresh")
			}
		}
		h.recordHTTPMetrics("refresh", r.Method, status, startTime)
		instrumentation.SetSpanError(span, reason)
		h.writeError(w, reason, "Session could not be refreshed", status)
		return
	}

	accessTTL := h.server.AccessTokenTTL(sess.Token)
	if err := h.cookies.Write(w, sess.User.ID, sess.Token, accessTTL, h.server.Config.RefreshTokenTTL); err != nil {
		h.logger.Error("Failed to write session cookies", "error", err)
		h.recordHTTPMetrics("refresh", r.Method, http.StatusInternalServerError, startTime)
		h.writeError(w, "server_error", "Failed to refresh session", http.StatusInternalServerError)
		return
	}

	instrumentation.AddFlowAttributes(span, sess.User.ID, "")
	instrumentation.SetSpanSuccess(span)
	h.recordHTTPMetrics("refresh", r.Method, http.StatusOK, startTime)

	h.writeJSON(w, http.StatusOK, RefreshResponse{
		Success: true,
		UserID:  sess.User.ID,
		Rotated: sess.Rotated,
	})
}

// ServeLogout revokes the session tokens and clears all session cookies.
// Always answers success: the cookies are gone either way.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx := r.Context()

	if h.handlePreflight(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		h.recordHTTPMetrics("logout", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.setCORSHeaders(w, r)

	tokens := h.cookies.Read(r)

	// The refresh cookie is path-scoped to the refresh endpoint and never
	// rides along here, so tokens.RefreshToken is empty and only the access
	// token reaches revocation.
	h.server.Logout(ctx, tokens.UserID, tokens.AccessToken, tokens.RefreshToken, h.clientIP(r))
	h.cookies.Clear(w)

	h.recordHTTPMetrics("logout", r.Method, http.StatusOK, startTime)
	h.writeJSON(w, http.StatusOK, LogoutResponse{Success: true})
}

// ServeMe resolves the current session to a user identity
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx := r.Context()

	if h.handlePreflight(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		h.recordHTTPMetrics("me", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.setCORSHeaders(w, r)

	tokens := h.cookies.Read(r)

	user, err := h.server.ValidateSession(ctx, tokens.AccessToken)
	if err != nil {
		reason := server.ReasonOf(err)
		status := httpStatusForReason(reason)
		if reason == ReasonSessionExpired {
			h.cookies.Clear(w)
			if m := h.metrics(); m != nil {
				m.RecordSessionExpired(ctx, "me")
			}
		}
		h.recordHTTPMetrics("me", r.Method, status, startTime)
		h.writeError(w, reason, "Session is not valid", status)
		return
	}

	h.recordHTTPMetrics("me", r.Method, http.StatusOK, startTime)
	h.writeJSON(w, http.StatusOK, UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Name:     user.Name,
	})
}

// ServeTimeline proxies GET /api/timeline to the backend API
func (h *Handler) ServeTimeline(w http.ResponseWriter, r *http.Request) {
	h.proxyGet(w, r, "timeline", func(ctx context.Context, creds backend.Credentials) (json.RawMessage, error) {
		return h.backend.Timeline(ctx, creds, r.URL.Query().Get("next_token"))
	})
}

// ServePosts proxies GET /api/posts to the backend API
func (h *Handler) ServePosts(w http.ResponseWriter, r *http.Request) {
	h.proxyGet(w, r, "posts", func(ctx context.Context, creds backend.Credentials) (json.RawMessage, error) {
		q := r.URL.Query()
		return h.backend.Posts(ctx, creds, q.Get("user_id"), q.Get("next_token"))
	})
}

// ServeAnalysisCreate proxies POST /api/analysis/create to the backend API
func (h *Handler) ServeAnalysisCreate(w http.ResponseWriter, r *http.Request) {
	h.proxyPost(w, r, "analysis_create", h.backend.CreateAnalysis)
}

// ServeGenerate proxies POST /api/generate to the backend API
func (h *Handler) ServeGenerate(w http.ResponseWriter, r *http.Request) {
	h.proxyPost(w, r, "generate", h.backend.GenerateTweets)
}

// ServeCheckout proxies POST /api/stripe/create-checkout-session to the
// backend API
func (h *Handler) ServeCheckout(w http.ResponseWriter, r *http.Request) {
	h.proxyPost(w, r, "checkout", h.backend.CreateCheckoutSession)
}

func (h *Handler) proxyGet(w http.ResponseWriter, r *http.Request, endpoint string, call func(context.Context, backend.Credentials) (json.RawMessage, error)) {
	startTime := time.Now()
	ctx := r.Context()

	if h.handlePreflight(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		h.recordHTTPMetrics(endpoint, r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.setCORSHeaders(w, r)

	tokens := h.cookies.Read(r)
	creds := backend.Credentials{AccessToken: tokens.AccessToken, UserID: tokens.UserID}

	result, err := call(ctx, creds)
	h.writeProxyResult(w, ctx, endpoint, r.Method, startTime, h.clientIP(r), tokens.UserID, result, err)
}

func (h *Handler) proxyPost(w http.ResponseWriter, r *http.Request, endpoint string, call func(context.Context, backend.Credentials, json.RawMessage) (json.RawMessage, error)) {
	startTime := time.Now()
	ctx := r.Context()

	if h.handlePreflight(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		h.recordHTTPMetrics(endpoint, r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.setCORSHeaders(w, r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxRequestBodySize))
	if err != nil {
		h.recordHTTPMetrics(endpoint, r.Method, http.StatusRequestEntityTooLarge, startTime)
		h.writeError(w, "invalid_request", "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	tokens := h.cookies.Read(r)
	creds := backend.Credentials{AccessToken: tokens.AccessToken, UserID: tokens.UserID}

	result, err := call(ctx, creds, body)
	h.writeProxyResult(w, ctx, endpoint, r.Method, startTime, h.clientIP(r), tokens.UserID, result, err)
}

// writeProxyResult relays a backend response. A backend 401 ends the
// session: cookies are cleared and the client gets session_expired.
// Structured backend errors pass through with their original status.
func (h *Handler) writeProxyResult(w http.ResponseWriter, ctx context.Context, endpoint, method string, startTime time.Time, clientIP, userID string, result json.RawMessage, err error) {
	if err == nil {
		h.recordHTTPMetrics(endpoint, method, http.StatusOK, startTime)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result)
		return
	}

	if errors.Is(err, backend.ErrSessionExpired) {
		h.cookies.Clear(w)
		if h.server.Auditor != nil {
			h.server.Auditor.LogSessionExpired(userID, clientIP, endpoint)
		}
		if m := h.metrics(); m != nil {
			m.RecordSessionExpired(ctx, endpoint)
		}
		h.recordHTTPMetrics(endpoint, method, http.StatusUnauthorized, startTime)
		h.writeError(w, ReasonSessionExpired, "Session is no longer valid", http.StatusUnauthorized)
		return
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		h.recordHTTPMetrics(endpoint, method, apiErr.StatusCode, startTime)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(apiErr.StatusCode)
		_, _ = w.Write(apiErr.Body)
		return
	}

	h.logger.Error("Backend request failed", "endpoint", endpoint, "error", err)
	h.recordHTTPMetrics(endpoint, method, http.StatusBadGateway, startTime)
	h.writeError(w, "backend_unreachable", "Backend API could not be reached", http.StatusBadGateway)
}

// redirectError sends the browser to the error page with the failure
// reason in the query string
func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, reason string) {
	base := h.server.Config.ErrorRedirectURL
	sep := "?"
	if u, err := url.Parse(base); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	http.Redirect(w, r, base+sep+"error="+url.QueryEscape(reason), http.StatusFound)
}

func (h *Handler) clientIP(r *http.Request) string {
	return security.GetClientIP(r, h.server.Config.TrustProxy)
}

func (h *Handler) metrics() *instrumentation.Metrics {
	if h.server.Instrumentation == nil {
		return nil
	}
	return h.server.Instrumentation.Metrics()
}

// checkRateLimit enforces the per-IP limiter. Returns false when the
// request was rejected and the response already written.
func (h *Handler) checkRateLimit(w http.ResponseWriter, ctx context.Context, endpoint, clientIP string) bool {
	if h.server.RateLimiter == nil {
		return true
	}
	if h.server.RateLimiter.Allow(clientIP) {
		return true
	}

	if h.server.Auditor != nil {
		h.server.Auditor.LogRateLimitExceeded(clientIP)
	}
	if m := h.metrics(); m != nil {
		m.RecordRateLimitExceeded(ctx)
	}
	h.logger.Warn("Rate limit exceeded", "endpoint", endpoint)

	w.Header().Set("Retry-After", "60")
	h.writeError(w, "rate_limit_exceeded", "Too many requests", http.StatusTooManyRequests)
	return false
}

// handlePreflight answers CORS preflight requests. Returns true when the
// request was a preflight and has been handled.
func (h *Handler) handlePreflight(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodOptions {
		return false
	}
	h.setCORSHeaders(w, r)
	w.WriteHeader(http.StatusNoContent)
	return true
}

func (h *Handler) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(h.config.CORS.AllowedOrigins) == 0 {
		return
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	if !h.isAllowedOrigin(origin) {
		h.logger.Debug("CORS request from disallowed origin", "origin", origin)
		return
	}

	// Echo the specific origin rather than "*" so credentialed requests work
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Add("Vary", "Origin")

	if h.config.CORS.AllowCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}

	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", h.config.CORS.MaxAge))
}

func (h *Handler) isAllowedOrigin(origin string) bool {
	for _, allowed := range h.config.CORS.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func (h *Handler) recordHTTPMetrics(endpoint, method string, status int, startTime time.Time) {
	if m := h.metrics(); m != nil {
		duration := time.Since(startTime).Seconds() * 1000
		m.RecordHTTPRequest(context.Background(), method, endpoint, status, duration)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, code, description string, status int) {
	security.SetSecurityHeaders(w)

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	security.SetSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
