package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/mentorlink/internal/auth/service"
	"github.com/aussiebroadwan/mentorlink/internal/auth/telemetry"
	"github.com/aussiebroadwan/mentorlink/pkg/httpx"
	"github.com/aussiebroadwan/mentorlink/pkg/jwtx"
	"github.com/aussiebroadwan/mentorlink/pkg/slogx"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	limits       httpx.RateLimits
	keys         *jwtx.KeySet
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        Pinger

	TokenService  *service.TokenService
	SocialService *service.SocialService

	// HTTPMetrics and MetricsHandler are optional. Without a handler
	// /metrics is not served.
	HTTPMetrics    *telemetry.HTTPMetrics
	MetricsHandler http.Handler
}

// NewRouter builds a router that throttles its endpoints with limits. Pass
// httpx.DefaultRateLimits() for the built-in profiles.
func NewRouter(keys *jwtx.KeySet, buildVersion string, st Pinger, limits httpx.RateLimits, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		limits:       limits,
		keys:         keys,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerTokens()
	r.registerLinks()
	r.registerSystem()
}

// ServeHTTP applies the global middleware chain. Request metrics sit
// innermost so they see the pattern the mux matched.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.HTTPMetrics.Middleware(r.Mux), r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) authn() httpx.Middleware {
	return httpx.AuthnMiddleware(BearerAuthenticator{Tokens: r.TokenService})
}

func (r *Router) registerTokens() {
	// POST /token - strict rate limit by IP (covers both grant types)
	tokenHandler := &TokenHandler{TokenService: r.TokenService, SocialService: r.SocialService}
	r.Mux.Handle("POST /v1/auth/token",
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIP(r.limits.Strict),
		),
	)

	logoutHandler := &LogoutHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(logoutHandler.HandleLogout),
			r.authn(),
			httpx.RateLimitByUser(r.limits.Moderate),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout-all",
		httpx.Chain(http.HandlerFunc(logoutHandler.HandleLogoutAll),
			r.authn(),
			httpx.RateLimitByUser(r.limits.Moderate),
		),
	)
}

func (r *Router) registerLinks() {
	h := &LinksHandler{SocialService: r.SocialService}

	// Link tokens are bearer secrets; guessing is throttled per IP.
	r.Mux.Handle("GET /v1/auth/links/{token}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.RateLimitByIP(r.limits.Moderate),
		),
	)
	r.Mux.Handle("POST /v1/auth/links/{token}/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirm),
			httpx.RateLimitByIP(r.limits.Strict),
		),
	)
	r.Mux.Handle("POST /v1/auth/links/{token}/reject",
		httpx.Chain(http.HandlerFunc(h.HandleReject),
			httpx.RateLimitByIP(r.limits.Strict),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.limits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(r.limits.Lenient),
		),
	)

	// GET /jwks.json - public endpoint with high limit
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(r.limits.Public),
		),
	)

	if r.MetricsHandler != nil {
		r.Mux.Handle("GET /metrics", r.MetricsHandler)
	}
}
