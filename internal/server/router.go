package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/curator/internal/apperr"
	"github.com/loykin/curator/internal/auth"
	"github.com/loykin/curator/internal/policy"
	"github.com/loykin/curator/internal/service"
)

// Router provides embeddable HTTP handlers for every configured kind.
// Endpoints, per kind:
//
//	GET    {basePath}/{route}
//	GET    {basePath}/{route}/:id
//	POST   {basePath}/{route}
//	PUT    {basePath}/{route}/:id
//	DELETE {basePath}/{route}/:id
//
// plus POST {basePath}/auth/login, GET /healthz and, when set, the metrics
// endpoint. basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	basePath    string
	services    []*service.Service
	policy      *policy.Policy
	middleware  *auth.Middleware
	authService *auth.AuthService
	pinger      Pinger
	metricsPath string
	metrics     http.Handler
	logger      *slog.Logger
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Option func(*Router)

// WithPolicy sets the access policy. The default is policy.Default().
func WithPolicy(p *policy.Policy) Option {
	return func(r *Router) {
		if p != nil {
			r.policy = p
		}
	}
}

// WithAuth resolves callers through mw and serves /auth/login from svc.
// svc may be nil when authentication is disabled.
func WithAuth(mw *auth.Middleware, svc *auth.AuthService) Option {
	return func(r *Router) {
		r.middleware = mw
		r.authService = svc
	}
}

// WithHealth serves GET /healthz from p.
func WithHealth(p Pinger) Option {
	return func(r *Router) { r.pinger = p }
}

// WithMetrics mounts h at path.
func WithMetrics(path string, h http.Handler) Option {
	return func(r *Router) {
		r.metricsPath = path
		r.metrics = h
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRouter constructs a Router for services. Without WithAuth every
// request runs as an anonymous caller holding both roles.
func NewRouter(basePath string, services []*service.Service, opts ...Option) *Router {
	r := &Router{
		basePath: sanitizeBase(basePath),
		services: services,
		policy:   policy.Default(),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	if r.middleware == nil {
		r.middleware = auth.NewMiddleware(nil, false, []string{policy.RoleUser, policy.RoleAdmin}, r.logger)
	}
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery(), requestLogger(r.logger))
	g.NoRoute(func(c *gin.Context) {
		writeError(c, apperr.NotFound("No route for "+c.Request.Method+" "+c.Request.URL.Path))
	})

	g.GET("/healthz", r.handleHealth)
	if r.metrics != nil && r.metricsPath != "" {
		g.GET(r.metricsPath, gin.WrapH(r.metrics))
	}

	base := g.Group(r.basePath)
	if r.authService != nil {
		NewAuthAPI(r.authService).RegisterAuthEndpoints(base)
	}
	for _, svc := range r.services {
		api := &resourceAPI{svc: svc}
		group := base.Group("/"+svc.Kind().Route, r.middleware.GinAuth())
		group.GET("", auth.GinRequire(r.policy, policy.Get), api.list)
		group.GET("/:id", auth.GinRequire(r.policy, policy.Get), api.get)
		group.POST("", auth.GinRequire(r.policy, policy.Post), api.create)
		group.PUT("/:id", auth.GinRequire(r.policy, policy.Put), api.update)
		group.DELETE("/:id", auth.GinRequire(r.policy, policy.Delete), api.delete)
	}
	return g
}

type healthResp struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (r *Router) handleHealth(c *gin.Context) {
	if r.pinger == nil {
		writeJSON(c, http.StatusOK, healthResp{Status: "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := r.pinger.Ping(ctx); err != nil {
		r.logger.Warn("health check failed", "error", err)
		writeJSON(c, http.StatusServiceUnavailable, healthResp{Status: "unavailable", Error: "store unreachable"})
		return
	}
	writeJSON(c, http.StatusOK, healthResp{Status: "ok"})
}

// requestLogger writes one line per request.
func requestLogger(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case c.Request.URL.Path == "/healthz":
			level = slog.LevelDebug
		}
		l.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}
