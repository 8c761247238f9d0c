package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/loykin/curator/internal/apperr"
	"github.com/loykin/curator/internal/history"
	"github.com/loykin/curator/internal/metrics"
	"github.com/loykin/curator/internal/policy"
)

// PrincipalKey is the gin context key holding the *policy.Principal.
const PrincipalKey = "curator.principal"

// Middleware resolves the caller of each request and enforces the policy.
type Middleware struct {
	authService    *AuthService
	enabled        bool
	anonymousRoles []string
	logger         *slog.Logger
}

// NewMiddleware builds the middleware. When enabled is false every request
// runs as an "anonymous" principal holding anonymousRoles, and the policy
// still applies to it.
func NewMiddleware(svc *AuthService, enabled bool, anonymousRoles []string, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		authService:    svc,
		enabled:        enabled && svc != nil,
		anonymousRoles: append([]string(nil), anonymousRoles...),
		logger:         logger,
	}
}

// GinAuth attaches a principal to the request. Requests without
// credentials continue with no principal; the policy rejects them later.
// Bad credentials stop the request with 401.
func (m *Middleware) GinAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled {
			setPrincipal(c, &policy.Principal{Username: "anonymous", Roles: m.anonymousRoles})
			c.Next()
			return
		}

		req, ok := credentials(c.Request)
		if !ok {
			c.Next()
			return
		}
		res, err := m.authService.Authenticate(c.Request.Context(), req)
		if err != nil || !res.Success {
			if err != nil && !errors.Is(err, ErrInvalidCredentials) {
				m.logger.Error("authentication failed", "method", req.Method, "error", err)
			}
			abort(c, apperr.Unauthenticated())
			return
		}
		setPrincipal(c, res.Principal)
		c.Next()
	}
}

// GinRequire enforces p for verb on every request it sees.
func GinRequire(p *policy.Policy, verb policy.Verb) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := p.Authorize(verb, PrincipalFrom(c))
		metrics.RecordAccess(string(verb), err == nil)
		if err != nil {
			abort(c, err)
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the principal set by GinAuth, or nil.
func PrincipalFrom(c *gin.Context) *policy.Principal {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*policy.Principal)
	return p
}

func setPrincipal(c *gin.Context, p *policy.Principal) {
	c.Set(PrincipalKey, p)
	c.Request = c.Request.WithContext(history.WithActor(c.Request.Context(), p.Username))
}

func abort(c *gin.Context, err error) {
	status, body := apperr.Translate(err)
	c.AbortWithStatusJSON(status, body)
}

// credentials extracts a bearer token or basic credentials.
func credentials(r *http.Request) (LoginRequest, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return LoginRequest{Method: AuthMethodJWT, Token: strings.TrimSpace(parts[1])}, true
		}
	}
	if username, password, ok := r.BasicAuth(); ok {
		return LoginRequest{Method: AuthMethodBasic, Username: username, Password: password}, true
	}
	return LoginRequest{}, false
}
