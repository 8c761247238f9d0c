package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loykin/curator/internal/apperr"
	"github.com/loykin/curator/internal/auth"
)

// AuthAPI provides authentication-related HTTP endpoints
type AuthAPI struct {
	authService *auth.AuthService
}

// NewAuthAPI creates a new auth API handler
func NewAuthAPI(authService *auth.AuthService) *AuthAPI {
	return &AuthAPI{authService: authService}
}

// RegisterAuthEndpoints registers authentication endpoints to the router
func (api *AuthAPI) RegisterAuthEndpoints(r *gin.RouterGroup) {
	r.POST("/auth/login", api.login)
}

// login exchanges a username and password for a bearer token.
func (api *AuthAPI) login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.InvalidArgument("Invalid input: request body must be a JSON object"))
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(c, apperr.InvalidArgument("Invalid input: username and password are required"))
		return
	}

	result, err := api.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(c, apperr.DataAccess("A database error occurred during login.", err))
			return
		}
		writeError(c, apperr.Unauthenticated())
		return
	}
	if !result.Success {
		writeError(c, apperr.Unauthenticated())
		return
	}
	writeJSON(c, http.StatusOK, result)
}
