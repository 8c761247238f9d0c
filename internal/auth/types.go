package auth

import (
	"time"

	"github.com/loykin/curator/internal/policy"
)

// AuthMethod represents the type of authentication
type AuthMethod string

const (
	AuthMethodBasic AuthMethod = "basic" // username/password
	AuthMethodJWT   AuthMethod = "jwt"   // bearer token
)

// AuthResult represents the result of authentication
type AuthResult struct {
	Success   bool              `json:"success"`
	Principal *policy.Principal `json:"-"`
	Token     *Token            `json:"token,omitempty"`
}

// Token represents a JWT token
type Token struct {
	Type      string    `json:"type"`  // "Bearer"
	Value     string    `json:"value"` // JWT token string
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Method   AuthMethod `json:"method,omitempty"`
	Username string     `json:"username,omitempty"`
	Password string     `json:"password,omitempty"`
	Token    string     `json:"token,omitempty"`
}

// SeedUser is a user declared in configuration. Either Password or
// PasswordHash (bcrypt) must be set.
type SeedUser struct {
	Username     string   `mapstructure:"username" toml:"username" json:"username"`
	Password     string   `mapstructure:"password" toml:"password" json:"-"`
	PasswordHash string   `mapstructure:"password_hash" toml:"password_hash" json:"-"`
	Roles        []string `mapstructure:"roles" toml:"roles" json:"roles"`
}
