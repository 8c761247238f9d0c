package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/loykin/curator/internal/policy"
)

const issuer = "curator"

// AuthService authenticates callers against a user store and issues
// HS256 tokens.
type AuthService struct {
	store      UserStore
	jwtSecret  []byte
	tokenTTL   time.Duration
	bcryptCost int
}

// AuthConfig represents configuration for the auth service
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret" toml:"jwt_secret" json:"-"`
	TokenTTL   time.Duration `mapstructure:"token_ttl" toml:"token_ttl" json:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost" toml:"bcrypt_cost" json:"bcrypt_cost"`
}

// Claims represents JWT claims
type Claims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// NewAuthService creates the service. An empty secret is replaced by a
// random one, so tokens do not survive a restart.
func NewAuthService(users UserStore, config AuthConfig) (*AuthService, error) {
	if users == nil {
		return nil, errors.New("auth: user store required")
	}
	jwtSecret := []byte(config.JWTSecret)
	if len(jwtSecret) == 0 {
		jwtSecret = make([]byte, 32)
		if _, err := rand.Read(jwtSecret); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
	}

	tokenTTL := config.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	bcryptCost := config.BcryptCost
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
	}

	return &AuthService{
		store:      users,
		jwtSecret:  jwtSecret,
		tokenTTL:   tokenTTL,
		bcryptCost: bcryptCost,
	}, nil
}

// Authenticate performs authentication based on the login request. Any
// credential problem is reported as ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	switch req.Method {
	case AuthMethodBasic, "":
		return s.authenticateBasic(ctx, req.Username, req.Password)
	case AuthMethodJWT:
		return s.authenticateJWT(ctx, req.Token)
	default:
		return &AuthResult{Success: false}, fmt.Errorf("unsupported auth method: %s", req.Method)
	}
}

// Login checks a password and issues a token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	res, err := s.authenticateBasic(ctx, username, password)
	if err != nil {
		return res, err
	}
	tok, err := s.IssueToken(res.Principal)
	if err != nil {
		return &AuthResult{Success: false}, err
	}
	res.Token = tok
	return res, nil
}

func (s *AuthService) authenticateBasic(ctx context.Context, username, password string) (*AuthResult, error) {
	if username == "" || password == "" {
		return &AuthResult{Success: false}, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return &AuthResult{Success: false}, ErrInvalidCredentials
		}
		return &AuthResult{Success: false}, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.Active {
		return &AuthResult{Success: false}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return &AuthResult{Success: false}, ErrInvalidCredentials
	}

	return &AuthResult{
		Success: true,
		Principal: &policy.Principal{
			UserID:   user.ID,
			Username: user.Username,
			Roles:    append([]string(nil), user.Roles...),
		},
	}, nil
}

// authenticateJWT verifies the token, then re-reads the user so deleted or
// deactivated accounts lose access before the token expires. Roles come
// from the store, not the claims.
func (s *AuthService) authenticateJWT(ctx context.Context, tokenString string) (*AuthResult, error) {
	if tokenString == "" {
		return &AuthResult{Success: false}, ErrInvalidCredentials
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid || claims.Username == "" {
		return &AuthResult{Success: false}, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByUsername(ctx, claims.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return &AuthResult{Success: false}, ErrInvalidCredentials
		}
		return &AuthResult{Success: false}, fmt.Errorf("failed to get user: %w", err)
	}
	// A user re-created under the same name gets a new ID.
	if !user.Active || user.ID != claims.UserID {
		return &AuthResult{Success: false}, ErrInvalidCredentials
	}

	return &AuthResult{
		Success: true,
		Principal: &policy.Principal{
			UserID:   user.ID,
			Username: user.Username,
			Roles:    append([]string(nil), user.Roles...),
		},
	}, nil
}

// IssueToken signs a token for p that expires after the configured TTL.
func (s *AuthService) IssueToken(p *policy.Principal) (*Token, error) {
	if p.Anonymous() {
		return nil, errors.New("cannot issue a token for an anonymous principal")
	}
	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)

	claims := &Claims{
		UserID:   p.UserID,
		Username: p.Username,
		Roles:    p.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   p.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Token{
		Type:      "Bearer",
		Value:     tokenString,
		ExpiresAt: expiresAt,
	}, nil
}

// CreateUser creates a new user with hashed password
func (s *AuthService) CreateUser(ctx context.Context, username, password string, roles []string) (*User, error) {
	if password == "" {
		return nil, fmt.Errorf("username and password are required")
	}
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return s.createWithHash(ctx, username, string(passwordHash), roles)
}

func (s *AuthService) createWithHash(ctx context.Context, username, hash string, roles []string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || hash == "" {
		return nil, fmt.Errorf("username and password are required")
	}
	norm := make([]string, 0, len(roles))
	for _, r := range roles {
		if n := policy.NormalizeRole(r); n != "" {
			norm = append(norm, n)
		}
	}
	now := time.Now().UTC()
	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Roles:        norm,
		CreatedAt:    now,
		UpdatedAt:    now,
		Active:       true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Don't return password hash
	user.PasswordHash = ""
	return user, nil
}

// SeedUsers creates configured users that do not exist yet. Existing
// users are left untouched. It returns the number created.
func (s *AuthService) SeedUsers(ctx context.Context, seeds []SeedUser) (int, error) {
	created := 0
	for _, u := range seeds {
		var err error
		switch {
		case u.PasswordHash != "":
			if _, cerr := bcrypt.Cost([]byte(u.PasswordHash)); cerr != nil {
				return created, fmt.Errorf("user %q: password_hash is not a bcrypt hash", u.Username)
			}
			_, err = s.createWithHash(ctx, u.Username, u.PasswordHash, u.Roles)
		default:
			_, err = s.CreateUser(ctx, u.Username, u.Password, u.Roles)
		}
		if errors.Is(err, ErrUserAlreadyExists) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed user %q: %w", u.Username, err)
		}
		created++
	}
	return created, nil
}

// DeleteUser deletes a user by name.
func (s *AuthService) DeleteUser(ctx context.Context, username string) error {
	return s.store.DeleteUser(ctx, username)
}

func (s *AuthService) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.ListUsers(ctx)
}

// Close closes the auth service
func (s *AuthService) Close() error {
	return s.store.Close()
}
