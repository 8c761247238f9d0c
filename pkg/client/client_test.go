package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/loykin/curator/internal/auth"
	"github.com/loykin/curator/internal/policy"
	"github.com/loykin/curator/internal/resource"
	"github.com/loykin/curator/internal/server"
	"github.com/loykin/curator/internal/service"
	"github.com/loykin/curator/internal/store/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := memory.New()
	svcs := []*service.Service{service.New(resource.Book(), st), service.New(resource.Employee(), st)}

	authSvc, err := auth.NewAuthService(memory.New(), auth.AuthConfig{JWTSecret: "client-secret", BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	ctx := context.Background()
	_, err = authSvc.CreateUser(ctx, "user", "user-pw", []string{policy.RoleUser})
	require.NoError(t, err)
	_, err = authSvc.CreateUser(ctx, "admin", "admin-pw", []string{policy.RoleAdmin})
	require.NoError(t, err)

	r := server.NewRouter("/api", svcs,
		server.WithAuth(auth.NewMiddleware(authSvc, true, nil, nil), authSvc),
		server.WithHealth(st))
	ts := httptest.NewServer(r.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestClientCRUD(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	c := New(Config{BaseURL: ts.URL + "/api/", Username: "user", Password: "user-pw", Timeout: 5 * time.Second})

	assert.True(t, c.IsReachable(ctx))

	list, err := c.List(ctx, "books")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)

	created, err := c.Create(ctx, "books", map[string]any{"title": "Algorithms", "author": "Cormen", "price": 89.5, "year": 2009})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID())
	assert.Equal(t, "Algorithms", created["title"])

	got, err := c.Get(ctx, "books", created.ID())
	require.NoError(t, err)
	assert.Equal(t, created, got)

	updated, err := c.Update(ctx, "books", 1, map[string]any{"title": "Algorithms", "author": "Cormen et al.", "price": 95, "year": 2009})
	require.NoError(t, err)
	assert.Equal(t, "Cormen et al.", updated["author"])

	_, err = c.Delete(ctx, "books", 1)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "forbidden", apiErr.Code)

	admin := New(Config{BaseURL: ts.URL + "/api"})
	tok, err := admin.Login(ctx, "admin", "admin-pw")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.Type)
	assert.NotEmpty(t, tok.Value)

	del, err := admin.Delete(ctx, "books", 1)
	require.NoError(t, err)
	assert.Equal(t, "Book with ID 1 deleted successfully", del.Message)
	assert.Equal(t, http.StatusOK, del.StatusCode)

	_, err = admin.Get(ctx, "books", 1)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Book with ID 1 not found", apiErr.Message)
}

func TestClientErrors(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	anon := New(Config{BaseURL: ts.URL + "/api"})
	_, err := anon.List(ctx, "books")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	_, err = anon.Login(ctx, "user", "bad")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "unauthenticated", apiErr.Code)

	c := New(Config{BaseURL: ts.URL + "/api", Username: "user", Password: "user-pw"})
	_, err = c.Create(ctx, "employees", map[string]any{"name": "A", "department": "R&D"})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "validation_failed", apiErr.Code)
	assert.Equal(t, []string{"Name must have at least 2 characters"}, apiErr.Messages)
	assert.Contains(t, apiErr.Error(), "Name must have at least 2 characters")

	_, err = c.Update(ctx, "employees", 9, map[string]any{"name": "Ada", "department": "R&D"})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestClientUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := New(Config{BaseURL: url + "/api", Timeout: time.Second})
	assert.False(t, c.IsReachable(context.Background()))
	_, err := c.List(context.Background(), "books")
	assert.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestNonJSONErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := New(Config{BaseURL: ts.URL}).Get(context.Background(), "books", 1)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "API error: HTTP 502", apiErr.Error())
}
