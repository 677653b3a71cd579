package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mesh-intelligence/vento/internal/account"
	"github.com/mesh-intelligence/vento/internal/auth"
	"github.com/mesh-intelligence/vento/internal/inventory"
	"github.com/mesh-intelligence/vento/internal/textfile"
	"github.com/mesh-intelligence/vento/pkg/types"
)

type mockPinger struct {
	PingFunc func(ctx context.Context) error
}

func (m *mockPinger) Name() string { return "mock" }

func (m *mockPinger) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

type fixture struct {
	r    *gin.Engine
	auth *auth.Manager
	b    types.Backend
}

func newFixture(t *testing.T, secret string, store Pinger) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	b, err := textfile.Open(types.Config{Backend: types.BackendTextFile, DataDir: t.TempDir()}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	if store == nil {
		store = b
	}

	accts := account.New(b.Users(), b.Products(), logger)
	am, err := auth.NewManager(auth.Options{Secret: secret})
	require.NoError(t, err)
	am = am.WithLookup(accts)

	r := gin.New()
	r.Use(am.Session())
	NewHandler(inventory.New(b.Products(), logger), accts, am, store, logger).Register(r)
	return fixture{r: r, auth: am, b: b}
}

func (f fixture) addUser(t *testing.T, username string, isAdmin bool) types.User {
	t.Helper()
	u := types.NewUser(username, "secret", isAdmin)
	require.NoError(t, f.b.Users().Add(context.Background(), u))
	return u
}

func (f fixture) do(t *testing.T, method, path string, body any, as *types.User) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		token, err := f.auth.Issue(as.Session())
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)

	var out map[string]any
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestAuthEndpoints(t *testing.T) {
	f := newFixture(t, "test-secret", nil)

	w, body := f.do(t, http.MethodGet, "/api/auth/session", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, body["user"])

	tests := []struct {
		name     string
		path     string
		body     map[string]string
		wantCode int
	}{
		{name: "signup", path: "/api/auth/signup", body: map[string]string{"username": "alice", "password": "pass1", "confirmPassword": "pass1"}, wantCode: http.StatusOK},
		{name: "signup taken", path: "/api/auth/signup", body: map[string]string{"username": "ALICE", "password": "pass1", "confirmPassword": "pass1"}, wantCode: http.StatusConflict},
		{name: "signup mismatch", path: "/api/auth/signup", body: map[string]string{"username": "bob", "password": "pass1", "confirmPassword": "pass2"}, wantCode: http.StatusBadRequest},
		{name: "signup short", path: "/api/auth/signup", body: map[string]string{"username": "bo", "password": "pass1", "confirmPassword": "pass1"}, wantCode: http.StatusBadRequest},
		{name: "login", path: "/api/auth/login", body: map[string]string{"username": "Alice", "password": "pass1"}, wantCode: http.StatusOK},
		{name: "login wrong", path: "/api/auth/login", body: map[string]string{"username": "alice", "password": "nope"}, wantCode: http.StatusUnauthorized},
		{name: "login missing", path: "/api/auth/login", body: map[string]string{"username": "alice"}, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := f.do(t, http.MethodPost, tt.path, tt.body, nil)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, true, body["success"])
				user := body["user"].(map[string]any)
				assert.Equal(t, "alice", user["username"])
				assert.Contains(t, w.Header().Get("Set-Cookie"), auth.CookieName+"=")
			} else {
				assert.Equal(t, false, body["success"])
				assert.NotEmpty(t, body["error"])
			}
		})
	}

	alice, err := f.b.Users().Get(context.Background(), "alice")
	require.NoError(t, err)
	w, body = f.do(t, http.MethodGet, "/api/auth/session", nil, &alice)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", body["user"].(map[string]any)["username"])

	w, _ = f.do(t, http.MethodPost, "/api/auth/logout", nil, &alice)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestProductEndpoints(t *testing.T) {
	f := newFixture(t, "test-secret", nil)
	alice := f.addUser(t, "alice", false)
	bob := f.addUser(t, "bob", false)

	w, _ := f.do(t, http.MethodGet, "/api/products", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := f.do(t, http.MethodGet, "/api/products", nil, &alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, body["products"])

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
	}{
		{name: "create", method: http.MethodPost, path: "/api/products", body: map[string]any{"id": 1, "productName": "Bolt", "price": 0.5, "quantity": 10}, wantCode: http.StatusOK},
		{name: "create id zero", method: http.MethodPost, path: "/api/products", body: map[string]any{"id": 0, "productName": "Nut", "price": 0.1, "quantity": 0}, wantCode: http.StatusOK},
		{name: "create duplicate", method: http.MethodPost, path: "/api/products", body: map[string]any{"id": 1, "productName": "Other", "price": 1, "quantity": 1}, wantCode: http.StatusConflict},
		{name: "create missing id", method: http.MethodPost, path: "/api/products", body: map[string]any{"productName": "Other", "price": 1, "quantity": 1}, wantCode: http.StatusBadRequest},
		{name: "create negative price", method: http.MethodPost, path: "/api/products", body: map[string]any{"id": 5, "productName": "Other", "price": -1, "quantity": 1}, wantCode: http.StatusBadRequest},
		{name: "create bad body", method: http.MethodPost, path: "/api/products", body: "nope", wantCode: http.StatusBadRequest},
		{name: "get", method: http.MethodGet, path: "/api/products/1", wantCode: http.StatusOK},
		{name: "get bad id", method: http.MethodGet, path: "/api/products/abc", wantCode: http.StatusBadRequest},
		{name: "get missing", method: http.MethodGet, path: "/api/products/9", wantCode: http.StatusNotFound},
		{name: "update", method: http.MethodPut, path: "/api/products/1", body: map[string]any{"productName": "Hex bolt", "price": 0.75, "quantity": 10}, wantCode: http.StatusOK},
		{name: "update missing", method: http.MethodPut, path: "/api/products/9", body: map[string]any{"productName": "X", "price": 1, "quantity": 1}, wantCode: http.StatusNotFound},
		{name: "subtract", method: http.MethodPost, path: "/api/products/1/quantity", body: map[string]any{"action": "subtract", "quantity": 4}, wantCode: http.StatusOK},
		{name: "subtract too many", method: http.MethodPost, path: "/api/products/1/quantity", body: map[string]any{"action": "subtract", "quantity": 7}, wantCode: http.StatusBadRequest},
		{name: "bad action", method: http.MethodPost, path: "/api/products/1/quantity", body: map[string]any{"action": "double", "quantity": 1}, wantCode: http.StatusBadRequest},
		{name: "zero amount", method: http.MethodPost, path: "/api/products/1/quantity", body: map[string]any{"action": "add", "quantity": 0}, wantCode: http.StatusBadRequest},
		{name: "adjust missing", method: http.MethodPost, path: "/api/products/9/quantity", body: map[string]any{"action": "add", "quantity": 1}, wantCode: http.StatusNotFound},
		{name: "delete", method: http.MethodDelete, path: "/api/products/0", wantCode: http.StatusOK},
		{name: "delete again", method: http.MethodDelete, path: "/api/products/0", wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := f.do(t, tt.method, tt.path, tt.body, &alice)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}

	p, err := f.b.Products().Get(context.Background(), "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, types.Product{ID: 1, Name: "Hex bolt", Price: 0.75, Quantity: 6}, p)

	w, body = f.do(t, http.MethodGet, "/api/products", nil, &bob)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["products"])
}

func TestAdminEndpoints(t *testing.T) {
	f := newFixture(t, "test-secret", nil)
	root := f.addUser(t, "root", true)
	alice := f.addUser(t, "alice", false)
	f.addUser(t, "bob", false)
	ctx := context.Background()
	require.NoError(t, f.b.Products().Add(ctx, "alice", types.Product{ID: 1, Name: "Bolt", Price: 1, Quantity: 2}))
	require.NoError(t, f.b.Products().Add(ctx, "bob", types.Product{ID: 1, Name: "Nut", Price: 1, Quantity: 3}))

	w, _ := f.do(t, http.MethodGet, "/api/admin/users", nil, &alice)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body := f.do(t, http.MethodGet, "/api/admin/users", nil, &root)
	require.Equal(t, http.StatusOK, w.Code)
	users := body["users"].([]any)
	require.Len(t, users, 3)
	second := users[1].(map[string]any)
	assert.Equal(t, "alice", second["username"])
	assert.Equal(t, float64(1), second["productCount"])
	assert.NotContains(t, second, "password")

	w, body = f.do(t, http.MethodGet, "/api/admin/products", nil, &root)
	require.Equal(t, http.StatusOK, w.Code)
	products := body["products"].([]any)
	require.Len(t, products, 2)
	assert.Equal(t, "alice", products[0].(map[string]any)["username"])
	assert.Equal(t, "Nut", products[1].(map[string]any)["productName"])

	w, _ = f.do(t, http.MethodPut, "/api/admin/users/alice", map[string]any{"username": "bob"}, &root)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, body = f.do(t, http.MethodPut, "/api/admin/users/alice", map[string]any{"username": "alicia", "isAdmin": true}, &root)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["user"].(map[string]any)["isAdmin"])
	_, err := f.b.Products().Get(ctx, "alicia", 1)
	assert.NoError(t, err)

	w, body = f.do(t, http.MethodPut, "/api/admin/users/alicia", map[string]any{"username": "alicia"}, &root)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["user"].(map[string]any)["isAdmin"])
	stored, err := f.b.Users().Get(ctx, "alicia")
	require.NoError(t, err)
	assert.True(t, stored.IsAdmin)

	w, body = f.do(t, http.MethodPut, "/api/admin/users/alicia", map[string]any{"isAdmin": false}, &root)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["user"].(map[string]any)["isAdmin"])

	w, _ = f.do(t, http.MethodDelete, "/api/admin/users", map[string]string{"username": "root"}, &root)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = f.do(t, http.MethodDelete, "/api/admin/users", map[string]string{}, &root)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = f.do(t, http.MethodDelete, "/api/admin/users", map[string]string{"username": "ghost"}, &root)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = f.do(t, http.MethodDelete, "/api/admin/users", map[string]string{"username": "bob"}, &root)
	assert.Equal(t, http.StatusOK, w.Code)
	n, err := f.b.Products().Count(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDiagnostics(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		pingErr    error
		wantCode   int
		wantIssues int
	}{
		{name: "healthy", secret: "prod-secret", wantCode: http.StatusOK},
		{name: "default secret", secret: auth.DefaultSecret, wantCode: http.StatusInternalServerError, wantIssues: 1},
		{name: "backend down", secret: "prod-secret", pingErr: errors.New("connection refused"), wantCode: http.StatusInternalServerError, wantIssues: 1},
		{name: "both", secret: auth.DefaultSecret, pingErr: errors.New("connection refused"), wantCode: http.StatusInternalServerError, wantIssues: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockPinger{PingFunc: func(context.Context) error { return tt.pingErr }}
			f := newFixture(t, tt.secret, store)
			w, body := f.do(t, http.MethodGet, "/api/diagnostics", nil, nil)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantIssues == 0 {
				assert.Nil(t, body["issues"])
			} else {
				assert.Len(t, body["issues"], tt.wantIssues)
			}
		})
	}
}

func TestSPAServed(t *testing.T) {
	f := newFixture(t, "test-secret", nil)
	for _, path := range []string{"/app/", "/app/app.js"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		f.r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
