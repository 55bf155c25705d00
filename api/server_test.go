package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"library-api/auth"
	"library-api/library"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	srv   *Server
	lm    *library.LibraryManager
	clock *testClock
}

// newTestEnv builds a server on a fresh sqlite file with a controllable clock.
func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	db, err := library.NewDatabase(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	lm := library.NewLibraryManager(db, auth.NewHasher(bcrypt.MinCost))
	t.Cleanup(func() { lm.Close() })

	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	tokens, err := auth.NewTokens("api-test-secret", auth.WithClock(clock.Now))
	require.NoError(t, err)

	return &testEnv{
		srv:   NewServer(lm, tokens, auth.NewGate(tokens, lm), nil, opts...),
		lm:    lm,
		clock: clock,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) signupAndLogin(t *testing.T, email, password string) string {
	t.Helper()
	creds := map[string]string{"email": email, "password": password}
	rec := e.do(t, http.MethodPost, "/signup", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var m messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m.Message
}

func TestSignupAndLogin(t *testing.T) {
	e := newTestEnv(t)
	creds := map[string]string{"email": "a@x.io", "password": "pw"}

	rec := e.do(t, http.MethodPost, "/signup", "", creds)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "User created successfully!", message(t, rec))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = e.do(t, http.MethodPost, "/signup", "", creds)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already in use.", message(t, rec))

	members, err := e.lm.ListMembers(testContext(t))
	require.NoError(t, err)
	assert.Len(t, members, 1)

	rec = e.do(t, http.MethodPost, "/login", "", map[string]string{"email": "a@x.io", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", message(t, rec))

	rec = e.do(t, http.MethodPost, "/login", "", map[string]string{"email": "b@x.io", "password": "pw"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found.", message(t, rec))

	rec = e.do(t, http.MethodPost, "/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Login successful", resp.Message)
	assert.NotEmpty(t, resp.Token)
}

func TestAccountValidation(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		path string
		body any
		want string
	}{
		{"signup missing password", "/signup", map[string]string{"email": "a@x.io"}, "Email and password are required."},
		{"signup empty email", "/signup", map[string]string{"email": "", "password": "pw"}, "Email and password are required."},
		{"signup bad json", "/signup", "{", "Invalid request"},
		{"signup long password", "/signup", map[string]string{"email": "a@x.io", "password": strings.Repeat("p", 80)}, "Password is too long."},
		{"login missing email", "/login", map[string]string{"password": "pw"}, "Email and password are required."},
		{"login bad json", "/login", "not json", "Invalid request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, tt.path, "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, message(t, rec))
		})
	}

	members, err := e.lm.ListMembers(testContext(t))
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestBooksLifecycle(t *testing.T) {
	e := newTestEnv(t)
	token := e.signupAndLogin(t, "a@x.io", "pw")

	rec := e.do(t, http.MethodPost, "/books", token, map[string]any{"title": "Dune", "author": "Herbert"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Book added successfully!", message(t, rec))

	rec = e.do(t, http.MethodGet, "/books", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"title":"Dune","author":"Herbert","published_year":null}]`, rec.Body.String())

	rec = e.do(t, http.MethodPut, "/books/1", token, map[string]any{"title": "Dune", "author": "Frank Herbert", "published_year": 1965})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Book updated successfully!", message(t, rec))

	rec = e.do(t, http.MethodGet, "/books", token, nil)
	assert.JSONEq(t, `[{"title":"Dune","author":"Frank Herbert","published_year":1965}]`, rec.Body.String())

	rec = e.do(t, http.MethodDelete, "/books/1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Book deleted successfully!", message(t, rec))

	rec = e.do(t, http.MethodDelete, "/books/1", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Book not found", message(t, rec))

	rec = e.do(t, http.MethodPut, "/books/1", token, map[string]any{"title": "X", "author": "Y"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/books", token, nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestBookValidation(t *testing.T) {
	e := newTestEnv(t)
	token := e.signupAndLogin(t, "a@x.io", "pw")

	rec := e.do(t, http.MethodPost, "/books", token, map[string]any{"title": "Dune"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Title and author are required.", message(t, rec))

	rec = e.do(t, http.MethodPost, "/books", token, `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request", message(t, rec))

	rec = e.do(t, http.MethodDelete, "/books/99999999999999999999", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	books, err := e.lm.ListBooks(testContext(t))
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestProtectedRoutesRejectRequests(t *testing.T) {
	e := newTestEnv(t)
	token := e.signupAndLogin(t, "a@x.io", "pw")

	req := httptest.NewRequest(http.MethodGet, "/books", nil)
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Token is missing!", message(t, rec))

	req = httptest.NewRequest(http.MethodGet, "/members", nil)
	req.Header.Set("Authorization", token)
	rec = httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Token format is invalid!", message(t, rec))

	rec = e.do(t, http.MethodGet, "/books", token+"x", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Invalid token!", message(t, rec))

	// A token replayed after its hour is up is refused.
	e.clock.Advance(61 * time.Minute)
	rec = e.do(t, http.MethodGet, "/books", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Token has expired!", message(t, rec))
}

func TestDeletedMemberTokenRejected(t *testing.T) {
	e := newTestEnv(t)
	token := e.signupAndLogin(t, "a@x.io", "pw")

	rec := e.do(t, http.MethodDelete, "/members/1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Member deleted successfully!", message(t, rec))

	rec = e.do(t, http.MethodGet, "/books", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found!", message(t, rec))
}

func TestMembersLifecycle(t *testing.T) {
	e := newTestEnv(t, WithDefaultMemberPassword("changeme"))
	token := e.signupAndLogin(t, "a@x.io", "pw")

	rec := e.do(t, http.MethodPost, "/members", token, map[string]string{"email": "b@x.io"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Member added successfully!", message(t, rec))

	// The placeholder password is usable until the member changes it.
	rec = e.do(t, http.MethodPost, "/login", "", map[string]string{"email": "b@x.io", "password": "changeme"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/members", token, map[string]string{"email": "c@x.io", "password": "own"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodPost, "/members", token, map[string]string{"email": "c@x.io"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "A member with this email already exists.", message(t, rec))

	rec = e.do(t, http.MethodPost, "/members", token, map[string]string{"password": "pw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email is required.", message(t, rec))

	rec = e.do(t, http.MethodGet, "/members", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"email":"a@x.io"},{"email":"b@x.io"},{"email":"c@x.io"}]`, rec.Body.String())

	rec = e.do(t, http.MethodPut, "/members/2", token, map[string]string{"email": "b2@x.io", "password": "fresh"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Member updated successfully!", message(t, rec))

	rec = e.do(t, http.MethodPost, "/login", "", map[string]string{"email": "b2@x.io", "password": "fresh"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodDelete, "/members/3", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodDelete, "/members/3", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Member not found", message(t, rec))

	rec = e.do(t, http.MethodGet, "/members", token, nil)
	assert.JSONEq(t, `[{"email":"a@x.io"},{"email":"b2@x.io"}]`, rec.Body.String())
}

func TestMemberUpdateRules(t *testing.T) {
	e := newTestEnv(t)
	token := e.signupAndLogin(t, "a@x.io", "pw")
	e.signupAndLogin(t, "b@x.io", "pw")

	rec := e.do(t, http.MethodPut, "/members/2", token, map[string]string{"email": "new@x.io"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email and password are required.", message(t, rec))

	rec = e.do(t, http.MethodPut, "/members/2", token, map[string]string{"email": "a@x.io", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "A member with this email already exists.", message(t, rec))

	rec = e.do(t, http.MethodPut, "/members/42", token, map[string]string{"email": "z@x.io", "password": "pw"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Member not found", message(t, rec))

	m, err := e.lm.GetMember(testContext(t), 2)
	require.NoError(t, err)
	assert.Equal(t, "b@x.io", m.Email)
}

func TestRoutingFallbacks(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", message(t, rec))

	rec = e.do(t, http.MethodGet, "/signup", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", message(t, rec))
}

func TestHealthAndMetrics(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	e.do(t, http.MethodGet, "/books", "", nil)

	rec = e.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "library_api_http_requests_total")
	assert.Contains(t, body, `route="/books"`)
	assert.Contains(t, body, `status="403"`)
}
