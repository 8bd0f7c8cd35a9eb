// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/breadsocial/bread/internal/auth"
	"github.com/breadsocial/bread/internal/docstore"
	"github.com/breadsocial/bread/internal/docstore/memory"
	"github.com/breadsocial/bread/internal/observability"
	"github.com/breadsocial/bread/internal/post"
)

type testServer struct {
	handler http.Handler
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, lifetime time.Duration) *testServer {
	t.Helper()
	ctx := context.Background()

	hasher, err := auth.NewArgon2idHasherWithParams(auth.Argon2idParams{
		Memory: 64, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 32,
	})
	require.NoError(t, err)

	store := memory.New()
	users, err := auth.NewUserDirectory(store, hasher)
	require.NoError(t, err)
	require.NoError(t, users.EnsureIndexes(ctx))

	tokens, err := auth.NewTokenService([]byte(strings.Repeat("k", auth.SigningKeyBytes)), lifetime)
	require.NoError(t, err)

	authSvc, err := auth.NewAuthService(users, hasher, tokens, nil)
	require.NoError(t, err)
	postSvc, err := post.NewService(post.NewStore(store), authSvc, nil)
	require.NoError(t, err)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	handler, err := NewRouter(Deps{Auth: authSvc, Posts: postSvc, Metrics: metrics, CookieSecure: true})
	require.NoError(t, err)

	return &testServer{handler: handler, metrics: metrics}
}

func (s *testServer) do(method, target string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, name, password string) string {
	t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/register", url.Values{"username": {name}, "password": {password}}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp IDResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.ID
}

func (s *testServer) login(t *testing.T, name, password string) *http.Cookie {
	t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/login", url.Values{"username": {name}, "password": {password}}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookieFrom(t, rec)
}

func sessionCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			return c
		}
	}
	t.Fatalf("response has no %s cookie", auth.SessionCookie)
	return nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRouter_Register(t *testing.T) {
	srv := newTestServer(t, time.Hour)

	id := srv.register(t, "alice", "secret1")
	assert.NotEmpty(t, id)

	dup := srv.do(http.MethodPost, "/api/auth/register", url.Values{"username": {"alice"}, "password": {"other"}}, nil)
	assert.Equal(t, http.StatusBadRequest, dup.Code)
	assert.Equal(t, codeNameTaken, decodeError(t, dup).Code)

	empty := srv.do(http.MethodPost, "/api/auth/register", url.Values{"username": {""}, "password": {"x"}}, nil)
	assert.Equal(t, http.StatusBadRequest, empty.Code)
	assert.Equal(t, codeValidation, decodeError(t, empty).Code)
}

func TestRouter_LoginSetsCookie(t *testing.T) {
	srv := newTestServer(t, time.Hour)
	id := srv.register(t, "alice", "secret1")

	rec := srv.do(http.MethodPost, "/api/auth/login", url.Values{"username": {"alice"}, "password": {"secret1"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cookie := sessionCookieFrom(t, rec)
	assert.NotEmpty(t, cookie.Value)
	assert.Equal(t, "/api", cookie.Path)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)

	var user UserView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "alice", user.Name)
	assert.Equal(t, auth.DefaultPreferences(), user.Preferences)
	assert.NotContains(t, rec.Body.String(), "argon2id")
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRouter_LoginFailuresLookAlike(t *testing.T) {
	srv := newTestServer(t, time.Hour)
	srv.register(t, "alice", "secret1")

	wrong := srv.do(http.MethodPost, "/api/auth/login", url.Values{"username": {"alice"}, "password": {"nope"}}, nil)
	unknown := srv.do(http.MethodPost, "/api/auth/login", url.Values{"username": {"bob"}, "password": {"nope"}}, nil)

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.Empty(t, wrong.Result().Cookies())
}

func TestRouter_DefaultLifetimeTokensAreRejected(t *testing.T) {
	srv := newTestServer(t, 0)
	srv.register(t, "alice", "secret1")
	cookie := srv.login(t, "alice", "secret1")

	rec := srv.do(http.MethodPost, "/api/posts", url.Values{"content": {"hello"}}, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_GuardedRoutesRequireCookie(t *testing.T) {
	srv := newTestServer(t, time.Hour)

	tests := []struct {
		method, target string
	}{
		{http.MethodPost, "/api/auth/change-password"},
		{http.MethodDelete, "/api/users/me"},
		{http.MethodPost, "/api/posts"},
		{http.MethodDelete, "/api/posts/abc"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := srv.do(tt.method, tt.target, url.Values{}, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, ErrorBody{Code: codeUnauthorized, Message: unauthorizedMessage}, decodeError(t, rec))
		})
	}

	forged := srv.do(http.MethodPost, "/api/posts", url.Values{"content": {"x"}},
		&http.Cookie{Name: auth.SessionCookie, Value: "not-a-token"})
	assert.Equal(t, http.StatusUnauthorized, forged.Code)
}

func TestRouter_PostLifecycle(t *testing.T) {
	srv := newTestServer(t, time.Hour)
	srv.register(t, "alice", "secret1")
	srv.register(t, "bob", "secret2")
	alice := srv.login(t, "alice", "secret1")
	bob := srv.login(t, "bob", "secret2")

	none := srv.do(http.MethodGet, "/api/posts/random", nil, nil)
	assert.Equal(t, http.StatusNotFound, none.Code)

	empty := srv.do(http.MethodPost, "/api/posts", url.Values{}, alice)
	assert.Equal(t, http.StatusBadRequest, empty.Code)

	created := srv.do(http.MethodPost, "/api/posts", url.Values{"content": {"hello"}}, alice)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	var resp IDResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))

	random := srv.do(http.MethodGet, "/api/posts/random", nil, nil)
	require.Equal(t, http.StatusOK, random.Code)
	var view PostView
	require.NoError(t, json.Unmarshal(random.Body.Bytes(), &view))
	assert.Equal(t, resp.ID, view.ID)
	require.NotNil(t, view.Content)
	assert.Equal(t, "hello", *view.Content)
	assert.Nil(t, view.Image)

	forbidden := srv.do(http.MethodDelete, "/api/posts/"+resp.ID, nil, bob)
	assert.Equal(t, http.StatusUnauthorized, forbidden.Code)
	assert.Equal(t, ErrorBody{Code: codeUnauthorized, Message: unauthorizedMessage}, decodeError(t, forbidden))

	deleted := srv.do(http.MethodDelete, "/api/posts/"+resp.ID, nil, alice)
	assert.Equal(t, http.StatusNoContent, deleted.Code)

	again := srv.do(http.MethodDelete, "/api/posts/"+resp.ID, nil, alice)
	assert.Equal(t, http.StatusNotFound, again.Code)
}

func TestRouter_ChangePassword(t *testing.T) {
	srv := newTestServer(t, time.Hour)
	srv.register(t, "alice", "secret1")
	cookie := srv.login(t, "alice", "secret1")

	wrongOld := srv.do(http.MethodPost, "/api/auth/change-password",
		url.Values{"old_password": {"bad"}, "new_password": {"secret2"}}, cookie)
	assert.Equal(t, http.StatusUnauthorized, wrongOld.Code)

	rec := srv.do(http.MethodPost, "/api/auth/change-password",
		url.Values{"old_password": {"secret1"}, "new_password": {"secret2"}}, cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	old := srv.do(http.MethodPost, "/api/auth/login", url.Values{"username": {"alice"}, "password": {"secret1"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, old.Code)
	srv.login(t, "alice", "secret2")
}

func TestRouter_DeleteAccount(t *testing.T) {
	srv := newTestServer(t, time.Hour)
	srv.register(t, "alice", "secret1")
	cookie := srv.login(t, "alice", "secret1")

	rec := srv.do(http.MethodDelete, "/api/users/me", nil, cookie)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, -1, sessionCookieFrom(t, rec).MaxAge)

	login := srv.do(http.MethodPost, "/api/auth/login", url.Values{"username": {"alice"}, "password": {"secret1"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, login.Code)

	again := srv.do(http.MethodDelete, "/api/users/me", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, again.Code, "a deleted subject no longer resolves")
}

func TestRouter_Logout(t *testing.T) {
	srv := newTestServer(t, time.Hour)

	rec := srv.do(http.MethodPost, "/api/auth/logout", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	cookie := sessionCookieFrom(t, rec)
	assert.Equal(t, -1, cookie.MaxAge)
	assert.Empty(t, cookie.Value)
	assert.Equal(t, "/api", cookie.Path)
}

func TestRouter_RecordsRouteMetrics(t *testing.T) {
	srv := newTestServer(t, time.Hour)
	srv.register(t, "alice", "secret1")
	srv.do(http.MethodPost, "/api/auth/login", url.Values{"username": {"alice"}, "password": {"bad"}}, nil)
	srv.do(http.MethodDelete, "/api/posts/abc", nil, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.RequestsTotal.WithLabelValues("/api/auth/register", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.RequestsTotal.WithLabelValues("/api/auth/login", "401")))
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.RequestsTotal.WithLabelValues("/api/posts/{id}", "401")))
}

func TestRouter_RateLimitsCredentialRoutes(t *testing.T) {
	srv := newTestServer(t, time.Hour)
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.01, Burst: 1}, nil)
	t.Cleanup(rl.Stop)

	authSvc := &mockAuthService{}
	authSvc.On("Login", mock.Anything, "alice", "pw").Return(nil, auth.ErrInvalidCredentials).Once()

	handler, err := NewRouter(Deps{Auth: authSvc, Posts: &mockPostService{}, Limiter: rl})
	require.NoError(t, err)
	srv.handler = handler

	form := url.Values{"username": {"alice"}, "password": {"pw"}}
	assert.Equal(t, http.StatusUnauthorized, srv.do(http.MethodPost, "/api/auth/login", form, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, srv.do(http.MethodPost, "/api/auth/login", form, nil).Code)
	assert.Equal(t, http.StatusNoContent, srv.do(http.MethodPost, "/api/auth/logout", nil, nil).Code)
	authSvc.AssertExpectations(t)
}

func TestRouter_StoreFailuresAreOpaque(t *testing.T) {
	authSvc := &mockAuthService{}
	posts := &mockPostService{}
	cause := docstore.Failure("sample", post.Collection, errors.New("dial tcp 10.0.0.5:27017: connection refused"))
	posts.On("RandomPost", mock.Anything).Return(nil, cause)

	handler, err := NewRouter(Deps{Auth: authSvc, Posts: posts})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/random", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, codeInternal, decodeError(t, rec).Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	posts.AssertExpectations(t)
}

func TestNewRouter_RequiresServices(t *testing.T) {
	_, err := NewRouter(Deps{Posts: &mockPostService{}})
	assert.Error(t, err)
	_, err = NewRouter(Deps{Auth: &mockAuthService{}})
	assert.Error(t, err)
}

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) Register(ctx context.Context, name, password string) (docstore.ID, error) {
	args := m.Called(ctx, name, password)
	return args.Get(0).(docstore.ID), args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, name, password string) (*auth.Session, error) {
	args := m.Called(ctx, name, password)
	session, _ := args.Get(0).(*auth.Session)
	return session, args.Error(1)
}

func (m *mockAuthService) ChangePassword(ctx context.Context, identity auth.Claims, oldPassword, newPassword string) error {
	return m.Called(ctx, identity, oldPassword, newPassword).Error(0)
}

func (m *mockAuthService) DeleteAccount(ctx context.Context, identity auth.Claims) error {
	return m.Called(ctx, identity).Error(0)
}

func (m *mockAuthService) AuthenticateRequest(ctx context.Context, cookieValue string) (auth.Claims, error) {
	args := m.Called(ctx, cookieValue)
	return args.Get(0).(auth.Claims), args.Error(1)
}

type mockPostService struct {
	mock.Mock
}

func (m *mockPostService) Submit(ctx context.Context, identity auth.Claims, content, image string) (docstore.ID, error) {
	args := m.Called(ctx, identity, content, image)
	return args.Get(0).(docstore.ID), args.Error(1)
}

func (m *mockPostService) DeletePost(ctx context.Context, identity auth.Claims, postID docstore.ID) error {
	return m.Called(ctx, identity, postID).Error(0)
}

func (m *mockPostService) RandomPost(ctx context.Context) (*post.Post, error) {
	args := m.Called(ctx)
	p, _ := args.Get(0).(*post.Post)
	return p, args.Error(1)
}
