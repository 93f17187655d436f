package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func authRouter(deps *Dependencies) *gin.Engine {
	h := NewAuthHandler(deps)
	r := gin.New()
	r.POST("/api/v1/auth/register", h.Register)
	r.POST("/api/v1/auth/token", h.Login)
	r.POST("/api/v1/auth/refresh", h.Refresh)
	r.POST("/api/v1/auth/logout", h.Logout)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func cookieByName(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func registerPassword(t *testing.T, store *fakeStore, id int64, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := seedUser(store, id)
	user.PasswordHash = string(hash)
}

func TestRegister(t *testing.T) {
	store := newFakeStore()
	r := authRouter(testDeps(store, &fakeQueue{}))

	w := postJSON(t, r, "/api/v1/auth/register", gin.H{
		"email":    "new@example.com",
		"name":     "New User",
		"password": "longenough",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	user, err := store.GetUserByEmail(context.Background(), "new@example.com")
	require.NoError(t, err)
	assert.True(t, user.Verified)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "longenough", user.PasswordHash)

	// duplicate email
	w = postJSON(t, r, "/api/v1/auth/register", gin.H{
		"email":    "new@example.com",
		"name":     "Another",
		"password": "longenough",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginSetsCookies(t *testing.T) {
	store := newFakeStore()
	registerPassword(t, store, 1, "correct-horse")
	r := authRouter(testDeps(store, &fakeQueue{}))

	w := postJSON(t, r, "/api/v1/auth/token", gin.H{
		"email":    "user1@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, w.Code)

	access := cookieByName(w, "access_token")
	require.NotNil(t, access)
	assert.True(t, access.HttpOnly)
	assert.NotEmpty(t, access.Value)

	refresh := cookieByName(w, "refresh_token")
	require.NotNil(t, refresh)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, "/api/v1/auth/", refresh.Path)

	csrf := cookieByName(w, "csrf_token")
	require.NotNil(t, csrf)
	assert.False(t, csrf.HttpOnly, "CSRF cookie must be readable by scripts")

	assert.Equal(t, []int64{1}, store.lastLoginTouched)
}

func TestLoginRefusals(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(store *fakeStore)
		email    string
		password string
	}{
		{
			name:     "unknown email",
			mutate:   func(*fakeStore) {},
			email:    "nobody@example.com",
			password: "whatever1",
		},
		{
			name:     "wrong password",
			mutate:   func(*fakeStore) {},
			email:    "user1@example.com",
			password: "wrong-password",
		},
		{
			name: "unverified account",
			mutate: func(store *fakeStore) {
				store.users["user1@example.com"].Verified = false
			},
			email:    "user1@example.com",
			password: "correct-horse",
		},
		{
			name: "inactive account",
			mutate: func(store *fakeStore) {
				store.users["user1@example.com"].IsActive = false
			},
			email:    "user1@example.com",
			password: "correct-horse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			registerPassword(t, store, 1, "correct-horse")
			tt.mutate(store)
			r := authRouter(testDeps(store, &fakeQueue{}))

			w := postJSON(t, r, "/api/v1/auth/token", gin.H{
				"email":    tt.email,
				"password": tt.password,
			})
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Empty(t, w.Result().Cookies(), "refusal must not set cookies")
		})
	}
}

func TestRefreshRotation(t *testing.T) {
	store := newFakeStore()
	seedUser(store, 1)
	deps := testDeps(store, &fakeQueue{})
	r := authRouter(deps)

	pair, err := deps.Codec.Issue(1)
	require.NoError(t, err)
	refreshCookie := &http.Cookie{Name: "refresh_token", Value: pair.Refresh}

	w := postJSON(t, r, "/api/v1/auth/refresh", nil, refreshCookie)
	require.Equal(t, http.StatusOK, w.Code)

	newRefresh := cookieByName(w, "refresh_token")
	require.NotNil(t, newRefresh)
	assert.NotEqual(t, pair.Refresh, newRefresh.Value)

	// the old refresh token is now single-use spent
	w = postJSON(t, r, "/api/v1/auth/refresh", nil, refreshCookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// the rotated one still works
	w = postJSON(t, r, "/api/v1/auth/refresh", nil,
		&http.Cookie{Name: "refresh_token", Value: newRefresh.Value})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshRejections(t *testing.T) {
	store := newFakeStore()
	seedUser(store, 1)
	deps := testDeps(store, &fakeQueue{})
	r := authRouter(deps)

	// no cookie at all
	w := postJSON(t, r, "/api/v1/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// garbage cookie
	w = postJSON(t, r, "/api/v1/auth/refresh", nil,
		&http.Cookie{Name: "refresh_token", Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// access token in the refresh slot
	pair, err := deps.Codec.Issue(1)
	require.NoError(t, err)
	w = postJSON(t, r, "/api/v1/auth/refresh", nil,
		&http.Cookie{Name: "refresh_token", Value: pair.Access})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutIsIdempotent(t *testing.T) {
	store := newFakeStore()
	seedUser(store, 1)
	deps := testDeps(store, &fakeQueue{})
	r := authRouter(deps)

	pair, err := deps.Codec.Issue(1)
	require.NoError(t, err)
	refreshCookie := &http.Cookie{Name: "refresh_token", Value: pair.Refresh}

	// logout with a live token revokes it and clears cookies
	w := postJSON(t, r, "/api/v1/auth/logout", nil, refreshCookie)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := cookieByName(w, "access_token")
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	// logout again with the now-revoked token still succeeds
	w = postJSON(t, r, "/api/v1/auth/logout", nil, refreshCookie)
	assert.Equal(t, http.StatusOK, w.Code)

	// and logout with no cookie at all succeeds too
	w = postJSON(t, r, "/api/v1/auth/logout", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
