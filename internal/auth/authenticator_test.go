package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/domain"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserStore struct {
	users map[int64]*model.User
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func newTestAuthenticator(t *testing.T) (*Authenticator, *Codec) {
	t.Helper()

	codec := NewCodec("test-secret", time.Hour, 2*time.Hour, newFakeBlacklist())
	users := &fakeUserStore{users: map[int64]*model.User{
		42: {ID: 42, Email: "user@example.com", Verified: true, IsActive: true},
	}}

	a := NewAuthenticator(codec, users, Config{
		AccessCookieName: "access_token",
		CSRFCookieName:   "csrf_token",
		CSRFHeaderName:   "X-CSRF-Token",
		AllowHTTPHeader:  true,
		AllowWSHeader:    true,
	})
	return a, codec
}

func accessTokenFor(t *testing.T, codec *Codec, userID int64) string {
	t.Helper()
	pair, err := codec.Issue(userID)
	require.NoError(t, err)
	return pair.Access
}

func TestAuthenticateReasons(t *testing.T) {
	a, codec := newTestAuthenticator(t)

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantUser   bool
		wantReason string
	}{
		{
			name:       "no credential",
			setup:      func(r *http.Request) {},
			wantReason: ReasonMissingToken,
		},
		{
			name: "garbage cookie",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "access_token", Value: "garbage"})
			},
			wantReason: ReasonInvalidOrExpired,
		},
		{
			name: "unknown user",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "access_token", Value: accessTokenFor(t, codec, 999)})
			},
			wantReason: ReasonUserNotFound,
		},
		{
			name: "valid cookie",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "access_token", Value: accessTokenFor(t, codec, 42)})
			},
			wantUser: true,
		},
		{
			name: "valid header",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+accessTokenFor(t, codec, 42))
			},
			wantUser: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
			tt.setup(r)

			identity, err := a.Authenticate(r)
			require.NoError(t, err)

			if tt.wantUser {
				require.True(t, identity.Authenticated())
				assert.Equal(t, int64(42), identity.User.ID)
				assert.Empty(t, identity.Reason)
			} else {
				assert.False(t, identity.Authenticated())
				assert.Equal(t, tt.wantReason, identity.Reason)
			}
		})
	}
}

func TestAuthenticateCSRF(t *testing.T) {
	a, codec := newTestAuthenticator(t)
	token := accessTokenFor(t, codec, 42)

	tests := []struct {
		name       string
		method     string
		source     string // cookie or header
		csrfCookie string
		csrfHeader string
		wantErr    bool
	}{
		{
			name:       "unsafe method with matching pair",
			method:     http.MethodPost,
			source:     "cookie",
			csrfCookie: "abc123",
			csrfHeader: "abc123",
		},
		{
			name:    "unsafe method missing both",
			method:  http.MethodPost,
			source:  "cookie",
			wantErr: true,
		},
		{
			name:       "unsafe method missing header",
			method:     http.MethodPost,
			source:     "cookie",
			csrfCookie: "abc123",
			wantErr:    true,
		},
		{
			name:       "unsafe method mismatch",
			method:     http.MethodPost,
			source:     "cookie",
			csrfCookie: "abc123",
			csrfHeader: "xyz789",
			wantErr:    true,
		},
		{
			name:   "safe method never checked",
			method: http.MethodGet,
			source: "cookie",
		},
		{
			name:   "header-sourced token never checked",
			method: http.MethodDelete,
			source: "header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/api/v1/jobs/detect", nil)
			if tt.source == "cookie" {
				r.AddCookie(&http.Cookie{Name: "access_token", Value: token})
			} else {
				r.Header.Set("Authorization", "Bearer "+token)
			}
			if tt.csrfCookie != "" {
				r.AddCookie(&http.Cookie{Name: "csrf_token", Value: tt.csrfCookie})
			}
			if tt.csrfHeader != "" {
				r.Header.Set("X-CSRF-Token", tt.csrfHeader)
			}

			identity, err := a.Authenticate(r)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrCSRFFailed)
				assert.False(t, identity.Authenticated())
			} else {
				require.NoError(t, err)
				assert.True(t, identity.Authenticated())
			}
		})
	}
}

func TestAuthenticateHandshakeSkipsCSRF(t *testing.T) {
	a, codec := newTestAuthenticator(t)

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.AddCookie(&http.Cookie{Name: "access_token", Value: accessTokenFor(t, codec, 42)})

	identity, err := a.AuthenticateHandshake(r)
	require.NoError(t, err)
	assert.True(t, identity.Authenticated())
	assert.Equal(t, SourceCookie, identity.Source)
}
