package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCredential(t *testing.T) {
	tests := []struct {
		name        string
		cookie      string
		header      string
		allowHeader bool
		wantToken   string
		wantSource  TokenSource
	}{
		{
			name:       "cookie only",
			cookie:     "cookie-token",
			wantToken:  "cookie-token",
			wantSource: SourceCookie,
		},
		{
			name:        "cookie wins over header",
			cookie:      "cookie-token",
			header:      "Bearer header-token",
			allowHeader: true,
			wantToken:   "cookie-token",
			wantSource:  SourceCookie,
		},
		{
			name:        "header fallback when enabled",
			header:      "Bearer header-token",
			allowHeader: true,
			wantToken:   "header-token",
			wantSource:  SourceHeader,
		},
		{
			name:        "header ignored when disabled",
			header:      "Bearer header-token",
			allowHeader: false,
			wantSource:  SourceNone,
		},
		{
			name:        "lowercase bearer scheme",
			header:      "bearer header-token",
			allowHeader: true,
			wantToken:   "header-token",
			wantSource:  SourceHeader,
		},
		{
			name:        "wrong scheme",
			header:      "Basic dXNlcjpwYXNz",
			allowHeader: true,
			wantSource:  SourceNone,
		},
		{
			name:        "scheme without token",
			header:      "Bearer",
			allowHeader: true,
			wantSource:  SourceNone,
		},
		{
			name:       "nothing present",
			wantSource: SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: "access_token", Value: tt.cookie})
			}
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			token, source := ExtractCredential(r, "access_token", tt.allowHeader)
			assert.Equal(t, tt.wantToken, token)
			assert.Equal(t, tt.wantSource, source)
		})
	}
}
