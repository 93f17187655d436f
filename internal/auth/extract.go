package auth

import (
	"net/http"
	"strings"
)

// TokenSource says where a credential was found
type TokenSource string

const (
	SourceCookie TokenSource = "cookie"
	SourceHeader TokenSource = "header"
	SourceNone   TokenSource = "none"
)

// ExtractCredential locates a bearer credential on a request.
// Preference order is fixed: the named cookie wins; the Authorization
// header is consulted only when header auth is enabled for the channel.
// Extraction never fails, a malformed cookie or header simply yields
// SourceNone.
func ExtractCredential(r *http.Request, cookieName string, allowHeader bool) (string, TokenSource) {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value, SourceCookie
	}

	if allowHeader {
		if token := bearerToken(r.Header.Get("Authorization")); token != "" {
			return token, SourceHeader
		}
	}

	return "", SourceNone
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
