package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/domain"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/model"
)

// Anonymous reasons attached when authentication degrades instead of
// aborting
const (
	ReasonMissingToken     = "missing_token"
	ReasonInvalidOrExpired = "invalid_or_expired"
	ReasonMissingUserID    = "missing_user_id"
	ReasonUserNotFound     = "user_not_found"
)

// ErrCSRFFailed is the one authentication failure that rejects the
// request outright instead of degrading to anonymous.
var ErrCSRFFailed = errors.New("csrf validation failed")

// Identity is the terminal outcome of authenticating one request or
// one WebSocket handshake.
type Identity struct {
	User   *model.User
	Source TokenSource
	Reason string // set only when User is nil
}

// Authenticated reports whether a user was resolved
func (i Identity) Authenticated() bool { return i.User != nil }

// UserStore resolves a user_id claim to a user row
type UserStore interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}

// Config selects per-channel behavior for the authenticator
type Config struct {
	AccessCookieName string
	CSRFCookieName   string
	CSRFHeaderName   string
	AllowHTTPHeader  bool // Authorization header accepted on HTTP
	AllowWSHeader    bool // Authorization header accepted on handshake
}

// Authenticator resolves an extracted credential into an identity
type Authenticator struct {
	codec *Codec
	users UserStore
	cfg   Config
}

// NewAuthenticator creates a session authenticator
func NewAuthenticator(codec *Codec, users UserStore, cfg Config) *Authenticator {
	return &Authenticator{codec: codec, users: users, cfg: cfg}
}

// Authenticate runs the synchronous per-request flow. Failures degrade
// to an anonymous identity with a reason, except CSRF which returns
// ErrCSRFFailed; infrastructure errors are returned as-is.
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	identity, err := a.resolve(r, a.cfg.AllowHTTPHeader)
	if err != nil {
		return Identity{Source: identity.Source}, err
	}

	if identity.Source == SourceCookie && isUnsafeMethod(r.Method) {
		if err := a.enforceCSRF(r); err != nil {
			return Identity{Source: SourceCookie}, err
		}
	}

	return identity, nil
}

// AuthenticateHandshake runs the one-time WebSocket handshake flow.
// There is no unsafe-method concept on a handshake, so CSRF is not
// enforced; the caller binds the identity to the connection lifetime.
func (a *Authenticator) AuthenticateHandshake(r *http.Request) (Identity, error) {
	return a.resolve(r, a.cfg.AllowWSHeader)
}

func (a *Authenticator) resolve(r *http.Request, allowHeader bool) (Identity, error) {
	raw, source := ExtractCredential(r, a.cfg.AccessCookieName, allowHeader)
	if source == SourceNone {
		return Identity{Source: SourceNone, Reason: ReasonMissingToken}, nil
	}

	claims, err := a.codec.Verify(r.Context(), raw, TokenTypeAccess)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrTokenRevoked) {
			return Identity{Source: source, Reason: ReasonInvalidOrExpired}, nil
		}
		return Identity{Source: source}, fmt.Errorf("token verification: %w", err)
	}

	if claims.UserID == 0 {
		return Identity{Source: source, Reason: ReasonMissingUserID}, nil
	}

	user, err := a.users.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Identity{Source: source, Reason: ReasonUserNotFound}, nil
		}
		return Identity{Source: source}, fmt.Errorf("user lookup: %w", err)
	}

	return Identity{User: user, Source: source}, nil
}

// enforceCSRF applies double-submit validation: the non-HttpOnly CSRF
// cookie must match the request header, compared in constant time.
func (a *Authenticator) enforceCSRF(r *http.Request) error {
	cookie, err := r.Cookie(a.cfg.CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return fmt.Errorf("%w: missing csrf cookie", ErrCSRFFailed)
	}

	header := r.Header.Get(a.cfg.CSRFHeaderName)
	if header == "" {
		return fmt.Errorf("%w: missing csrf header", ErrCSRFFailed)
	}

	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
		return fmt.Errorf("%w: token mismatch", ErrCSRFFailed)
	}

	return nil
}

func isUnsafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	return true
}
