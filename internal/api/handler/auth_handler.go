package handler

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/domain"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/dto"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/model"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/auth"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/config"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler handles registration, login, refresh, and logout
type AuthHandler struct {
	logger  *slog.Logger
	cfg     *config.Config
	storage Store
	codec   *auth.Codec
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(deps *Dependencies) *AuthHandler {
	return &AuthHandler{
		logger:  deps.Logger,
		cfg:     deps.Config,
		storage: deps.Storage,
		codec:   deps.Codec,
	}
}

// Register handles POST /api/v1/auth/register.
// Single-tenant mode: accounts come up verified and active.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("Failed to hash password", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "unexpected error"})
		return
	}

	user := model.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
		IsActive:     true,
		Verified:     true,
	}

	if err := h.storage.CreateUser(c.Request.Context(), &user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Email already registered."})
			return
		}
		h.logger.Error("Failed to create user", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "unexpected error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"detail": "User created",
		"user": gin.H{
			"id":        user.ID,
			"email":     user.Email,
			"name":      user.Name,
			"verified":  user.Verified,
			"is_active": user.IsActive,
		},
	})
}

// Login handles POST /api/v1/auth/token.
// Login is refused unless verified and active; no cookies are set on
// refusal.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	user, err := h.storage.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid credentials."})
			return
		}
		h.logger.Error("Failed to look up user", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "unexpected error"})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid credentials."})
		return
	}

	if !user.Verified || !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Account is not verified or inactive."})
		return
	}

	pair, err := h.codec.Issue(user.ID)
	if err != nil {
		h.logger.Error("Failed to issue tokens", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Token generation failed."})
		return
	}

	if err := h.storage.TouchLastLogin(c.Request.Context(), user.ID); err != nil {
		h.logger.Warn("Failed to record last login",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	h.setAuthCookies(c, pair)
	h.setCSRFCookie(c)

	c.JSON(http.StatusOK, gin.H{
		"detail":    "Login successful",
		"verified":  user.Verified,
		"is_active": user.IsActive,
	})
}

// Refresh handles POST /api/v1/auth/refresh.
// Rotation is single-use: the presented refresh jti is blacklisted
// before a new pair is issued.
func (h *AuthHandler) Refresh(c *gin.Context) {
	raw, err := c.Cookie(h.cfg.Auth.RefreshCookie.Name)
	if err != nil || raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Refresh token missing."})
		return
	}

	claims, err := h.codec.Verify(c.Request.Context(), raw, auth.TokenTypeRefresh)
	if err != nil {
		if errors.Is(err, auth.ErrTokenInvalid) || errors.Is(err, auth.ErrTokenRevoked) {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Refresh token invalid or revoked."})
			return
		}
		h.logger.Error("Refresh verification failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "unexpected error"})
		return
	}

	pair, err := h.codec.Rotate(c.Request.Context(), claims)
	if err != nil {
		if errors.Is(err, auth.ErrTokenRevoked) {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Refresh token invalid or revoked."})
			return
		}
		h.logger.Error("Refresh rotation failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "unexpected error"})
		return
	}

	h.setAuthCookies(c, pair)
	h.setCSRFCookie(c)

	c.JSON(http.StatusOK, gin.H{"detail": "Refreshed"})
}

// Logout handles POST /api/v1/auth/logout.
// Blacklisting an already-invalid refresh token is a no-op, so logout
// is idempotent.
func (h *AuthHandler) Logout(c *gin.Context) {
	if raw, err := c.Cookie(h.cfg.Auth.RefreshCookie.Name); err == nil && raw != "" {
		claims, err := h.codec.Verify(c.Request.Context(), raw, auth.TokenTypeRefresh)
		if err == nil {
			if err := h.codec.Revoke(c.Request.Context(), claims); err != nil {
				h.logger.Warn("Failed to revoke refresh token on logout", slog.Any("error", err))
			}
		}
	}

	h.clearAuthCookies(c)

	c.JSON(http.StatusOK, gin.H{"detail": "Logged out"})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	identity := auth.IdentityFromContext(c)
	user := identity.User

	c.JSON(http.StatusOK, gin.H{
		"id":        user.ID,
		"email":     user.Email,
		"name":      user.Name,
		"verified":  user.Verified,
		"is_active": user.IsActive,
		"is_staff":  user.IsStaff,
	})
}

// ---- cookie helpers ----

func (h *AuthHandler) setAuthCookies(c *gin.Context, pair *auth.TokenPair) {
	ac := h.cfg.Auth.AccessCookie
	setCookie(c, ac, pair.Access, int(h.codec.AccessTTL().Seconds()), true)

	rc := h.cfg.Auth.RefreshCookie
	setCookie(c, rc, pair.Refresh, int(h.codec.RefreshTTL().Seconds()), true)
}

func (h *AuthHandler) setCSRFCookie(c *gin.Context) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		h.logger.Error("Failed to generate CSRF token", slog.Any("error", err))
		return
	}
	// readable by client script: it must echo the value in the CSRF header
	setCookie(c, h.cfg.Auth.CSRFCookie, hex.EncodeToString(buf), int(h.codec.RefreshTTL().Seconds()), false)
}

func (h *AuthHandler) clearAuthCookies(c *gin.Context) {
	setCookie(c, h.cfg.Auth.AccessCookie, "", -1, true)
	setCookie(c, h.cfg.Auth.RefreshCookie, "", -1, true)
	setCookie(c, h.cfg.Auth.CSRFCookie, "", -1, false)
}

func setCookie(c *gin.Context, cfg config.CookieConfig, value string, maxAge int, httpOnly bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cfg.Name,
		Value:    value,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   maxAge,
		Secure:   cfg.Secure,
		HttpOnly: httpOnly,
		SameSite: sameSiteFromString(cfg.SameSite),
	})
}

func sameSiteFromString(s string) http.SameSite {
	switch s {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	}
	return http.SameSiteDefaultMode
}
