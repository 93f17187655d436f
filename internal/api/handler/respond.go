package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/domain"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/resemble"
	"github.com/gin-gonic/gin"
)

// respondProxyError maps a Remote Gateway failure onto the client
// response. Provider rejections pass through with their status and
// body so the client can render provider-specific messages; anything
// else becomes a generic 500.
func respondProxyError(c *gin.Context, logger *slog.Logger, err error) {
	var re *resemble.RemoteError
	if errors.As(err, &re) {
		c.JSON(re.Status, gin.H{"success": false, "error": re.Body})
		return
	}

	logger.Error("Provider call failed",
		slog.String("path", c.Request.URL.Path),
		slog.Any("error", err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "unexpected error"})
}

// respondStorageError hides not-owned rows behind the same 404 as
// missing rows.
func respondStorageError(c *gin.Context, logger *slog.Logger, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}

	logger.Error("Storage operation failed",
		slog.String("path", c.Request.URL.Path),
		slog.Any("error", err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"detail": "unexpected error"})
}

func respondBindingError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
}
