package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/api/model"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/auth"
	"github.com/HamzaAhmedWajeeh/stc-voice-api/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UploadHandler stores media files that provider jobs reference by URL
type UploadHandler struct {
	logger  *slog.Logger
	cfg     *config.Config
	storage Store
}

// NewUploadHandler creates a new UploadHandler instance
func NewUploadHandler(deps *Dependencies) *UploadHandler {
	return &UploadHandler{
		logger:  deps.Logger,
		cfg:     deps.Config,
		storage: deps.Storage,
	}
}

// Create handles POST /api/v1/uploads (multipart: file)
func (h *UploadHandler) Create(c *gin.Context) {
	identity := auth.IdentityFromContext(c)

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "file is required"})
		return
	}

	if header.Size > h.cfg.Upload.MaxBytes {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": fmt.Sprintf("file exceeds the %d byte limit", h.cfg.Upload.MaxBytes),
		})
		return
	}

	originalName := filepath.Base(header.Filename)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(originalName)), ".")
	if !h.extensionAllowed(ext) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("extension %q is not allowed", ext)})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if !h.mimeAllowed(contentType) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("content type %q is not allowed", contentType)})
		return
	}

	src, err := header.Open()
	if err != nil {
		h.logger.Error("Failed to open upload", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "unexpected error"})
		return
	}
	defer src.Close()

	uploadUUID := uuid.NewString()
	relPath := path.Join("uploads", time.Now().UTC().Format("20060102"), uploadUUID+"_"+originalName)
	absPath := filepath.Join(h.cfg.App.MediaDir, filepath.FromSlash(relPath))

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		h.logger.Error("Failed to create media directory", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "unexpected error"})
		return
	}

	dst, err := os.Create(absPath)
	if err != nil {
		h.logger.Error("Failed to create media file", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "unexpected error"})
		return
	}
	defer dst.Close()

	// hash while streaming, never buffering the whole body
	sha := sha256.New()
	written, err := io.Copy(io.MultiWriter(dst, sha), src)
	if err != nil {
		os.Remove(absPath)
		h.logger.Error("Failed to store upload", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "unexpected error"})
		return
	}

	upload := model.Upload{
		UUID:         uploadUUID,
		UserID:       identity.User.ID,
		StoragePath:  relPath,
		OriginalName: originalName,
		ContentType:  contentType,
		SizeBytes:    written,
		SHA256:       hex.EncodeToString(sha.Sum(nil)),
		CreatedAt:    time.Now().UTC(),
	}

	if err := h.storage.CreateUpload(c.Request.Context(), &upload); err != nil {
		os.Remove(absPath)
		h.logger.Error("Failed to persist upload", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "unexpected error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"item": gin.H{
			"upload_uuid":   upload.UUID,
			"original_name": upload.OriginalName,
			"content_type":  upload.ContentType,
			"size_bytes":    upload.SizeBytes,
			"sha256":        upload.SHA256,
			"url":           h.publicURL(upload.StoragePath),
		},
	})
}

func (h *UploadHandler) extensionAllowed(ext string) bool {
	if len(h.cfg.Upload.AllowedExtensions) == 0 {
		return true
	}
	for _, allowed := range h.cfg.Upload.AllowedExtensions {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

func (h *UploadHandler) mimeAllowed(contentType string) bool {
	if len(h.cfg.Upload.AllowedMIMEs) == 0 || contentType == "" {
		return true
	}
	for _, prefix := range h.cfg.Upload.AllowedMIMEs {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// publicURL builds the HTTPS URL the provider fetches the file from
func (h *UploadHandler) publicURL(relPath string) string {
	return publicMediaURL(h.cfg, relPath)
}

func publicMediaURL(cfg *config.Config, relPath string) string {
	base := strings.TrimRight(cfg.App.PublicBaseURL, "/")
	urlPath := "/" + strings.Trim(cfg.App.MediaURLPath, "/")
	return base + urlPath + "/" + relPath
}
