package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/common"

	"github.com/gin-gonic/gin"
)

// UploadStore is the slice of object storage the upload endpoint needs.
type UploadStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) error
	PresignedGetURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// UploadHandler handles identity-document uploads
type UploadHandler struct {
	logger *slog.Logger
	store  UploadStore
	urlTTL time.Duration
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(store UploadStore, urlTTL time.Duration) *UploadHandler {
	return &UploadHandler{
		logger: slog.With("handler", "UploadHandler"),
		store:  store,
		urlTTL: urlTTL,
	}
}

// UploadIDDocument stores a multipart document upload and returns a fresh
// signed URL for it. The client submits that URL back as the document
// reference at registration; the gateway recovers the key from it later.
func (h *UploadHandler) UploadIDDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("document")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	base := strings.TrimSuffix(filepath.Base(fileHeader.Filename), ext)
	filename := common.SafeString(base) + ext
	key := common.DOCUMENT_KEY_PREFIX + common.RandomID() + "_" + filename

	contentType := fileHeader.Header.Get("Content-Type")
	if err := h.store.Upload(c.Request.Context(), key, contentType, file); err != nil {
		h.logger.Error("Failed to store document", "error", err, "key", key)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store document"})
		return
	}

	url, err := h.store.PresignedGetURL(c.Request.Context(), key, h.urlTTL)
	if err != nil {
		h.logger.Error("Failed to sign document URL", "error", err, "key", key)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign document URL"})
		return
	}

	h.logger.Info("Document uploaded", "key", key, "size", fileHeader.Size)
	c.JSON(http.StatusCreated, gin.H{"url": url, "filename": filename})
}
