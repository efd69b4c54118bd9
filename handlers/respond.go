package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/signalbymoza/sbm-trading-channel-ytgkmn-sub000/common"

	"github.com/gin-gonic/gin"
)

// respondError maps the application error taxonomy to HTTP statuses.
// Client errors surface their message; downstream failures are logged with
// full context and returned as a generic 500 without leaking internals.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, common.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
	default:
		logger.Error("Request failed", "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
