package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/azure"
	"go.uber.org/zap"
)

// MediaHandler serves archived chat media back to the transcript
type MediaHandler struct {
	store  azure.MediaStore
	logger *zap.Logger
}

// NewMediaHandler creates a new MediaHandler
func NewMediaHandler(store azure.MediaStore, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{
		store:  store,
		logger: logger,
	}
}

// GetMedia streams one archived upload
func (h *MediaHandler) GetMedia(c *gin.Context) {
	ref := strings.TrimPrefix(c.Param("ref"), "/")
	if ref == "" {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: CodeNotFound, Message: "media reference is empty"})
		return
	}

	data, contentType, err := h.store.Fetch(c.Request.Context(), ref)
	if err != nil {
		h.logger.Warn("failed to fetch media", zap.String("ref", ref), zap.Error(err))
		respondError(c, err)
		return
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, contentType, data)
}
