// Package handler exposes the document chat service over HTTP.
package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/biz"
	"github.com/kart-io/docchat/internal/docchat/middleware"
	"github.com/kart-io/docchat/internal/model"
)

// Handler handles document chat HTTP requests.
type Handler struct {
	svc biz.Service
}

// New creates a Handler backed by the given service.
func New(svc biz.Service) *Handler {
	return &Handler{svc: svc}
}

// Upload handles POST /upload.
func (h *Handler) Upload(c *gin.Context) {
	sessionID := middleware.SessionID(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	chunkSize, ok := formInt(c, "chunkSize")
	if !ok {
		return
	}
	chunkOverlap, ok := formInt(c, "chunkOverlap")
	if !ok {
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	result, err := h.svc.Upload(c.Request.Context(), sessionID, &biz.UploadInput{
		FileName:     fileHeader.Filename,
		ContentType:  fileHeader.Header.Get("Content-Type"),
		Data:         data,
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Query handles POST /query.
func (h *Handler) Query(c *gin.Context) {
	sessionID := middleware.SessionID(c)

	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	resp, err := h.svc.Query(c.Request.Context(), sessionID, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Reset handles POST /session/reset.
func (h *Handler) Reset(c *gin.Context) {
	sessionID := middleware.SessionID(c)

	result, err := h.svc.Reset(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Stats handles GET /stats.
func (h *Handler) Stats(c *gin.Context) {
	sessionID := middleware.SessionID(c)

	stats, err := h.svc.Stats(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// formInt parses an optional integer form value; a malformed value ends
// the request with a 400.
func formInt(c *gin.Context, name string) (int, bool) {
	raw := c.PostForm(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " value"})
		return 0, false
	}
	return v, true
}

// writeError maps business errors to HTTP status codes and bodies.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, biz.ErrNoFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
	case errors.Is(err, biz.ErrUnsupportedFileType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only .pdf and .txt files are supported"})
	case errors.Is(err, biz.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query is required"})
	case errors.Is(err, biz.ErrQueryTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question is too long. Please keep it under 500 characters."})
	case errors.Is(err, biz.ErrInvalidChunking):
		c.JSON(http.StatusBadRequest, gin.H{"error": "chunkOverlap must be smaller than chunkSize"})
	case errors.Is(err, biz.ErrNotConfigured),
		errors.Is(err, biz.ErrEmbeddingUnavailable):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Embedding service is unavailable"})
	case errors.Is(err, biz.ErrGenerationFailed):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate an answer"})
	default:
		logger.Errorw("unhandled request error", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
