package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipelab/internal/media"
	"recipelab/internal/platform/gemini"
	"recipelab/internal/platform/localllm"
	"recipelab/internal/recipe"
)

// AnalyzeMedia scans an uploaded photo or video (multipart field "media")
// and returns a recipe draft. Results are cached by the media hash.
func (h *Handler) AnalyzeMedia(c *gin.Context) {
	if h.Scanner == nil {
		respondError(c, http.StatusServiceUnavailable, "AI scanning is not configured")
		return
	}

	if c.Request.ContentLength > h.opts.MaxUploadBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "Upload is too large")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)
	file, err := c.FormFile("media")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "Upload is too large")
			return
		}
		respondError(c, http.StatusBadRequest, "A media file is required")
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "Could not open upload")
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Could not read upload")
		return
	}

	mimeType := media.Normalize(file.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = media.Normalize(http.DetectContentType(data))
	}

	prepared, err := media.Prepare(data, mimeType)
	if err != nil {
		switch {
		case errors.Is(err, media.ErrUnsupportedMedia):
			respondError(c, http.StatusUnsupportedMediaType, "Only image and video uploads are supported")
		default:
			respondError(c, http.StatusBadRequest, "Image could not be decoded")
		}
		return
	}

	hash := gemini.HashMedia(data)
	log := h.log.With(zap.String("media_hash", hash), zap.String("request_id", c.GetString(requestIDKey)))

	lookupCtx, cancelLookup := context.WithTimeout(c.Request.Context(), storageTimeout)
	cached, err := h.Store.GetScan(lookupCtx, hash)
	cancelLookup()
	if err != nil {
		log.Warn("Scan cache lookup failed", zap.Error(err))
	}
	if cached != nil {
		log.Debug("Scan cache hit")
		c.Header("X-Scan-Cache", "hit")
		c.JSON(http.StatusOK, cached)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.ScanTimeout)
	defer cancel()

	log.Info("Analyzing media", zap.String("mime_type", mimeType), zap.Int("bytes", len(prepared)))
	draft, err := h.Scanner.AnalyzeMedia(ctx, prepared, mimeType)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			respondError(c, http.StatusRequestTimeout, "AI analysis timed out")
		case errors.Is(err, recipe.ErrNoRecipe):
			respondError(c, http.StatusUnprocessableEntity, "No recipe could be found in this media")
		case errors.Is(err, localllm.ErrUnsupportedMedia):
			respondError(c, http.StatusUnsupportedMediaType, "The configured AI provider only accepts images")
		case errors.Is(err, gemini.ErrEmptyResponse), errors.Is(err, localllm.ErrEmptyResponse):
			respondError(c, http.StatusBadGateway, "AI returned an empty response")
		default:
			log.Error("Media analysis failed", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "Failed to analyze media")
		}
		return
	}

	saveCtx, cancelSave := context.WithTimeout(c.Request.Context(), storageTimeout)
	defer cancelSave()
	if err := h.Store.SaveScan(saveCtx, hash, draft); err != nil {
		log.Warn("Failed to cache scan", zap.Error(err))
	}

	c.Header("X-Scan-Cache", "miss")
	c.JSON(http.StatusOK, draft)
}
