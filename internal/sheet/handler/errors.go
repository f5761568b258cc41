package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/roSievers/worksheet-elm/internal/render"
	"github.com/roSievers/worksheet-elm/internal/sheet/filter"
	"github.com/roSievers/worksheet-elm/internal/sheet/repository"
	"github.com/roSievers/worksheet-elm/internal/sheet/service"
)

// writeError answers with the status that matches err. Server-side failures
// are attached to the context so the request logger reports them.
func writeError(c *gin.Context, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

func classify(err error) (int, gin.H) {
	var missing *filter.MissingFieldError
	var notFound *repository.NotFoundError
	var compile *render.CompileError
	switch {
	case errors.As(err, &missing):
		return http.StatusUnprocessableEntity, gin.H{"error": missing.Error(), "field": missing.Field}
	case errors.Is(err, filter.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, gin.H{"error": "File exceeds size limit."}
	case errors.Is(err, filter.ErrMalformed):
		return http.StatusBadRequest, gin.H{"error": "Malformed JSON body."}
	case errors.Is(err, filter.ErrInvalidType):
		return http.StatusBadRequest, gin.H{"error": "Invalid field type.", "details": err.Error()}
	case errors.Is(err, service.ErrInvalidID):
		return http.StatusBadRequest, gin.H{"error": "Invalid ID", "details": err.Error()}
	case errors.As(err, &notFound):
		return http.StatusNotFound, gin.H{"error": "not found", "details": notFound.Error()}
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, render.ErrJobNotFound):
		return http.StatusNotFound, gin.H{"error": "not found"}
	case errors.Is(err, render.ErrBusy):
		return http.StatusServiceUnavailable, gin.H{"error": "Renderer busy, retry later."}
	case errors.As(err, &compile):
		return http.StatusInternalServerError, gin.H{"error": "Rendering failed.", "details": compile.Error()}
	case errors.Is(err, render.ErrRenderFailed):
		return http.StatusInternalServerError, gin.H{"error": "Rendering failed.", "details": err.Error()}
	default:
		return http.StatusInternalServerError, gin.H{"error": "internal error"}
	}
}
