package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/roSievers/worksheet-elm/internal/render"
	"github.com/roSievers/worksheet-elm/internal/sheet"
	"github.com/roSievers/worksheet-elm/internal/sheet/filter"
	"github.com/roSievers/worksheet-elm/internal/sheet/service"
)

// DefaultMaxBodyBytes caps write request bodies when no limit is configured.
const DefaultMaxBodyBytes = 4096

// Handler serves the exercise, sheet and render endpoints.
type Handler struct {
	svc      service.Service
	renderer *render.Renderer
	archive  *render.Archiver
	maxBody  int64
}

// New returns a Handler. archive may be nil, in which case renders are not recorded.
func New(svc service.Service, renderer *render.Renderer, archive *render.Archiver, maxBody int64) *Handler {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &Handler{svc: svc, renderer: renderer, archive: archive, maxBody: maxBody}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")
	api.GET("/exercise/:uid", h.GetExercise)
	api.POST("/exercise/:uid", h.SaveExercise)
	api.GET("/deprecated/exercises", h.ListExercises)
	api.GET("/sheet/:uid", h.GetSheet)
	api.POST("/sheet/:uid", h.SaveSheet)
	api.GET("/sheets", h.ListSheets)

	rg := r.Group("/render")
	rg.GET("/sheet/:uid", h.RenderSheet)
	rg.GET("/jobs/:jobId", h.GetRenderJob)
}

// uid parses the :uid path parameter, answering 400 itself when it is not an integer.
func uid(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("uid"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid ID", "details": "ID was not valid."})
		return 0, false
	}
	return id, true
}

// GetExercise returns one exercise.
func (h *Handler) GetExercise(c *gin.Context) {
	id, ok := uid(c)
	if !ok {
		return
	}
	e, err := h.svc.GetExercise(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// SaveExercise accepts {title, text}; uid -1 creates, any other id updates.
// Responds 201 with the stored exercise.
func (h *Handler) SaveExercise(c *gin.Context) {
	id, ok := uid(c)
	if !ok {
		return
	}
	var in sheet.ExerciseInput
	if err := h.bind(c, sheet.ExerciseKeys, &in); err != nil {
		writeError(c, err)
		return
	}
	e, err := h.svc.SaveExercise(c.Request.Context(), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

// ListExercises returns {"exercises": [...]}.
func (h *Handler) ListExercises(c *gin.Context) {
	list, err := h.svc.ListExercises(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exercises": list})
}

// GetSheet returns the sheet with its exercises resolved.
func (h *Handler) GetSheet(c *gin.Context) {
	id, ok := uid(c)
	if !ok {
		return
	}
	s, err := h.svc.GetSheet(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// SaveSheet accepts {title, content}; uid -1 creates, any other id updates.
func (h *Handler) SaveSheet(c *gin.Context) {
	id, ok := uid(c)
	if !ok {
		return
	}
	var in sheet.SheetInput
	if err := h.bind(c, sheet.SheetKeys, &in); err != nil {
		writeError(c, err)
		return
	}
	saved, err := h.svc.SaveSheet(c.Request.Context(), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok", "id": saved})
}

// ListSheets returns {"sheets": [...]} without content.
func (h *Handler) ListSheets(c *gin.Context) {
	list, err := h.svc.ListSheets(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sheets": list})
}

// RenderSheet resolves the sheet, compiles it and streams the PDF.
func (h *Handler) RenderSheet(c *gin.Context) {
	id, ok := uid(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	s, err := h.svc.GetSheet(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}

	out, err := h.renderer.Render(ctx, s)
	if h.archive != nil {
		job := h.archive.Record(ctx, id, out, err)
		c.Header("X-Render-Job", job.JobID)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	defer out.Close()

	c.DataFromReader(http.StatusOK, out.Size(), "application/pdf", out, map[string]string{
		"Content-Disposition": fmt.Sprintf(`inline; filename="sheet-%d.pdf"`, id),
	})
}

// GetRenderJob returns render job metadata and, when archived, a download URL.
func (h *Handler) GetRenderJob(c *gin.Context) {
	if h.archive == nil {
		writeError(c, render.ErrJobNotFound)
		return
	}
	v, err := h.archive.Lookup(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) bind(c *gin.Context, keys []string, v any) error {
	fields, err := filter.Extract(c.Request.Body, keys, h.maxBody)
	if err != nil {
		return err
	}
	return fields.Decode(v)
}
