package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/roSievers/worksheet-elm/internal/render"
	"github.com/roSievers/worksheet-elm/internal/sheet/repository"
	"github.com/roSievers/worksheet-elm/internal/sheet/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompiler struct {
	pdf []byte
	err error
}

func (s stubCompiler) Compile(_ context.Context, _, dst string) error {
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(dst, s.pdf, 0o600)
}

func newRouter(t *testing.T, c render.Compiler) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := service.New(repository.NewMemoryStore())
	rnd := render.NewRenderer(c, render.Options{WorkDir: t.TempDir(), Timeout: 5 * time.Second, MaxConcurrent: 2})
	h := New(svc, rnd, render.NewArchiver(render.NewMemoryJobStore(), nil), 0)
	r := gin.New()
	h.Register(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func createExercise(t *testing.T, r http.Handler, title, text string) int {
	t.Helper()
	w := do(r, http.MethodPost, "/api/exercise/-1", fmt.Sprintf(`{"title":%q,"text":%q}`, title, text))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return int(decode(t, w)["id"].(float64))
}

func TestExerciseCreateAndGet(t *testing.T) {
	r := newRouter(t, stubCompiler{})

	w := do(r, http.MethodPost, "/api/exercise/-1", `{"title":"Sum","text":"1+1","evil":"x"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode(t, w)
	assert.NotContains(t, created, "evil")
	id := int(created["id"].(float64))

	w = do(r, http.MethodGet, fmt.Sprintf("/api/exercise/%d", id), "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Equal(t, created, got)
	assert.Equal(t, "Sum", got["title"])
	assert.Equal(t, "1+1", got["text"])
	assert.NotContains(t, got, "evil")
}

func TestExerciseUpdate(t *testing.T) {
	r := newRouter(t, stubCompiler{})
	id := createExercise(t, r, "A", "a")

	w := do(r, http.MethodPost, fmt.Sprintf("/api/exercise/%d", id), `{"title":"A2","text":"a2"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, float64(id), decode(t, w)["id"])

	w = do(r, http.MethodGet, fmt.Sprintf("/api/exercise/%d", id), "")
	assert.Equal(t, "A2", decode(t, w)["title"])
}

func TestExerciseWriteErrors(t *testing.T) {
	r := newRouter(t, stubCompiler{})

	cases := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"missing text", "/api/exercise/-1", `{"title":"x"}`, http.StatusUnprocessableEntity},
		{"malformed", "/api/exercise/-1", `{"title":`, http.StatusBadRequest},
		{"wrong type", "/api/exercise/-1", `{"title":1,"text":"x"}`, http.StatusBadRequest},
		{"non-integer uid", "/api/exercise/abc", `{"title":"x","text":"y"}`, http.StatusBadRequest},
		{"negative uid", "/api/exercise/-5", `{"title":"x","text":"y"}`, http.StatusBadRequest},
		{"update missing", "/api/exercise/999", `{"title":"x","text":"y"}`, http.StatusNotFound},
		{"oversize", "/api/exercise/-1", `{"title":"x","text":"` + strings.Repeat("a", DefaultMaxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}

	w := do(r, http.MethodPost, "/api/exercise/-1", `{"title":"x"}`)
	assert.Equal(t, "text", decode(t, w)["field"])

	// nothing was stored by the failed writes
	w = do(r, http.MethodGet, "/api/deprecated/exercises", "")
	assert.Empty(t, decode(t, w)["exercises"])
}

func TestGetExerciseErrors(t *testing.T) {
	r := newRouter(t, stubCompiler{})
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/exercise/42", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/exercise/1.5", "").Code)
}

func TestListExercises(t *testing.T) {
	r := newRouter(t, stubCompiler{})
	createExercise(t, r, "A", "a")
	createExercise(t, r, "B", "b")

	w := do(r, http.MethodGet, "/api/deprecated/exercises", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["exercises"].([]any)
	require.Len(t, list, 2)
	titles := []string{}
	for _, e := range list {
		titles = append(titles, e.(map[string]any)["title"].(string))
	}
	assert.ElementsMatch(t, []string{"A", "B"}, titles)
}

func TestSheetLifecycle(t *testing.T) {
	r := newRouter(t, stubCompiler{})
	e1 := createExercise(t, r, "One", "first")
	e2 := createExercise(t, r, "Two", "second")

	w := do(r, http.MethodPost, "/api/sheet/-1", fmt.Sprintf(`{"title":"S","content":[%d,%d,%d],"owner":"x"}`, e2, e1, e2))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ack := decode(t, w)
	assert.Equal(t, "ok", ack["status"])
	sid := int(ack["id"].(float64))

	w = do(r, http.MethodGet, fmt.Sprintf("/api/sheet/%d", sid), "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Equal(t, "S", got["title"])
	assert.NotContains(t, got, "owner")
	exercises := got["exercises"].([]any)
	require.Len(t, exercises, 3)
	assert.Equal(t, "Two", exercises[0].(map[string]any)["title"])
	assert.Equal(t, "One", exercises[1].(map[string]any)["title"])
	assert.Equal(t, "Two", exercises[2].(map[string]any)["title"])

	w = do(r, http.MethodPost, fmt.Sprintf("/api/sheet/%d", sid), `{"title":"S2","content":[]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	w = do(r, http.MethodGet, fmt.Sprintf("/api/sheet/%d", sid), "")
	assert.Empty(t, decode(t, w)["exercises"])

	w = do(r, http.MethodGet, "/api/sheets", "")
	require.Equal(t, http.StatusOK, w.Code)
	sheets := decode(t, w)["sheets"].([]any)
	require.Len(t, sheets, 1)
	summary := sheets[0].(map[string]any)
	assert.Equal(t, "S2", summary["title"])
	assert.NotContains(t, summary, "content")
}

func TestSheetErrors(t *testing.T) {
	r := newRouter(t, stubCompiler{})

	w := do(r, http.MethodPost, "/api/sheet/-1", `{"title":"S"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodPost, "/api/sheet/-1", `{"title":"S","content":"1,2"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/sheet/-1", `{"title":"Dangling","content":[77]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	sid := int(decode(t, w)["id"].(float64))

	w = do(r, http.MethodGet, fmt.Sprintf("/api/sheet/%d", sid), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode(t, w)["details"], "77")
}

func TestConcurrentCreatesGetUniqueIDs(t *testing.T) {
	r := newRouter(t, stubCompiler{})

	const n = 20
	ids := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := do(r, http.MethodPost, "/api/exercise/-1", `{"title":"t","text":"x"}`)
			if assert.Equal(t, http.StatusCreated, w.Code) {
				var e struct{ ID int }
				assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
				ids[i] = e.ID
			}
		}()
	}
	wg.Wait()

	seen := map[int]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
}

func TestRenderSheet(t *testing.T) {
	pdf := []byte("%PDF-1.5 handler test")
	r := newRouter(t, stubCompiler{pdf: pdf})
	e := createExercise(t, r, "One", "first")
	w := do(r, http.MethodPost, "/api/sheet/-1", fmt.Sprintf(`{"title":"S","content":[%d]}`, e))
	sid := int(decode(t, w)["id"].(float64))

	w = do(r, http.MethodGet, fmt.Sprintf("/render/sheet/%d", sid), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, fmt.Sprint(len(pdf)), w.Header().Get("Content-Length"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), fmt.Sprintf("sheet-%d.pdf", sid))
	assert.Equal(t, pdf, w.Body.Bytes())

	jobID := w.Header().Get("X-Render-Job")
	require.NotEmpty(t, jobID)
	w = do(r, http.MethodGet, "/render/jobs/"+jobID, "")
	require.Equal(t, http.StatusOK, w.Code)
	job := decode(t, w)
	assert.Equal(t, render.StatusReady, job["status"])
	assert.Equal(t, float64(sid), job["sheetId"])
}

func TestRenderSheetFailures(t *testing.T) {
	r := newRouter(t, stubCompiler{err: &render.CompileError{ExitCode: 43, Output: "! LaTeX Error"}})
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/render/sheet/5", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/render/sheet/x", "").Code)

	w := do(r, http.MethodPost, "/api/sheet/-1", `{"title":"S","content":[]}`)
	sid := int(decode(t, w)["id"].(float64))
	w = do(r, http.MethodGet, fmt.Sprintf("/render/sheet/%d", sid), "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode(t, w)["details"], "LaTeX Error")

	jobID := w.Header().Get("X-Render-Job")
	require.NotEmpty(t, jobID)
	w = do(r, http.MethodGet, "/render/jobs/"+jobID, "")
	assert.Equal(t, render.StatusError, decode(t, w)["status"])

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/render/jobs/unknown", "").Code)
}

func TestClassifyFallsBackToInternalError(t *testing.T) {
	status, body := classify(errors.New("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", body["error"])

	status, _ = classify(render.ErrBusy)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}
