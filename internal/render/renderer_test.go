package render

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/roSievers/worksheet-elm/internal/sheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompiler writes pdf to dst, or fails as configured.
type fakeCompiler struct {
	pdf      []byte
	err      error
	noOutput bool
	block    chan struct{}

	mu      sync.Mutex
	sources []string
}

func (f *fakeCompiler) Compile(ctx context.Context, src, dst string) error {
	doc, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.sources = append(f.sources, string(doc))
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return &CompileError{ExitCode: -1, TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded), Err: ctx.Err()}
		}
	}
	if f.err != nil {
		return f.err
	}
	if f.noOutput {
		return nil
	}
	return os.WriteFile(dst, f.pdf, 0o600)
}

func twoExerciseSheet() *sheet.ResolvedSheet {
	return &sheet.ResolvedSheet{
		ID:    3,
		Title: "Sheet",
		Exercises: []sheet.Exercise{
			{ID: 1, Title: "A", Text: "first"},
			{ID: 2, Title: "B", Text: "second"},
		},
	}
}

func workspaces(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), dirPrefix) {
			out = append(out, e.Name())
		}
	}
	return out
}

func TestRenderStreamsPDFAndCleansUp(t *testing.T) {
	work := t.TempDir()
	pdf := []byte("%PDF-1.5 fake body")
	fc := &fakeCompiler{pdf: pdf}
	r := NewRenderer(fc, Options{WorkDir: work, Timeout: time.Second, MaxConcurrent: 1})

	out, err := r.Render(context.Background(), twoExerciseSheet())
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(out.Dir(), outputName))
	require.NoError(t, err)
	assert.Equal(t, info.Size(), out.Size(), "declared length matches the file on disk")

	got, err := io.ReadAll(out)
	require.NoError(t, err)
	assert.Equal(t, pdf, got)
	assert.Contains(t, fc.sources[0], "# A\n\nfirst\n\n# B\n\nsecond\n")

	require.Len(t, workspaces(t, work), 1)
	require.NoError(t, out.Close())
	assert.Empty(t, workspaces(t, work), "workspace removed on Close")
}

func TestRenderSectionDoesNotDisturbRead(t *testing.T) {
	fc := &fakeCompiler{pdf: []byte("0123456789")}
	r := NewRenderer(fc, Options{WorkDir: t.TempDir()})
	out, err := r.Render(context.Background(), twoExerciseSheet())
	require.NoError(t, err)
	defer out.Close()

	archived, err := io.ReadAll(out.Section())
	require.NoError(t, err)
	streamed, err := io.ReadAll(out)
	require.NoError(t, err)
	assert.Equal(t, archived, streamed)
}

func TestRenderWorkspacesAreUnique(t *testing.T) {
	work := t.TempDir()
	r := NewRenderer(&fakeCompiler{pdf: []byte("%PDF")}, Options{WorkDir: work, MaxConcurrent: 4})

	var wg sync.WaitGroup
	outs := make([]*Output, 4)
	for i := range outs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := r.Render(context.Background(), twoExerciseSheet())
			assert.NoError(t, err)
			outs[i] = out
		}()
	}
	wg.Wait()

	dirs := map[string]bool{}
	for _, o := range outs {
		require.NotNil(t, o)
		dirs[o.Dir()] = true
		require.NoError(t, o.Close())
	}
	assert.Len(t, dirs, 4)
	assert.Empty(t, workspaces(t, work))
}

func TestRenderCompilerFailure(t *testing.T) {
	work := t.TempDir()
	fc := &fakeCompiler{err: &CompileError{ExitCode: 43, Output: "! Undefined control sequence."}}
	r := NewRenderer(fc, Options{WorkDir: work})

	out, err := r.Render(context.Background(), twoExerciseSheet())
	require.Nil(t, out)
	require.ErrorIs(t, err, ErrRenderFailed)
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 43, ce.ExitCode)
	assert.Contains(t, err.Error(), "Undefined control sequence")
	assert.Empty(t, workspaces(t, work), "workspace removed on failure")
}

func TestRenderPlainCompilerErrorIsRenderFailure(t *testing.T) {
	r := NewRenderer(&fakeCompiler{err: errors.New("boom")}, Options{WorkDir: t.TempDir()})
	_, err := r.Render(context.Background(), twoExerciseSheet())
	require.ErrorIs(t, err, ErrRenderFailed)
}

func TestRenderMissingOutput(t *testing.T) {
	work := t.TempDir()
	r := NewRenderer(&fakeCompiler{noOutput: true}, Options{WorkDir: work})

	_, err := r.Render(context.Background(), twoExerciseSheet())
	require.ErrorIs(t, err, ErrRenderFailed)
	assert.Contains(t, err.Error(), "no output")
	assert.Empty(t, workspaces(t, work))
}

func TestRenderTimeout(t *testing.T) {
	work := t.TempDir()
	fc := &fakeCompiler{block: make(chan struct{})}
	r := NewRenderer(fc, Options{WorkDir: work, Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := r.Render(context.Background(), twoExerciseSheet())
	require.ErrorIs(t, err, ErrRenderFailed)
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.TimedOut)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Empty(t, workspaces(t, work))
}

func TestRenderBusy(t *testing.T) {
	fc := &fakeCompiler{pdf: []byte("%PDF"), block: make(chan struct{})}
	r := NewRenderer(fc, Options{WorkDir: t.TempDir(), Timeout: 10 * time.Second, MaxConcurrent: 1})

	done := make(chan *Output)
	go func() {
		out, _ := r.Render(context.Background(), twoExerciseSheet())
		done <- out
	}()
	require.Eventually(t, func() bool {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		return len(fc.sources) == 1
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := r.Render(ctx, twoExerciseSheet())
	require.ErrorIs(t, err, ErrBusy)

	close(fc.block)
	out := <-done
	require.NotNil(t, out)
	require.NoError(t, out.Close())
}
