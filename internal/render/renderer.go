package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/roSievers/worksheet-elm/internal/sheet"
	"github.com/roSievers/worksheet-elm/pkg/logger"
	"github.com/roSievers/worksheet-elm/pkg/metrics"
	"golang.org/x/sync/semaphore"
)

var (
	ErrRenderFailed = errors.New("render failed")
	ErrBusy         = errors.New("renderer busy")
)

const (
	sourceName = "sheet.md"
	outputName = "sheet.pdf"
	dirPrefix  = "worksheet-render-"
)

// Options configures a Renderer.
type Options struct {
	// WorkDir is the parent of per-render workspaces; empty means os.TempDir().
	WorkDir string
	// Timeout bounds a single compiler run.
	Timeout time.Duration
	// MaxConcurrent bounds concurrent compiler runs.
	MaxConcurrent int
}

// Renderer produces PDFs for resolved sheets.
type Renderer struct {
	compiler Compiler
	workDir  string
	timeout  time.Duration
	slots    *semaphore.Weighted
}

func NewRenderer(c Compiler, opts Options) *Renderer {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Renderer{
		compiler: c,
		workDir:  opts.WorkDir,
		timeout:  opts.Timeout,
		slots:    semaphore.NewWeighted(int64(opts.MaxConcurrent)),
	}
}

// Output is a rendered PDF backed by a file in a private workspace. Close
// releases the file and removes the workspace.
type Output struct {
	file *os.File
	size int64
	dir  string
}

func (o *Output) Read(p []byte) (int, error) { return o.file.Read(p) }

// Size is the byte size of the PDF at the time it was opened.
func (o *Output) Size() int64 { return o.size }

// Section returns an independent reader over the whole PDF; reading it does
// not move the offset used by Read.
func (o *Output) Section() *io.SectionReader { return io.NewSectionReader(o.file, 0, o.size) }

// Dir is the workspace holding the PDF until Close.
func (o *Output) Dir() string { return o.dir }

func (o *Output) Close() error {
	err := o.file.Close()
	if rmErr := os.RemoveAll(o.dir); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

// Render writes the sheet document into a fresh workspace, runs the compiler
// and opens the result. On error the workspace is already gone; on success
// the caller owns the Output and must Close it.
func (r *Renderer) Render(ctx context.Context, s *sheet.ResolvedSheet) (*Output, error) {
	if err := r.slots.Acquire(ctx, 1); err != nil {
		metrics.RenderFailures.WithLabelValues("busy").Inc()
		return nil, fmt.Errorf("%w: %v", ErrBusy, err)
	}
	defer r.slots.Release(1)

	dir, err := r.workspace()
	if err != nil {
		return nil, err
	}
	out, err := r.renderIn(ctx, dir, s)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return out, nil
}

func (r *Renderer) renderIn(ctx context.Context, dir string, s *sheet.ResolvedSheet) (*Output, error) {
	src := filepath.Join(dir, sourceName)
	dst := filepath.Join(dir, outputName)
	if err := os.WriteFile(src, Markdown(s), 0o600); err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := time.Now()
	err := r.compiler.Compile(cctx, src, dst)
	elapsed := time.Since(start)
	if err != nil {
		reason := "error"
		var ce *CompileError
		if errors.As(err, &ce) && ce.TimedOut {
			reason = "timeout"
		} else if errors.As(err, &ce) && ce.ExitCode >= 0 {
			reason = "exit"
		}
		metrics.RenderDuration.WithLabelValues("failure").Observe(elapsed.Seconds())
		metrics.RenderFailures.WithLabelValues(reason).Inc()
		logger.Warnf("render sheet %d failed after %s: %v", s.ID, elapsed, err)
		if !errors.Is(err, ErrRenderFailed) {
			err = fmt.Errorf("%w: %w", ErrRenderFailed, err)
		}
		return nil, err
	}

	f, err := os.Open(dst)
	if err != nil {
		metrics.RenderDuration.WithLabelValues("failure").Observe(elapsed.Seconds())
		metrics.RenderFailures.WithLabelValues("no_output").Inc()
		logger.Warnf("render sheet %d: compiler reported success but produced no output", s.ID)
		return nil, fmt.Errorf("%w: compiler produced no output: %v", ErrRenderFailed, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat output: %w", err)
	}
	metrics.RenderDuration.WithLabelValues("success").Observe(elapsed.Seconds())
	logger.Debugf("rendered sheet %d (%d bytes) in %s", s.ID, info.Size(), elapsed)
	return &Output{file: f, size: info.Size(), dir: dir}, nil
}

// workspace creates a private directory with an unguessable name.
func (r *Renderer) workspace() (string, error) {
	parent := r.workDir
	if parent == "" {
		parent = os.TempDir()
	}
	dir := filepath.Join(parent, dirPrefix+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return "", fmt.Errorf("create render workspace: %w", err)
	}
	return dir, nil
}
