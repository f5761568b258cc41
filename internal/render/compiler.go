package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// maxCompilerOutput caps the compiler output kept for error reports.
const maxCompilerOutput = 64 << 10

// Compiler converts the document at src into a PDF at dst.
type Compiler interface {
	Compile(ctx context.Context, src, dst string) error
}

// CompileError reports a compiler run that did not succeed.
type CompileError struct {
	ExitCode int
	TimedOut bool
	Output   string
	Err      error
}

func (e *CompileError) Error() string {
	var msg string
	switch {
	case e.TimedOut:
		msg = "document compiler timed out"
	case e.ExitCode >= 0:
		msg = fmt.Sprintf("document compiler exited with code %d", e.ExitCode)
	default:
		msg = fmt.Sprintf("document compiler failed: %v", e.Err)
	}
	if out := lastLines(e.Output, 5); out != "" {
		msg += ": " + out
	}
	return msg
}

// Unwrap lets callers match any compiler failure with ErrRenderFailed.
func (e *CompileError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRenderFailed}
	}
	return []error{ErrRenderFailed, e.Err}
}

// PandocCompiler runs pandoc (or a compatible binary) with a fixed PDF engine:
//
//	<Binary> <src> --pdf-engine=<Engine> -o <dst>
type PandocCompiler struct {
	Binary string
	Engine string
	// WaitDelay bounds how long a killed process may keep its output pipes open.
	WaitDelay time.Duration
}

func NewPandocCompiler(binary, engine string) *PandocCompiler {
	return &PandocCompiler{Binary: binary, Engine: engine, WaitDelay: 2 * time.Second}
}

func (p *PandocCompiler) Compile(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, p.Binary, src, "--pdf-engine="+p.Engine, "-o", dst)
	cmd.Dir = filepath.Dir(src)
	cmd.WaitDelay = p.WaitDelay

	out := &limitedBuffer{max: maxCompilerOutput}
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	if err == nil {
		return nil
	}
	ce := &CompileError{ExitCode: -1, Output: out.String(), Err: err}
	if ctxErr := ctx.Err(); ctxErr != nil {
		ce.TimedOut = errors.Is(ctxErr, context.DeadlineExceeded)
		ce.Err = ctxErr
		return ce
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		ce.ExitCode = exitErr.ExitCode()
		ce.Err = nil
	}
	return ce
}

// limitedBuffer keeps the first max bytes written and silently drops the rest.
type limitedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if room := l.max - l.buf.Len(); room > 0 {
		if len(p) > room {
			l.buf.Write(p[:room])
			l.truncated = true
		} else {
			l.buf.Write(p)
		}
	} else if len(p) > 0 {
		l.truncated = true
	}
	return len(p), nil
}

func (l *limitedBuffer) String() string {
	if l.truncated {
		return l.buf.String() + "\n[output truncated]"
	}
	return l.buf.String()
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}
