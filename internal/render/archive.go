package render

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/roSievers/worksheet-elm/pkg/logger"
)

// presignTTL is the lifetime of download URLs handed out for archived PDFs.
const presignTTL = 15 * time.Minute

// ObjectStore holds archived PDFs. storage.MinIOStorage implements it.
type ObjectStore interface {
	UploadFile(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	GetPresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Archiver records every render attempt and, when an object store is
// configured, keeps a copy of each successful PDF.
type Archiver struct {
	jobs    JobStore
	objects ObjectStore
	now     func() time.Time
}

// NewArchiver returns an Archiver; objects may be nil.
func NewArchiver(jobs JobStore, objects ObjectStore) *Archiver {
	return &Archiver{jobs: jobs, objects: objects, now: time.Now}
}

// Record stores the outcome of rendering sheetID. out is nil when renderErr
// is set. Archive problems are logged and never fail the render itself.
func (a *Archiver) Record(ctx context.Context, sheetID int, out *Output, renderErr error) *Job {
	now := a.now().UTC()
	j := &Job{JobID: uuid.NewString(), SheetID: sheetID, CreatedAt: now, UpdatedAt: now}
	if renderErr != nil {
		j.Status = StatusError
		j.Error = renderErr.Error()
	} else {
		j.Status = StatusReady
		j.Size = out.Size()
		if a.objects != nil {
			key := fmt.Sprintf("sheets/%d/%s.pdf", sheetID, j.JobID)
			if err := a.objects.UploadFile(ctx, key, out.Section(), out.Size(), "application/pdf"); err != nil {
				logger.Warnf("archive render %s of sheet %d: %v", j.JobID, sheetID, err)
			} else {
				j.PDFKey = key
			}
		}
	}
	if err := a.jobs.Save(ctx, j); err != nil {
		logger.Warnf("save render job %s: %v", j.JobID, err)
	}
	return j
}

// JobView is a job plus a temporary download URL for its archived PDF.
type JobView struct {
	*Job
	URL string `json:"url,omitempty"`
}

// Lookup returns the job with a presigned URL when the PDF was archived.
func (a *Archiver) Lookup(ctx context.Context, jobID string) (*JobView, error) {
	j, err := a.jobs.Load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	v := &JobView{Job: j}
	if j.PDFKey != "" && a.objects != nil {
		u, err := a.objects.GetPresignedURL(ctx, j.PDFKey, presignTTL)
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", j.PDFKey, err)
		}
		v.URL = u
	}
	return v, nil
}
