package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Job statuses.
const (
	StatusReady = "ready"
	StatusError = "error"
)

var ErrJobNotFound = errors.New("render job not found")

// Job is the metadata of one render attempt.
type Job struct {
	JobID     string    `bson:"jobId" json:"jobId"`
	SheetID   int       `bson:"sheetId" json:"sheetId"`
	Status    string    `bson:"status" json:"status"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
	Size      int64     `bson:"size,omitempty" json:"size,omitempty"`
	PDFKey    string    `bson:"pdfKey,omitempty" json:"pdfKey,omitempty"`
	Error     string    `bson:"error,omitempty" json:"error,omitempty"`
}

// JobStore persists render job metadata.
type JobStore interface {
	Save(ctx context.Context, j *Job) error
	// Load returns ErrJobNotFound for unknown ids.
	Load(ctx context.Context, jobID string) (*Job, error)
}

// MemoryJobStore keeps jobs for the lifetime of the process.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]Job)}
}

func (m *MemoryJobStore) Save(_ context.Context, j *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.JobID] = *j
	return nil
}

func (m *MemoryJobStore) Load(_ context.Context, jobID string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &j, nil
}

// MongoJobStore upserts jobs into a collection keyed by jobId.
type MongoJobStore struct {
	col *mongo.Collection
}

func NewMongoJobStore(ctx context.Context, col *mongo.Collection) (*MongoJobStore, error) {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "jobId", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, fmt.Errorf("render jobs index: %w", err)
	}
	return &MongoJobStore{col: col}, nil
}

func (m *MongoJobStore) Save(ctx context.Context, j *Job) error {
	opts := options.Update().SetUpsert(true)
	if _, err := m.col.UpdateOne(ctx, bson.M{"jobId": j.JobID}, bson.M{"$set": j}, opts); err != nil {
		return fmt.Errorf("save render job: %w", err)
	}
	return nil
}

func (m *MongoJobStore) Load(ctx context.Context, jobID string) (*Job, error) {
	var j Job
	if err := m.col.FindOne(ctx, bson.M{"jobId": jobID}).Decode(&j); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("load render job: %w", err)
	}
	return &j, nil
}
