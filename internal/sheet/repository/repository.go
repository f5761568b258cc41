// Package repository persists exercises and sheets. Every backend keeps the
// record id as store metadata and projects it into the record as "id" (JSON)
// or "_id" (BSON) when reading.
package repository

import (
	"context"
	"errors"
	"fmt"
)

// Collection names one independent id space.
type Collection string

const (
	Exercises Collection = "exercises"
	Sheets    Collection = "sheets"
)

// Collections lists every collection a store serves.
var Collections = []Collection{Exercises, Sheets}

var (
	ErrNotFound          = errors.New("record not found")
	ErrUnknownCollection = errors.New("unknown collection")
)

// NotFoundError identifies the missing record. It matches ErrNotFound.
type NotFoundError struct {
	Collection Collection
	ID         int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Collection, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Fields are top-level keys merged into an existing record by Update.
type Fields map[string]any

// Store is the record store shared by the service layer. out arguments follow
// the encoding/json convention: Get takes a pointer to a record struct, List a
// pointer to a slice of them.
type Store interface {
	Get(ctx context.Context, c Collection, id int, out any) error
	// Insert stores rec under the next unused id of c and returns that id.
	// Any id carried by rec itself is ignored.
	Insert(ctx context.Context, c Collection, rec any) (int, error)
	// Update merges fields into the record at id. Keys not in fields are
	// left untouched. A missing record is reported as *NotFoundError.
	Update(ctx context.Context, c Collection, id int, fields Fields) error
	// List decodes every record of c in ascending id order.
	List(ctx context.Context, c Collection, out any) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func checkCollection(c Collection) error {
	for _, known := range Collections {
		if c == known {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownCollection, c)
}
