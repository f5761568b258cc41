package service

import (
	"context"
	"fmt"

	"github.com/roSievers/worksheet-elm/internal/sheet"
	"github.com/roSievers/worksheet-elm/internal/sheet/repository"
	"golang.org/x/sync/errgroup"
)

// resolveParallelism bounds concurrent exercise lookups for one sheet.
const resolveParallelism = 8

// Resolver joins a sheet with the exercises its content references.
type Resolver struct {
	store repository.Store
}

func NewResolver(store repository.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve loads sheet id and every exercise in its content. The result keeps
// content order and length, duplicates included. If any referenced exercise
// is missing the whole call fails with that exercise's not-found error.
func (r *Resolver) Resolve(ctx context.Context, id int) (*sheet.ResolvedSheet, error) {
	var s sheet.Sheet
	if err := r.store.Get(ctx, repository.Sheets, id, &s); err != nil {
		return nil, err
	}
	if s.Content == nil {
		s.Content = []int{}
	}

	exercises := make([]sheet.Exercise, len(s.Content))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveParallelism)
	for i, eid := range s.Content {
		i, eid := i, eid
		g.Go(func() error {
			return r.store.Get(gctx, repository.Exercises, eid, &exercises[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolve sheet %d: %w", id, err)
	}

	return &sheet.ResolvedSheet{
		ID:        s.ID,
		Title:     s.Title,
		Content:   s.Content,
		Exercises: exercises,
	}, nil
}
