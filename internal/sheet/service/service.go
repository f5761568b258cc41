package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/roSievers/worksheet-elm/internal/sheet"
	"github.com/roSievers/worksheet-elm/internal/sheet/repository"
)

var (
	ErrNotFound  = repository.ErrNotFound
	ErrInvalidID = errors.New("invalid id")
)

// Service defines the exercise and sheet operations used by the handler layer.
type Service interface {
	GetExercise(ctx context.Context, id int) (*sheet.Exercise, error)
	// SaveExercise creates an exercise when id is sheet.NewID and otherwise
	// updates the existing one. It returns the stored record.
	SaveExercise(ctx context.Context, id int, in sheet.ExerciseInput) (*sheet.Exercise, error)
	ListExercises(ctx context.Context) ([]sheet.Exercise, error)

	// GetSheet loads a sheet and resolves its content into exercises.
	GetSheet(ctx context.Context, id int) (*sheet.ResolvedSheet, error)
	// SaveSheet creates or updates a sheet like SaveExercise and returns its id.
	SaveSheet(ctx context.Context, id int, in sheet.SheetInput) (int, error)
	ListSheets(ctx context.Context) ([]sheet.SheetSummary, error)

	Ping(ctx context.Context) error
}

// New returns a Service backed by the given record store.
func New(store repository.Store) Service {
	return &storeService{store: store, resolver: NewResolver(store)}
}

type storeService struct {
	store    repository.Store
	resolver *Resolver
}

func (s *storeService) GetExercise(ctx context.Context, id int) (*sheet.Exercise, error) {
	var e sheet.Exercise
	if err := s.store.Get(ctx, repository.Exercises, id, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *storeService) SaveExercise(ctx context.Context, id int, in sheet.ExerciseInput) (*sheet.Exercise, error) {
	id, err := s.save(ctx, repository.Exercises, id, in, repository.Fields{"title": in.Title, "text": in.Text})
	if err != nil {
		return nil, err
	}
	return s.GetExercise(ctx, id)
}

func (s *storeService) ListExercises(ctx context.Context) ([]sheet.Exercise, error) {
	out := []sheet.Exercise{}
	if err := s.store.List(ctx, repository.Exercises, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *storeService) GetSheet(ctx context.Context, id int) (*sheet.ResolvedSheet, error) {
	return s.resolver.Resolve(ctx, id)
}

func (s *storeService) SaveSheet(ctx context.Context, id int, in sheet.SheetInput) (int, error) {
	if in.Content == nil {
		in.Content = []int{}
	}
	return s.save(ctx, repository.Sheets, id, in, repository.Fields{"title": in.Title, "content": in.Content})
}

func (s *storeService) ListSheets(ctx context.Context) ([]sheet.SheetSummary, error) {
	out := []sheet.SheetSummary{}
	if err := s.store.List(ctx, repository.Sheets, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *storeService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// save inserts rec when id is the create sentinel and merges fields into the
// existing record otherwise.
func (s *storeService) save(ctx context.Context, c repository.Collection, id int, rec any, fields repository.Fields) (int, error) {
	switch {
	case id == sheet.NewID:
		newID, err := s.store.Insert(ctx, c, rec)
		if err != nil {
			return 0, fmt.Errorf("create %s: %w", c, err)
		}
		return newID, nil
	case id < 0:
		return 0, fmt.Errorf("%w: %d", ErrInvalidID, id)
	default:
		if err := s.store.Update(ctx, c, id, fields); err != nil {
			return 0, fmt.Errorf("update %s: %w", c, err)
		}
		return id, nil
	}
}
