package repository

import (
	"context"
	"fmt"

	"github.com/sakif/metapantry/internal/access"
	"github.com/sakif/metapantry/internal/apperror"
)

// Scoped wraps a Store so every call is filtered and authorized by the
// caller's identity.
//
// Get, Update and Remove fail with apperror.ErrNotFound when no record has
// the ID and apperror.ErrForbidden when it belongs to someone else. The two
// are distinct kinds; the Forbidden message carries no record data.
type Scoped[T Record, F any] struct {
	store    Store[T, F]
	resource string
}

// NewScoped returns an owner-scoped view of store. resource names the entity
// in error messages, e.g. "food item".
func NewScoped[T Record, F any](store Store[T, F], resource string) *Scoped[T, F] {
	return &Scoped[T, F]{store: store, resource: resource}
}

// Create persists draft as a new record owned by caller and returns the
// stored record.
func (s *Scoped[T, F]) Create(ctx context.Context, draft T, caller access.Caller) (*T, error) {
	if caller.UserID == "" {
		return nil, apperror.Unauthorized("caller identity required")
	}
	rec := draft
	if err := s.store.Insert(ctx, &rec, caller.UserID); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Get returns the record with id if caller owns it.
func (s *Scoped[T, F]) Get(ctx context.Context, id string, caller access.Caller) (*T, error) {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.Authorize(*rec, caller) {
		return nil, apperror.Forbidden(fmt.Sprintf("not permitted to access this %s", s.resource))
	}
	return rec, nil
}

// List returns caller's records matching filter. Nothing owned by anyone else
// is ever read.
func (s *Scoped[T, F]) List(ctx context.Context, caller access.Caller, filter F, opts ListOptions) ([]T, error) {
	if caller.UserID == "" {
		return nil, apperror.Unauthorized("caller identity required")
	}
	return s.store.FindByOwner(ctx, caller.UserID, filter, opts)
}

// Update authorizes like Get, merges patch into the stored record and saves it.
func (s *Scoped[T, F]) Update(ctx context.Context, id string, caller access.Caller, patch Patch[T]) (*T, error) {
	rec, err := s.Get(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	patch.Apply(rec)
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Remove authorizes like Get, deletes the record and returns its prior state.
func (s *Scoped[T, F]) Remove(ctx context.Context, id string, caller access.Caller) (*T, error) {
	rec, err := s.Get(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return nil, err
	}
	return rec, nil
}
