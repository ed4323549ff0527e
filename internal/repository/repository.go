// Package repository defines the persistence contracts of the pantry.
//
// TWO LAYERS:
//
//	Store[T, F]  - unscoped CRUD over one entity type, implemented by sqlstore
//	Scoped[T, F] - the owner-scoped contract the service layer actually gets
//
// Scoped is the only path from a request to an owned record. Every operation
// that reaches an existing record runs access.Authorize first, so a service
// holding a *Scoped has no way to read or modify another user's data.
package repository

import (
	"context"

	"github.com/sakif/metapantry/internal/access"
	"github.com/sakif/metapantry/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// Record is an entity with an identifier and an owner.
type Record interface {
	access.Owned
	RecordID() string
}

// Patch is a partial update applied to a stored record in place.
type Patch[T any] interface {
	Apply(rec *T)
}

// Store is the unscoped persistence contract for an owned entity type.
//
// Implementations map a missing row to apperror.NotFound and any driver
// failure to apperror.StorageUnavailable.
type Store[T Record, F any] interface {
	// Insert assigns a new ID and creation timestamp, stamps ownerID and
	// writes rec. rec is updated in place.
	Insert(ctx context.Context, rec *T, ownerID string) error
	FindByID(ctx context.Context, id string) (*T, error)
	// FindByOwner returns ownerID's records matching filter in insertion order.
	// An offset past the end yields an empty slice.
	FindByOwner(ctx context.Context, ownerID string, filter F, opts ListOptions) ([]T, error)
	Save(ctx context.Context, rec *T) error
	Delete(ctx context.Context, id string) error
}

// ItemStore is the Store for food items.
type ItemStore = Store[model.FoodItem, model.ItemFilter]

// ItemRepository is the owner-scoped repository for food items.
type ItemRepository = Scoped[model.FoodItem, model.ItemFilter]

// UserRepository persists user accounts. Accounts are not owner-scoped.
type UserRepository interface {
	// CreateUser assigns an ID and writes u. Duplicate email or username
	// yields apperror.ErrConflict.
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// GetUserByLogin looks a user up by email or username.
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	// DeleteUser removes the user and every item they own in one transaction.
	DeleteUser(ctx context.Context, id string) error
}
