// Package service contains the business logic layer of the pantry.
//
// THE THREE LAYERS:
//
//	Handler (HTTP)       -> decodes requests, writes responses, maps errors to status codes
//	Service (business)   -> validates, applies defaults, orchestrates normalizers and storage
//	Repository (storage) -> owner-scoped reads and writes
//
// Services never see *http.Request and never build SQL. Every item operation
// takes the verified access.Caller explicitly, and the only path to stored
// items is repository.ItemRepository, which authorizes each access.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/metapantry/internal/access"
	"github.com/sakif/metapantry/internal/apperror"
	"github.com/sakif/metapantry/internal/model"
	"github.com/sakif/metapantry/internal/repository"
)

const (
	MaxNameLength     = 255
	DefaultListLimit  = 100
	MaxListLimit      = 1000
	DefaultExpiryDays = 7
)

// ListParams mirrors the list query string. Nil filters match everything.
type ListParams struct {
	Skip     int
	Limit    int
	Category *string
	Barcode  *string
}

// options clamps pagination: limit <= 0 means the default, anything over
// MaxListLimit is capped, and a negative skip is treated as zero.
func (p ListParams) options() repository.ListOptions {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return repository.ListOptions{Limit: limit, Offset: max(p.Skip, 0)}
}

type ItemService struct {
	items  *repository.ItemRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewItemService returns an ItemService. now supplies "today" for the
// expiring-soon window; pass time.Now outside tests.
func NewItemService(items *repository.ItemRepository, now func() time.Time, logger *slog.Logger) *ItemService {
	return &ItemService{items: items, now: now, logger: logger}
}

// List returns the caller's items in insertion order, filtered by category
// and barcode when given.
func (s *ItemService) List(ctx context.Context, caller access.Caller, p ListParams) ([]model.FoodItem, error) {
	filter := model.ItemFilter{Category: p.Category, Barcode: p.Barcode}
	items, err := s.items.List(ctx, caller, filter, p.options())
	if err != nil {
		s.logStoreErr("listing food items", caller, err)
		return nil, fmt.Errorf("listing food items: %w", err)
	}
	return items, nil
}

// ExpiringSoon returns the caller's items whose expiration date lies in
// [today, today+days], both inclusive. Items without a date never appear.
func (s *ItemService) ExpiringSoon(ctx context.Context, caller access.Caller, days int, p ListParams) ([]model.FoodItem, error) {
	if days < 0 {
		return nil, apperror.ValidationFailed("days", "days must be zero or more")
	}
	today := model.DateOf(s.now())
	until := today.AddDays(days)
	filter := model.ItemFilter{ExpiresFrom: &today, ExpiresTo: &until}

	items, err := s.items.List(ctx, caller, filter, p.options())
	if err != nil {
		s.logStoreErr("listing expiring food items", caller, err)
		return nil, fmt.Errorf("listing expiring food items: %w", err)
	}
	return items, nil
}

func (s *ItemService) Get(ctx context.Context, caller access.Caller, id string) (*model.FoodItem, error) {
	if id = strings.TrimSpace(id); id == "" {
		return nil, apperror.ValidationFailed("id", "food item ID is required")
	}
	item, err := s.items.Get(ctx, id, caller)
	if err != nil {
		s.logStoreErr("getting food item", caller, err)
		return nil, err
	}
	return item, nil
}

// Create validates draft and persists it for caller. The draft's Source is
// kept as set by the calling path; an unset Source means manual entry.
func (s *ItemService) Create(ctx context.Context, caller access.Caller, draft model.FoodItem) (*model.FoodItem, error) {
	if draft.Source == "" {
		draft.Source = model.SourceManual
	}
	if !draft.Source.Valid() {
		return nil, apperror.ValidationFailed("source", fmt.Sprintf("unknown source %q", draft.Source))
	}
	draft.Name = strings.TrimSpace(draft.Name)
	if err := validateName(draft.Name); err != nil {
		return nil, err
	}
	if err := validateQuantity(draft.Quantity); err != nil {
		return nil, err
	}

	item, err := s.items.Create(ctx, draft, caller)
	if err != nil {
		s.logStoreErr("creating food item", caller, err)
		return nil, fmt.Errorf("creating food item: %w", err)
	}

	s.logger.Info("food item created",
		slog.String("id", item.ID),
		slog.String("owner_id", item.OwnerID),
		slog.String("source", string(item.Source)),
	)
	return item, nil
}

// Update applies patch to the caller's item. Only present fields change;
// name and quantity may not be cleared.
func (s *ItemService) Update(ctx context.Context, caller access.Caller, id string, patch model.ItemPatch) (*model.FoodItem, error) {
	if id = strings.TrimSpace(id); id == "" {
		return nil, apperror.ValidationFailed("id", "food item ID is required")
	}
	if patch.Name.Set {
		if patch.Name.Null {
			return nil, apperror.ValidationFailed("name", "name cannot be null")
		}
		patch.Name.Value = strings.TrimSpace(patch.Name.Value)
		if err := validateName(patch.Name.Value); err != nil {
			return nil, err
		}
	}
	if patch.Quantity.Set {
		if patch.Quantity.Null {
			return nil, apperror.ValidationFailed("quantity", "quantity cannot be null")
		}
		if err := validateQuantity(patch.Quantity.Value); err != nil {
			return nil, err
		}
	}

	item, err := s.items.Update(ctx, id, caller, patch)
	if err != nil {
		s.logStoreErr("updating food item", caller, err)
		return nil, fmt.Errorf("updating food item: %w", err)
	}

	s.logger.Info("food item updated", slog.String("id", item.ID))
	return item, nil
}

// Delete removes the caller's item and returns what was stored.
func (s *ItemService) Delete(ctx context.Context, caller access.Caller, id string) (*model.FoodItem, error) {
	if id = strings.TrimSpace(id); id == "" {
		return nil, apperror.ValidationFailed("id", "food item ID is required")
	}
	item, err := s.items.Remove(ctx, id, caller)
	if err != nil {
		s.logStoreErr("deleting food item", caller, err)
		return nil, fmt.Errorf("deleting food item: %w", err)
	}

	s.logger.Info("food item deleted", slog.String("id", id))
	return item, nil
}

// logStoreErr logs storage failures only. NotFound and Forbidden are normal
// answers, not errors worth an Error line.
func (s *ItemService) logStoreErr(op string, caller access.Caller, err error) {
	if !errors.Is(err, apperror.ErrStorageUnavailable) {
		return
	}
	s.logger.Error("store failure",
		slog.String("op", op),
		slog.String("user_id", caller.UserID),
		slog.String("error", err.Error()),
	)
}

func validateName(name string) error {
	if name == "" {
		return apperror.ValidationFailed("name", "name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return apperror.ValidationFailed("name",
			fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}
	return nil
}

func validateQuantity(q int) error {
	if q < 0 {
		return apperror.ValidationFailed("quantity", "quantity must be zero or more")
	}
	return nil
}
