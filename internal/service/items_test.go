package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sakif/metapantry/internal/access"
	"github.com/sakif/metapantry/internal/apperror"
	"github.com/sakif/metapantry/internal/model"
	"github.com/sakif/metapantry/internal/repository"
	"github.com/sakif/metapantry/internal/repository/memory"
)

// =========================================================================
// HELPERS
// =========================================================================

var (
	alice = access.Caller{UserID: "alice"}
	bob   = access.Caller{UserID: "bob"}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedNow pins "today" to 2026-10-14.
func fixedNow() time.Time {
	return time.Date(2026, time.October, 14, 9, 0, 0, 0, time.Local)
}

func newTestItemService(t *testing.T) (*ItemService, *memory.Store) {
	t.Helper()
	store := memory.New()
	items := repository.NewScoped[model.FoodItem, model.ItemFilter](store, "food item")
	return NewItemService(items, fixedNow, discardLogger()), store
}

func datePtr(s string) *model.Date {
	d := model.MustParseDate(s)
	return &d
}

func mustCreate(t *testing.T, svc *ItemService, caller access.Caller, item model.FoodItem) *model.FoodItem {
	t.Helper()
	created, err := svc.Create(context.Background(), caller, item)
	if err != nil {
		t.Fatalf("Create(%q) error = %v", item.Name, err)
	}
	return created
}

func names(items []model.FoodItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func equalNames(got []model.FoodItem, want ...string) bool {
	return fmt.Sprint(names(got)) == fmt.Sprint(want)
}

// =========================================================================
// Create TESTS
// =========================================================================

func TestCreate_DefaultsToManualSource(t *testing.T) {
	svc, _ := newTestItemService(t)

	item := mustCreate(t, svc, alice, model.FoodItem{Name: "  Eggs ", Quantity: 12})

	if item.Source != model.SourceManual {
		t.Errorf("Source = %q, want manual", item.Source)
	}
	if item.Name != "Eggs" {
		t.Errorf("Name = %q, want trimmed", item.Name)
	}
	if item.OwnerID != "alice" || item.ID == "" {
		t.Errorf("owner/id = %q/%q", item.OwnerID, item.ID)
	}
}

func TestCreate_KeepsIngestSource(t *testing.T) {
	svc, _ := newTestItemService(t)

	item := mustCreate(t, svc, alice, model.NewDraft("Milk", model.SourceVision))
	if item.Source != model.SourceVision {
		t.Errorf("Source = %q, want vision", item.Source)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestItemService(t)
	long := make([]rune, MaxNameLength+1)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name  string
		item  model.FoodItem
		field string
	}{
		{"blank name", model.FoodItem{Name: "   "}, "name"},
		{"long name", model.FoodItem{Name: string(long)}, "name"},
		{"negative quantity", model.FoodItem{Name: "Rice", Quantity: -1}, "quantity"},
		{"unknown source", model.FoodItem{Name: "Rice", Source: "fridge"}, "source"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), alice, tt.item)
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Create() error = %v, want validation error", err)
			}
			if appErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.field)
			}
		})
	}
}

func TestCreate_ZeroQuantityAllowed(t *testing.T) {
	svc, _ := newTestItemService(t)
	item := mustCreate(t, svc, alice, model.FoodItem{Name: "Butter", Quantity: 0})
	if item.Quantity != 0 {
		t.Errorf("Quantity = %d, want 0", item.Quantity)
	}
}

func TestCreate_StoreDown(t *testing.T) {
	svc, store := newTestItemService(t)
	store.Err = errors.New("disk full")

	_, err := svc.Create(context.Background(), alice, model.FoodItem{Name: "Rice"})
	if !errors.Is(err, apperror.ErrStorageUnavailable) {
		t.Errorf("Create() error = %v, want storage unavailable", err)
	}
}

// =========================================================================
// List / ExpiringSoon TESTS
// =========================================================================

func TestListParams_Options(t *testing.T) {
	tests := []struct {
		in   ListParams
		want repository.ListOptions
	}{
		{ListParams{}, repository.ListOptions{Limit: DefaultListLimit}},
		{ListParams{Limit: 5, Skip: 10}, repository.ListOptions{Limit: 5, Offset: 10}},
		{ListParams{Limit: 5000}, repository.ListOptions{Limit: MaxListLimit}},
		{ListParams{Limit: -3, Skip: -1}, repository.ListOptions{Limit: DefaultListLimit}},
	}
	for _, tt := range tests {
		if got := tt.in.options(); got != tt.want {
			t.Errorf("%+v.options() = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestList_OnlyCallersItemsWithFilters(t *testing.T) {
	svc, _ := newTestItemService(t)
	ctx := context.Background()

	mustCreate(t, svc, alice, model.FoodItem{Name: "Milk", Category: model.StringPtr("Dairy")})
	mustCreate(t, svc, bob, model.FoodItem{Name: "Cheese", Category: model.StringPtr("Dairy")})
	mustCreate(t, svc, alice, model.FoodItem{Name: "Apple", Category: model.StringPtr("Produce"), Barcode: model.StringPtr("123")})
	mustCreate(t, svc, alice, model.FoodItem{Name: "Yogurt", Category: model.StringPtr("Dairy")})

	all, err := svc.List(ctx, alice, ListParams{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !equalNames(all, "Milk", "Apple", "Yogurt") {
		t.Errorf("List() = %v", names(all))
	}

	dairy, _ := svc.List(ctx, alice, ListParams{Category: model.StringPtr("Dairy")})
	if !equalNames(dairy, "Milk", "Yogurt") {
		t.Errorf("List(category=Dairy) = %v", names(dairy))
	}

	byCode, _ := svc.List(ctx, alice, ListParams{Barcode: model.StringPtr("123")})
	if !equalNames(byCode, "Apple") {
		t.Errorf("List(barcode=123) = %v", names(byCode))
	}

	page, _ := svc.List(ctx, alice, ListParams{Skip: 1, Limit: 1})
	if !equalNames(page, "Apple") {
		t.Errorf("List(skip=1,limit=1) = %v", names(page))
	}
}

func TestList_SkipPastEnd(t *testing.T) {
	svc, _ := newTestItemService(t)
	mustCreate(t, svc, alice, model.FoodItem{Name: "Milk"})

	items, err := svc.List(context.Background(), alice, ListParams{Skip: 50})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("List() = %#v, want empty non-nil slice", items)
	}
}

func TestList_DefaultLimit(t *testing.T) {
	svc, _ := newTestItemService(t)
	for i := range DefaultListLimit + 5 {
		mustCreate(t, svc, alice, model.FoodItem{Name: fmt.Sprintf("item-%d", i)})
	}

	items, err := svc.List(context.Background(), alice, ListParams{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != DefaultListLimit {
		t.Errorf("len(List()) = %d, want %d", len(items), DefaultListLimit)
	}
}

func TestExpiringSoon_InclusiveWindow(t *testing.T) {
	svc, _ := newTestItemService(t)

	mustCreate(t, svc, alice, model.FoodItem{Name: "yesterday", ExpirationDate: datePtr("2026-10-13")})
	mustCreate(t, svc, alice, model.FoodItem{Name: "today", ExpirationDate: datePtr("2026-10-14")})
	mustCreate(t, svc, alice, model.FoodItem{Name: "no date"})
	mustCreate(t, svc, alice, model.FoodItem{Name: "day seven", ExpirationDate: datePtr("2026-10-21")})
	mustCreate(t, svc, alice, model.FoodItem{Name: "day eight", ExpirationDate: datePtr("2026-10-22")})
	mustCreate(t, svc, bob, model.FoodItem{Name: "bob today", ExpirationDate: datePtr("2026-10-14")})

	items, err := svc.ExpiringSoon(context.Background(), alice, 7, ListParams{})
	if err != nil {
		t.Fatalf("ExpiringSoon() error = %v", err)
	}
	if !equalNames(items, "today", "day seven") {
		t.Errorf("ExpiringSoon(7) = %v, want [today day seven]", names(items))
	}

	items, _ = svc.ExpiringSoon(context.Background(), alice, 0, ListParams{})
	if !equalNames(items, "today") {
		t.Errorf("ExpiringSoon(0) = %v, want [today]", names(items))
	}
}

func TestExpiringSoon_NegativeDays(t *testing.T) {
	svc, _ := newTestItemService(t)
	_, err := svc.ExpiringSoon(context.Background(), alice, -1, ListParams{})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("ExpiringSoon(-1) error = %v, want validation error", err)
	}
}

// =========================================================================
// Get / Update / Delete TESTS
// =========================================================================

func TestGet_ForeignAndMissing(t *testing.T) {
	svc, _ := newTestItemService(t)
	item := mustCreate(t, svc, alice, model.FoodItem{Name: "Milk"})
	ctx := context.Background()

	if _, err := svc.Get(ctx, bob, item.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Get(bob) error = %v, want forbidden", err)
	}
	if _, err := svc.Get(ctx, alice, "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want not found", err)
	}
	if _, err := svc.Get(ctx, alice, " "); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Get(blank) error = %v, want validation error", err)
	}
	got, err := svc.Get(ctx, alice, item.ID)
	if err != nil || got.Name != "Milk" {
		t.Errorf("Get(alice) = %v, %v", got, err)
	}
}

func TestUpdate_QuantityOnly(t *testing.T) {
	svc, _ := newTestItemService(t)
	item := mustCreate(t, svc, alice, model.FoodItem{
		Name:           "Milk",
		Category:       model.StringPtr("Dairy"),
		Quantity:       1,
		ExpirationDate: datePtr("2026-10-20"),
	})

	updated, err := svc.Update(context.Background(), alice, item.ID, model.ItemPatch{Quantity: model.Some(3)})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if updated.Quantity != 3 {
		t.Errorf("Quantity = %d, want 3", updated.Quantity)
	}
	if updated.Name != "Milk" || *updated.Category != "Dairy" || *updated.ExpirationDate != model.MustParseDate("2026-10-20") {
		t.Errorf("other fields changed: %+v", updated)
	}
	if updated.Source != model.SourceManual || !updated.AddedAt.Equal(item.AddedAt) {
		t.Errorf("source/added_at changed: %+v", updated)
	}
}

func TestUpdate_Validation(t *testing.T) {
	svc, _ := newTestItemService(t)
	item := mustCreate(t, svc, alice, model.FoodItem{Name: "Milk"})

	for name, patch := range map[string]model.ItemPatch{
		"null name":         {Name: model.Null[string]()},
		"blank name":        {Name: model.Some("  ")},
		"null quantity":     {Quantity: model.Null[int]()},
		"negative quantity": {Quantity: model.Some(-2)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Update(context.Background(), alice, item.ID, patch)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Update() error = %v, want validation error", err)
			}
		})
	}
}

func TestUpdate_ClearsCategory(t *testing.T) {
	svc, _ := newTestItemService(t)
	item := mustCreate(t, svc, alice, model.FoodItem{Name: "Milk", Category: model.StringPtr("Dairy")})

	updated, err := svc.Update(context.Background(), alice, item.ID, model.ItemPatch{Category: model.Null[string]()})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Category != nil {
		t.Errorf("Category = %q, want nil", *updated.Category)
	}
}

func TestUpdateDelete_Foreign(t *testing.T) {
	svc, _ := newTestItemService(t)
	item := mustCreate(t, svc, alice, model.FoodItem{Name: "Milk", Quantity: 1})
	ctx := context.Background()

	if _, err := svc.Update(ctx, bob, item.ID, model.ItemPatch{Quantity: model.Some(9)}); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Update(bob) error = %v, want forbidden", err)
	}
	if _, err := svc.Delete(ctx, bob, item.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Delete(bob) error = %v, want forbidden", err)
	}

	got, _ := svc.Get(ctx, alice, item.ID)
	if got.Quantity != 1 {
		t.Errorf("Quantity = %d after foreign update, want 1", got.Quantity)
	}
}

func TestDelete_ReturnsPriorState(t *testing.T) {
	svc, _ := newTestItemService(t)
	item := mustCreate(t, svc, alice, model.FoodItem{Name: "Milk"})
	ctx := context.Background()

	deleted, err := svc.Delete(ctx, alice, item.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deleted.ID != item.ID || deleted.Name != "Milk" {
		t.Errorf("Delete() = %+v", deleted)
	}
	if _, err := svc.Get(ctx, alice, item.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want not found", err)
	}
}
