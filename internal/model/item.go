package model

import (
	"fmt"
	"time"
)

// Source records which ingestion path produced a FoodItem.
// Callers never choose it; the service sets it per endpoint.
type Source string

const (
	SourceManual  Source = "manual"
	SourceBarcode Source = "barcode"
	SourceVision  Source = "vision"
)

// Valid reports whether s is one of the three known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceManual, SourceBarcode, SourceVision:
		return true
	}
	return false
}

// DefaultQuantity is applied when a draft is created without a quantity.
const DefaultQuantity = 1

// FoodItem is the canonical item record. Manual entry, barcode lookup and
// image analysis all converge on this shape before anything is persisted.
//
// An unpersisted FoodItem (a "draft") has an empty ID and OwnerID; the store
// fills in ID, OwnerID and AddedAt on insert.
//
// Optional columns are pointers so that "absent" (nil) and "empty string"
// stay distinguishable all the way to the database and back.
type FoodItem struct {
	ID             string    `json:"id,omitempty"`
	Name           string    `json:"name"`
	Barcode        *string   `json:"barcode"`
	Category       *string   `json:"category"`
	Quantity       int       `json:"quantity"`
	ExpirationDate *Date     `json:"expiration_date"`
	ImageURL       *string   `json:"image_url"`
	Source         Source    `json:"source"`
	AddedAt        time.Time `json:"added_at,omitzero"`
	OwnerID        string    `json:"owner_id,omitempty"`
}

// NewDraft returns an unpersisted item with the default quantity.
func NewDraft(name string, source Source) FoodItem {
	return FoodItem{
		Name:     name,
		Quantity: DefaultQuantity,
		Source:   source,
	}
}

// RecordID and RecordOwner let the generic owner-scoped repository work with FoodItem.
func (i FoodItem) RecordID() string    { return i.ID }
func (i FoodItem) RecordOwner() string { return i.OwnerID }

// ExpiresWithin reports whether the item has an expiration date inside
// [from, to], both bounds included. Items without a date never match.
func (i FoodItem) ExpiresWithin(from, to Date) bool {
	if i.ExpirationDate == nil {
		return false
	}
	d := *i.ExpirationDate
	return !d.Before(from) && !d.After(to)
}

func (i FoodItem) String() string {
	return fmt.Sprintf("FoodItem(%s %q %s)", i.ID, i.Name, i.Source)
}

// ItemPatch is a partial update. Only fields whose Set flag is true are
// applied; a JSON null on an optional column clears it.
type ItemPatch struct {
	Name           Optional[string] `json:"name"`
	Barcode        Optional[string] `json:"barcode"`
	Category       Optional[string] `json:"category"`
	Quantity       Optional[int]    `json:"quantity"`
	ExpirationDate Optional[Date]   `json:"expiration_date"`
	ImageURL       Optional[string] `json:"image_url"`
}

// Empty reports whether the patch would change nothing.
func (p ItemPatch) Empty() bool {
	return !p.Name.Set && !p.Barcode.Set && !p.Category.Set &&
		!p.Quantity.Set && !p.ExpirationDate.Set && !p.ImageURL.Set
}

// Apply merges the present fields of p into item. ID, OwnerID, Source and
// AddedAt are never touched.
func (p ItemPatch) Apply(item *FoodItem) {
	if p.Name.Set && !p.Name.Null {
		item.Name = p.Name.Value
	}
	if p.Quantity.Set && !p.Quantity.Null {
		item.Quantity = p.Quantity.Value
	}
	if p.Barcode.Set {
		item.Barcode = p.Barcode.Ptr()
	}
	if p.Category.Set {
		item.Category = p.Category.Ptr()
	}
	if p.ExpirationDate.Set {
		item.ExpirationDate = p.ExpirationDate.Ptr()
	}
	if p.ImageURL.Set {
		item.ImageURL = p.ImageURL.Ptr()
	}
}

// ItemFilter narrows a list of one owner's items. The zero value matches everything.
type ItemFilter struct {
	Category *string
	Barcode  *string
	// ExpiresFrom and ExpiresTo bound the expiration date, both inclusive.
	// Setting either excludes items with no expiration date.
	ExpiresFrom *Date
	ExpiresTo   *Date
}

// Matches reports whether item passes the filter. The SQL store translates the
// same rules into a WHERE clause; this is used by in-memory stores.
func (f ItemFilter) Matches(item FoodItem) bool {
	if f.Category != nil && (item.Category == nil || *item.Category != *f.Category) {
		return false
	}
	if f.Barcode != nil && (item.Barcode == nil || *item.Barcode != *f.Barcode) {
		return false
	}
	if f.ExpiresFrom != nil || f.ExpiresTo != nil {
		if item.ExpirationDate == nil {
			return false
		}
		if f.ExpiresFrom != nil && item.ExpirationDate.Before(*f.ExpiresFrom) {
			return false
		}
		if f.ExpiresTo != nil && item.ExpirationDate.After(*f.ExpiresTo) {
			return false
		}
	}
	return true
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string { return &s }
