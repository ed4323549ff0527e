package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =========================================================================
// DATE TESTS
// =========================================================================

func TestDate_AddDaysAcrossMonthAndYear(t *testing.T) {
	tests := []struct {
		start string
		days  int
		want  string
	}{
		{"2026-10-14", 7, "2026-10-21"},
		{"2026-10-28", 5, "2026-11-02"},
		{"2026-12-30", 3, "2027-01-02"},
		{"2028-02-28", 1, "2028-02-29"},
		{"2026-10-14", -14, "2026-09-30"},
	}

	for _, tt := range tests {
		t.Run(tt.start, func(t *testing.T) {
			got := MustParseDate(tt.start).AddDays(tt.days)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestDateOf_DropsTimeOfDay(t *testing.T) {
	ts := time.Date(2026, time.October, 14, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, "2026-10-14", DateOf(ts).String())
}

func TestDate_JSON(t *testing.T) {
	d := MustParseDate("2026-10-14")

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2026-10-14"`, string(b))

	var back Date
	require.NoError(t, json.Unmarshal([]byte(`"2026-10-14"`), &back))
	assert.Equal(t, d, back)

	assert.Error(t, json.Unmarshal([]byte(`"14/10/2026"`), &back))
	assert.Error(t, json.Unmarshal([]byte(`20261014`), &back))
}

func TestDate_Scan(t *testing.T) {
	want := MustParseDate("2026-10-14")

	cases := map[string]any{
		"string":        "2026-10-14",
		"bytes":         []byte("2026-10-14"),
		"time":          time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC),
		"string suffix": "2026-10-14T00:00:00Z",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			var d Date
			require.NoError(t, d.Scan(src))
			assert.Equal(t, want, d)
		})
	}

	var d Date
	assert.Error(t, d.Scan(42))
}

// =========================================================================
// OPTIONAL / PATCH TESTS
// =========================================================================

func TestOptional_ThreeStates(t *testing.T) {
	var p ItemPatch
	require.NoError(t, json.Unmarshal([]byte(`{"quantity": 3, "category": null}`), &p))

	assert.True(t, p.Quantity.Set)
	assert.False(t, p.Quantity.Null)
	assert.Equal(t, 3, p.Quantity.Value)

	assert.True(t, p.Category.Set)
	assert.True(t, p.Category.Null)

	assert.False(t, p.Name.Set, "absent key must stay unset")
	assert.False(t, p.ExpirationDate.Set)
}

func TestItemPatch_QuantityOnlyLeavesOtherFields(t *testing.T) {
	exp := MustParseDate("2026-10-20")
	added := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	item := FoodItem{
		ID:             "item-1",
		Name:           "Milk",
		Barcode:        StringPtr("3017620422003"),
		Category:       StringPtr("dairy"),
		Quantity:       1,
		ExpirationDate: &exp,
		ImageURL:       StringPtr("https://example.com/milk.jpg"),
		Source:         SourceBarcode,
		AddedAt:        added,
		OwnerID:        "user-a",
	}
	want := item
	want.Quantity = 4

	ItemPatch{Quantity: Some(4)}.Apply(&item)

	assert.Equal(t, want, item)
}

func TestItemPatch_NullClearsOptionalColumn(t *testing.T) {
	exp := MustParseDate("2026-10-20")
	item := FoodItem{Name: "Milk", Category: StringPtr("dairy"), ExpirationDate: &exp}

	ItemPatch{Category: Null[string](), ExpirationDate: Null[Date]()}.Apply(&item)

	assert.Nil(t, item.Category)
	assert.Nil(t, item.ExpirationDate)
	assert.Equal(t, "Milk", item.Name)
}

func TestItemPatch_Empty(t *testing.T) {
	assert.True(t, ItemPatch{}.Empty())
	assert.False(t, ItemPatch{Name: Some("x")}.Empty())
}

// =========================================================================
// FILTER TESTS
// =========================================================================

func TestItemFilter_ExpirationRangeIsInclusive(t *testing.T) {
	today := MustParseDate("2026-10-14")
	until := today.AddDays(7)
	f := ItemFilter{ExpiresFrom: &today, ExpiresTo: &until}

	at := func(s string) FoodItem {
		d := MustParseDate(s)
		return FoodItem{Name: s, ExpirationDate: &d}
	}

	assert.False(t, f.Matches(at("2026-10-13")))
	assert.True(t, f.Matches(at("2026-10-14")))
	assert.True(t, f.Matches(at("2026-10-21")))
	assert.False(t, f.Matches(at("2026-10-22")))
	assert.False(t, f.Matches(FoodItem{Name: "no date"}))
}

func TestItemFilter_Category(t *testing.T) {
	f := ItemFilter{Category: StringPtr("dairy")}

	assert.True(t, f.Matches(FoodItem{Category: StringPtr("dairy")}))
	assert.False(t, f.Matches(FoodItem{Category: StringPtr("produce")}))
	assert.False(t, f.Matches(FoodItem{}))
	assert.True(t, ItemFilter{}.Matches(FoodItem{}))
}

func TestSource_Valid(t *testing.T) {
	for _, s := range []Source{SourceManual, SourceBarcode, SourceVision} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Source("scanner").Valid())
	assert.False(t, Source("").Valid())
}
