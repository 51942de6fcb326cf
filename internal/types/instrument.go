package types

import (
	"strings"
	"time"
)

// Category classifies an instrument into one of the registry's trading types.
type Category string

const (
	// CategoryStock is a locally listed equity.
	CategoryStock Category = "STOCK"
	// CategoryCedears is a depositary receipt for a foreign listing.
	CategoryCedears Category = "CEDEARS"
	// CategoryBond is a fixed-income note.
	CategoryBond Category = "BOND"
)

// AllCategories lists every valid category in registry export order.
var AllCategories = []Category{CategoryStock, CategoryCedears, CategoryBond}

// Settlement conventions derived from the instrument category.
const (
	SettlementOneWorkingDay = "ONE_WORKING_DAY"
	SettlementContado       = "CONTADO"
)

// ParseCategory normalizes and validates a category token.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllCategories {
		if c == known {
			return c, true
		}
	}

	return "", false
}

// Settlement returns the default settlement convention for the category.
func (c Category) Settlement() string {
	if c == CategoryBond {
		return SettlementContado
	}

	return SettlementOneWorkingDay
}

// SortRank returns the category's position in the registry export order.
func (c Category) SortRank() int {
	for i, known := range AllCategories {
		if c == known {
			return i + 1
		}
	}

	return len(AllCategories) + 1
}

// Instrument is one tradable symbol tracked by the registry.
// Symbol is the identity and is globally unique; ID is assigned once on first
// registration and never reused.
type Instrument struct {
	// ID is the numeric registry id, monotonic across registrations.
	ID int64
	// Name is the display name.
	Name string
	// Symbol is the case-normalized (upper) ticker symbol.
	Symbol string
	// Category is the trading type of the instrument.
	Category Category
	// SettlementType is the settlement convention, derived from Category
	// unless the registry supplies one explicitly.
	SettlementType string
	// Enabled marks whether the acquisition engine should fetch data for it.
	Enabled bool
	// Description is free text; for bonds it may encode a maturity date.
	Description string
	// AcquiredAt is when the last successful acquisition finished.
	AcquiredAt time.Time
	// BarCount is the stored bar count after the last acquisition.
	BarCount int
	// PrimarySource is the provenance tag of the first source that
	// contributed bars during the last acquisition.
	PrimarySource string
}

// NormalizeSymbol applies the registry's case normalization to a raw symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
