package types

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MaxQuantity is the largest stock level a sweet can hold. It matches the
// INTEGER quantity column.
const MaxQuantity = math.MaxInt32

// Sweet represents a catalog item sold by the shop.
type Sweet struct {
	// ID is the unique identifier of the sweet (a UUID).
	ID string `json:"id" db:"id"`

	// Name is the human-readable product name.
	Name string `json:"name" db:"name"`

	// Category groups sweets for browsing and exact-match filtering.
	Category string `json:"category" db:"category"`

	// Price is stored in minor units and rendered in major units.
	Price Price `json:"price" db:"price_minor"`

	// Quantity is the number of units in stock. Never negative.
	Quantity int `json:"quantity" db:"quantity"`

	// Description is optional free text.
	Description string `json:"description,omitempty" db:"description"`

	// CreatedAt is the timestamp at which the sweet was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is refreshed on every mutation, including stock changes.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SweetInput is the payload for creating a sweet. Required fields are
// pointers so that a missing value can be told apart from a zero value.
type SweetInput struct {
	Name        string           `json:"name"`
	Category    string           `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    *int             `json:"quantity"`
	Description string           `json:"description"`
}

// SweetPatch is a partial update. Nil fields are left unchanged.
type SweetPatch struct {
	Name        *string          `json:"name"`
	Category    *string          `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    *int             `json:"quantity"`
	Description *string          `json:"description"`
}

// SweetQuery holds the optional search filters in client units.
type SweetQuery struct {
	Name     string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

// SweetFilter is a SweetQuery resolved to store units.
type SweetFilter struct {
	Name     string
	Category string
	MinPrice *Price
	MaxPrice *Price
}

// Empty reports whether no filter is set.
func (f SweetFilter) Empty() bool {
	return f.Name == "" && f.Category == "" && f.MinPrice == nil && f.MaxPrice == nil
}

// SweetChanges is a SweetPatch resolved to store units.
type SweetChanges struct {
	Name        *string
	Category    *string
	Price       *Price
	Quantity    *int
	Description *string
}
