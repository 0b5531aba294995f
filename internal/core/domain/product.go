package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductCategory groups catalog entries.
type ProductCategory string

const (
	CategoryGames     ProductCategory = "games"
	CategoryApps      ProductCategory = "apps"
	CategoryGiftCards ProductCategory = "gift_cards"
)

// Valid reports whether c is a known category.
func (c ProductCategory) Valid() bool {
	return c == CategoryGames || c == CategoryApps || c == CategoryGiftCards
}

// ProductStatus controls catalog visibility.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// Product is a sellable catalog entry. Stock is informational only.
type Product struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Category     ProductCategory `json:"category"`
	GameName     string          `json:"game_name,omitempty"`
	GameID       string          `json:"game_id,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	Stock        int             `json:"stock"`
	Image        string          `json:"image,omitempty"`
	AutoDelivery bool            `json:"auto_delivery"`
	DeliveryTime string          `json:"delivery_time,omitempty"`
	Status       ProductStatus   `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// IsActive returns true if the product can be ordered.
func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}
