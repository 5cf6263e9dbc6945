package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Product struct {
	ID          int64           `json:"id"`
	StoreID     int64           `json:"storeId"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	CategoryIDs []int64         `json:"categoryIds"`
}

// ProductFilter narrows product listings. Zero values mean "any". Search
// matches the product name or the name of one of its categories.
type ProductFilter struct {
	Name       string
	Search     string
	CategoryID int64
	StoreID    int64
}

// Store is owned 1:1 by a SELLER or ADMIN user. Its products are owned by
// identifier and deleted explicitly with the store.
type Store struct {
	ID             int64   `json:"id"`
	OwnerID        int64   `json:"ownerId"`
	OwnerEmail     string  `json:"ownerEmail"`
	Name           string  `json:"name"`
	Rating         float64 `json:"rating"`
	DeliveryTime   int     `json:"deliveryTime"`
	MainCategoryID *int64  `json:"mainCategoryId,omitempty"`
}

type StoreCreateRequest struct {
	OwnerID        int64   `json:"ownerId"`
	Name           string  `json:"name"`
	Rating         float64 `json:"rating"`
	DeliveryTime   int     `json:"deliveryTime"`
	MainCategoryID *int64  `json:"mainCategoryId,omitempty"`
}

type ProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	CategoryIDs []int64         `json:"categoryIds"`
}

type CategoryRequest struct {
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}
