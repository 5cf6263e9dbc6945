package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is owned by exactly one user. After every successful mutation
// Total equals the sum of Price*Quantity over Items.
type Cart struct {
	ID     int64           `json:"id"`
	UserID int64           `json:"userId"`
	Items  []CartLine      `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

// CartLine keeps the unit price captured when the line was added; it is not
// re-read from the catalog.
type CartLine struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// MoneyScale is the number of decimal places money columns store.
const MoneyScale = 2

// ValidPrice reports whether p is non-negative and representable at
// MoneyScale without rounding.
func ValidPrice(p decimal.Decimal) bool {
	return !p.IsNegative() && p.Equal(p.Truncate(MoneyScale))
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type CartLineInput struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// CartUpdateRequest.Total is accepted for compatibility and ignored; the
// server always recomputes it.
type CartUpdateRequest struct {
	Items []CartLineInput   `json:"items"`
	Total *decimal.Decimal `json:"total,omitempty"`
}

// ResetToken moves from issued to consumed or expired; it is usable only
// while now < ExpiresAt and ConsumedAt is nil.
type ResetToken struct {
	ID         int64
	Token      string
	Email      string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

func (t ResetToken) UsableAt(now time.Time) bool {
	return t.ConsumedAt == nil && now.Before(t.ExpiresAt)
}

type ResetRequest struct {
	Email string `json:"email"`
}

type NewPasswordRequest struct {
	NewPassword string `json:"newPassword"`
	Token       string `json:"token"`
}
