package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"marketplace-api/internal/models"
	"marketplace-api/internal/services"
)

type CartHandler struct {
	cartService *services.CartService
	logger      zerolog.Logger
}

func NewCartHandler(cartService *services.CartService, logger zerolog.Logger) *CartHandler {
	return &CartHandler{cartService: cartService, logger: logger}
}

// UpdateCart replaces the caller's cart with the posted lines and answers
// with the reconciled cart, line identifiers included.
func (h *CartHandler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req models.CartUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cart, err := h.cartService.UpdateCart(r.Context(), claimed(id), req)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productId")
	if !ok {
		return
	}

	cart, err := h.cartService.RemoveItem(r.Context(), claimed(id), productID)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	cart, err := h.cartService.GetCart(r.Context(), claimed(id))
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) GetUserCart(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	cart, err := h.cartService.GetCartByUserID(r.Context(), id, userID)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cart)
}
