package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"marketplace-api/internal/models"
	"marketplace-api/internal/services"
)

type ProductHandler struct {
	productService *services.ProductService
	logger         zerolog.Logger
}

func NewProductHandler(productService *services.ProductService, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{productService: productService, logger: logger}
}

func (h *ProductHandler) list(w http.ResponseWriter, r *http.Request, filter models.ProductFilter) {
	limit, offset := pagination(r)
	products, err := h.productService.List(r.Context(), filter, limit, offset)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

// GetProducts lists products filtered by the name, categoryId and storeId
// query parameters.
func (h *ProductHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ProductFilter{Name: q.Get("name")}
	if v, err := strconv.ParseInt(q.Get("categoryId"), 10, 64); err == nil {
		filter.CategoryID = v
	}
	if v, err := strconv.ParseInt(q.Get("storeId"), 10, 64); err == nil {
		filter.StoreID = v
	}
	h.list(w, r, filter)
}

// Search matches the q parameter against product and category names.
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Query parameter q is required")
		return
	}
	h.list(w, r, models.ProductFilter{Search: term})
}

func (h *ProductHandler) GetByCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathID(w, r, "categoryId")
	if !ok {
		return
	}
	h.list(w, r, models.ProductFilter{CategoryID: categoryID})
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	product, err := h.productService.Get(r.Context(), productID)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) GetMyProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)
	products, err := h.productService.ListMine(r.Context(), id, limit, offset)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req models.ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := h.productService.Create(r.Context(), id, &req)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req models.ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := h.productService.Update(r.Context(), id, productID, &req)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.productService.Delete(r.Context(), id, productID); err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
