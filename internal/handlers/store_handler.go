package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"marketplace-api/internal/models"
	"marketplace-api/internal/services"
)

type StoreHandler struct {
	storeService *services.StoreService
	logger       zerolog.Logger
}

func NewStoreHandler(storeService *services.StoreService, logger zerolog.Logger) *StoreHandler {
	return &StoreHandler{storeService: storeService, logger: logger}
}

func (h *StoreHandler) Home(w http.ResponseWriter, r *http.Request) {
	stores, err := h.storeService.TopStores(r.Context())
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stores)
}

func (h *StoreHandler) MyStore(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	store, err := h.storeService.MyStore(r.Context(), claimed(id))
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, store)
}

func (h *StoreHandler) CreateStore(w http.ResponseWriter, r *http.Request) {
	var req models.StoreCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	store, err := h.storeService.CreateStore(r.Context(), &req)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, store)
}

func (h *StoreHandler) DeleteStore(w http.ResponseWriter, r *http.Request) {
	storeID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.storeService.DeleteStore(r.Context(), storeID); err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type CategoryHandler struct {
	categoryService *services.CategoryService
	logger          zerolog.Logger
}

func NewCategoryHandler(categoryService *services.CategoryService, logger zerolog.Logger) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService, logger: logger}
}

func (h *CategoryHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categoryService.List(r.Context())
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, categories)
}

func (h *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	category, err := h.categoryService.Get(r.Context(), categoryID)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, category)
}

func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req models.CategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	category, err := h.categoryService.Create(r.Context(), &req)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, category)
}

func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req models.CategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	category, err := h.categoryService.Update(r.Context(), categoryID, &req)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, category)
}

func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.categoryService.Delete(r.Context(), categoryID); err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
