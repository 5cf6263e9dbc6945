package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"marketplace-api/internal/models"
	"marketplace-api/internal/services"
)

type UserHandler struct {
	userService *services.UserService
	logger      zerolog.Logger
}

func NewUserHandler(userService *services.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userService.Signup(r.Context(), &req)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.UserInsertRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userService.Insert(r.Context(), &req)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	users, err := h.userService.List(r.Context(), limit, offset)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, users)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	user, err := h.userService.Get(r.Context(), userID)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req models.UserUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userService.Update(r.Context(), userID, &req)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.userService.Delete(r.Context(), userID); err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
