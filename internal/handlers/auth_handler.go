package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"marketplace-api/internal/models"
	"marketplace-api/internal/services"
)

type AuthHandler struct {
	userService  *services.UserService
	verifier     *services.CredentialVerifier
	resetService *services.PasswordResetService
	logger       zerolog.Logger
}

func NewAuthHandler(userService *services.UserService, verifier *services.CredentialVerifier, resetService *services.PasswordResetService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		userService:  userService,
		verifier:     verifier,
		resetService: resetService,
		logger:       logger,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.userService.Authenticate(r.Context(), &req)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}

	token, err := h.verifier.Issue(user)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "token_generation_failed", "Failed to generate token")
		return
	}

	respondWithJSON(w, http.StatusOK, models.AuthResponse{
		User:  user,
		Token: token,
	})
}

// Info returns the authenticated caller's profile.
func (h *AuthHandler) Info(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	user, err := h.userService.Get(r.Context(), id.UserID)
	if err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) RecoverToken(w http.ResponseWriter, r *http.Request) {
	var req models.ResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.resetService.RequestReset(r.Context(), req.Email); err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) NewPassword(w http.ResponseWriter, r *http.Request) {
	var req models.NewPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.resetService.CompleteReset(r.Context(), req.Token, req.NewPassword); err != nil {
		respondWithAppError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
