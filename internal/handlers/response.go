package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"marketplace-api/internal/apperr"
	"marketplace-api/internal/middleware"
	"marketplace-api/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func respondWithError(w http.ResponseWriter, code int, errorCode, message string) {
	respondWithJSON(w, code, middleware.ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

// respondWithAppError maps err's kind to a status code. Anything that is not
// a typed domain error is logged and hidden behind a generic 500.
func respondWithAppError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.KindUnauthenticated, apperr.KindMalformedClaims:
		respondWithError(w, http.StatusUnauthorized, kind.String(), apperr.MessageOf(err))
	case apperr.KindForbidden:
		respondWithError(w, http.StatusForbidden, kind.String(), apperr.MessageOf(err))
	case apperr.KindNotFound:
		respondWithError(w, http.StatusNotFound, kind.String(), apperr.MessageOf(err))
	case apperr.KindInvalidArgument:
		respondWithError(w, http.StatusBadRequest, kind.String(), apperr.MessageOf(err))
	case apperr.KindConflict:
		respondWithError(w, http.StatusConflict, kind.String(), apperr.MessageOf(err))
	default:
		logger.Error().Err(err).
			Str("request_id", middleware.RequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("Request failed")
		respondWithError(w, http.StatusInternalServerError, kind.String(), "An internal error occurred")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "invalid_"+name, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// pagination reads limit and offset query parameters, clamping limit to
// maxPageSize.
func pagination(r *http.Request) (limit, offset int) {
	limit, offset = defaultPageSize, 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

// identity returns the caller resolved by the authentication middleware.
func identity(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthenticated", "Authentication required")
	}
	return id, ok
}

func claimed(id models.Identity) models.ClaimedIdentity {
	return models.ClaimedIdentity{Email: id.Email}
}
