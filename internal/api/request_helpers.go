package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/avatar-api/internal/api/shared"
	"github.com/phrazzld/avatar-api/internal/domain"
	"github.com/phrazzld/avatar-api/internal/platform/logger"
)

// getProfileIDFromContext returns the profile ID the auth middleware stored
// in the request context.
func getProfileIDFromContext(r *http.Request) (uuid.UUID, bool) {
	return shared.GetProfileID(r.Context())
}

// getPathUUID parses the chi path parameter paramName as a UUID.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}
	return id, nil
}

// requireProfileID writes a 401 response and returns false when the request
// is not authenticated.
func requireProfileID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	profileID, ok := getProfileIDFromContext(r)
	if !ok {
		log.Warn("profile ID not found or invalid in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return uuid.Nil, false
	}
	return profileID, true
}

// handleProfileIDAndPathUUID extracts the authenticated profile ID and the
// UUID path parameter paramName. It writes an error response and returns
// false when either is missing or invalid.
func handleProfileIDAndPathUUID(
	w http.ResponseWriter,
	r *http.Request,
	paramName string,
	log *slog.Logger,
) (uuid.UUID, uuid.UUID, bool) {
	if log == nil {
		log = logger.FromContext(r.Context())
	}

	profileID, ok := requireProfileID(w, r, log)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	pathID, err := getPathUUID(r, paramName)
	if err != nil {
		log.Warn("invalid path parameter",
			slog.String("param_name", paramName),
			slog.String("value", chi.URLParam(r, paramName)))
		HandleAPIError(w, r, err, "")
		return uuid.Nil, uuid.Nil, false
	}

	return profileID, pathID, true
}
