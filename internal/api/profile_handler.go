package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/avatar-api/internal/api/shared"
	"github.com/phrazzld/avatar-api/internal/platform/logger"
	"github.com/phrazzld/avatar-api/internal/service"
	"github.com/phrazzld/avatar-api/internal/service/auth"
)

// ProfileHandler handles profile registration.
type ProfileHandler struct {
	profiles      service.ProfileService
	jwtService    auth.JWTService
	tokenLifetime time.Duration
	logger        *slog.Logger
	timeFunc      func() time.Time
}

// NewProfileHandler creates a ProfileHandler. tokenLifetime only feeds the
// expires_at field of the response.
func NewProfileHandler(
	profiles service.ProfileService,
	jwtService auth.JWTService,
	tokenLifetime time.Duration,
	logger *slog.Logger,
) *ProfileHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ProfileHandler")
	}
	return &ProfileHandler{
		profiles:      profiles,
		jwtService:    jwtService,
		tokenLifetime: tokenLifetime,
		logger:        logger.With(slog.String("component", "profile_handler")),
		timeFunc:      time.Now,
	}
}

// CreateProfile handles POST /api/profiles. It registers the handle and
// returns an access token for the new profile.
func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateProfileRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		log.Debug("invalid request body", "error", err)
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	profile, err := h.profiles.CreateProfile(r.Context(), req.Handle)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create profile")
		return
	}

	token, err := h.jwtService.GenerateToken(r.Context(), profile.ID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to generate authentication token")
		return
	}

	resp := ProfileResponse{
		ID:          profile.ID,
		Handle:      profile.Handle,
		CreatedAt:   profile.CreatedAt,
		AccessToken: token,
	}
	if h.tokenLifetime > 0 {
		resp.ExpiresAt = h.timeFunc().Add(h.tokenLifetime).UTC().Format(time.RFC3339)
	}

	log.Info("profile registered", slog.String("profile_id", profile.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, resp)
}
