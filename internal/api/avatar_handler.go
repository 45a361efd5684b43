package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/avatar-api/internal/api/shared"
	"github.com/phrazzld/avatar-api/internal/domain"
	"github.com/phrazzld/avatar-api/internal/platform/logger"
	"github.com/phrazzld/avatar-api/internal/service"
	"github.com/phrazzld/avatar-api/internal/storage"
)

// AvatarHandlerConfig holds the settings of AvatarHandler.
type AvatarHandlerConfig struct {
	// BaseURL prefixes dynamic avatar links.
	BaseURL string
	// MaxUploadBytes bounds social avatar uploads.
	MaxUploadBytes int64
}

// AvatarHandler handles the avatar endpoints, the dynamic avatar endpoint and
// stored media.
type AvatarHandler struct {
	avatars  service.AvatarService
	profiles service.ProfileService
	files    storage.FileStore
	config   AvatarHandlerConfig
	logger   *slog.Logger
}

// NewAvatarHandler creates an AvatarHandler.
func NewAvatarHandler(
	avatars service.AvatarService,
	profiles service.ProfileService,
	files storage.FileStore,
	config AvatarHandlerConfig,
	logger *slog.Logger,
) *AvatarHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AvatarHandler")
	}
	return &AvatarHandler{
		avatars:  avatars,
		profiles: profiles,
		files:    files,
		config:   config,
		logger:   logger.With(slog.String("component", "avatar_handler")),
	}
}

// ListAvatars handles GET /api/avatars.
func (h *AvatarHandler) ListAvatars(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	profileID, ok := requireProfileID(w, r, log)
	if !ok {
		return
	}

	avatars, err := h.avatars.List(r.Context(), profileID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list avatars")
		return
	}

	handle := h.handleOf(r.Context(), profileID)
	shared.RespondWithJSON(w, r, http.StatusOK, h.listResponse(avatars, handle))
}

// Recommended handles GET /api/avatars/recommended.
func (h *AvatarHandler) Recommended(w http.ResponseWriter, r *http.Request) {
	limit := service.DefaultRecommendedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, service.DefaultRecommendedLimit)
	}

	avatars, err := h.avatars.Recommended(r.Context(), limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list recommended avatars")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, h.listResponse(avatars, ""))
}

// CreateCustom handles POST /api/avatars/custom.
func (h *AvatarHandler) CreateCustom(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	profileID, ok := requireProfileID(w, r, log)
	if !ok {
		return
	}

	var req CreateCustomRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		log.Debug("invalid request body", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			HandleAPIError(w, r, err, "")
			return
		}
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	res, err := h.avatars.CreateCustom(r.Context(), profileID, req.Config)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create avatar")
		return
	}
	h.respondCreated(w, r, profileID, res)
}

// CreateFromSocial handles POST /api/avatars/social. The body is the raw image.
func (h *AvatarHandler) CreateFromSocial(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	profileID, ok := requireProfileID(w, r, log)
	if !ok {
		return
	}

	body := r.Body
	if h.config.MaxUploadBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to read upload")
		return
	}
	if len(data) == 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Image body is required")
		return
	}

	res, err := h.avatars.CreateFromSocial(r.Context(), profileID, data)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create avatar")
		return
	}
	h.respondCreated(w, r, profileID, res)
}

// ImportGitHub handles POST /api/avatars/github.
func (h *AvatarHandler) ImportGitHub(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	profileID, ok := requireProfileID(w, r, log)
	if !ok {
		return
	}

	res, err := h.avatars.ImportGitHub(r.Context(), profileID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to import avatar")
		return
	}
	h.respondCreated(w, r, profileID, res)
}

// SelectAvatar handles POST /api/avatars/{id}/select.
func (h *AvatarHandler) SelectAvatar(w http.ResponseWriter, r *http.Request) {
	profileID, avatarID, ok := handleProfileIDAndPathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	res, err := h.avatars.Select(r.Context(), avatarID, profileID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to select avatar")
		return
	}
	h.respondCreated(w, r, profileID, res)
}

// ActivateAvatar handles POST /api/avatars/{id}/activate.
func (h *AvatarHandler) ActivateAvatar(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	profileID, avatarID, ok := handleProfileIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	avatar, err := h.avatars.Activate(r.Context(), profileID, avatarID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to activate avatar")
		return
	}

	log.Info("avatar activated", slog.String("avatar_id", avatarID.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, h.toResponse(avatar, h.handleOf(r.Context(), profileID)))
}

// DynamicAvatar handles GET /dynamic/avatar/{handle}. It serves the active
// avatar of handle as SVG, or as PNG with ?format=png.
func (h *AvatarHandler) DynamicAvatar(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	format := domain.FormatSVG
	if raw := r.URL.Query().Get("format"); raw != "" {
		f, err := domain.ParseImageFormat(raw)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		format = f
	}

	rendered, err := h.avatars.Render(r.Context(), handle, format == domain.FormatSVG)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load avatar")
		return
	}
	defer rendered.Body.Close()

	w.Header().Set("Content-Type", rendered.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	if !rendered.ModTime.IsZero() {
		w.Header().Set("Last-Modified", rendered.ModTime.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rendered.Body); err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).Warn("failed to stream avatar", "error", err)
	}
}

// Media handles GET /media/*. Keys are content addressed, so responses may
// be cached forever.
func (h *AvatarHandler) Media(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")

	data, err := h.files.Read(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			shared.RespondWithError(w, r, http.StatusNotFound, "File not found")
			return
		}
		HandleAPIError(w, r, err, "Failed to read file")
		return
	}

	w.Header().Set("Content-Type", mediaType(key, data))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).Warn("failed to write media", "error", err)
	}
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
}

func mediaType(key string, data []byte) string {
	switch {
	case strings.HasSuffix(key, "."+string(domain.FormatSVG)):
		return domain.ContentTypeSVG
	case strings.HasSuffix(key, "."+string(domain.FormatPNG)):
		return domain.ContentTypePNG
	default:
		return mimetype.Detect(data).String()
	}
}

func (h *AvatarHandler) respondCreated(w http.ResponseWriter, r *http.Request, profileID uuid.UUID, res *service.Result) {
	status := http.StatusCreated
	if res.Reused {
		status = http.StatusOK
	}
	shared.RespondWithJSON(w, r, status, CreateAvatarResponse{
		Avatar: h.toResponse(res.Avatar, h.handleOf(r.Context(), profileID)),
		Reused: res.Reused,
	})
}

// handleOf returns the handle of profileID, or "" when it cannot be loaded.
func (h *AvatarHandler) handleOf(ctx context.Context, profileID uuid.UUID) string {
	if h.profiles == nil {
		return ""
	}
	p, err := h.profiles.GetProfile(ctx, profileID)
	if err != nil {
		logger.FromContextOrDefault(ctx, h.logger).Warn("failed to load profile handle",
			"profile_id", profileID, "error", err)
		return ""
	}
	return p.Handle
}

func (h *AvatarHandler) listResponse(avatars []*domain.Avatar, handle string) AvatarListResponse {
	out := AvatarListResponse{Avatars: make([]AvatarResponse, 0, len(avatars))}
	for _, a := range avatars {
		out.Avatars = append(out.Avatars, h.toResponse(a, handle))
	}
	return out
}

func (h *AvatarHandler) toResponse(a *domain.Avatar, handle string) AvatarResponse {
	resp := AvatarResponse{
		ID:                 a.ID,
		ProfileID:          a.ProfileID,
		Kind:               a.Kind,
		Active:             a.Active,
		AvatarURL:          a.AvatarURL(h.files.URL),
		Hash:               a.Hash,
		RecommendedByStaff: a.RecommendedByStaff,
		Config:             a.Config,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
	if a.SVG != "" {
		resp.SVGURL = h.files.URL(a.SVG)
	}
	if a.PNG != "" {
		resp.PNGURL = h.files.URL(a.PNG)
	}
	if handle != "" && h.config.BaseURL != "" {
		resp.DynamicURL = a.DynamicURL(h.config.BaseURL, handle)
	}
	return resp
}
