package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/avatar-api/internal/domain"
)

// CreateProfileRequest is the payload of POST /api/profiles.
type CreateProfileRequest struct {
	Handle string `json:"handle" validate:"required,max=39"`
}

// ProfileResponse is a created profile with its access token.
type ProfileResponse struct {
	ID        uuid.UUID `json:"id"`
	Handle    string    `json:"handle"`
	CreatedAt time.Time `json:"created_at"`

	// AccessToken authorizes the avatar endpoints for this profile.
	AccessToken string `json:"token"`

	// ExpiresAt is the RFC 3339 time the access token expires.
	ExpiresAt string `json:"expires_at,omitempty"`
}

// CreateCustomRequest is the payload of POST /api/avatars/custom.
type CreateCustomRequest struct {
	Config *domain.AvatarConfig `json:"config" validate:"required"`
}

// AvatarResponse is the public view of an avatar.
type AvatarResponse struct {
	ID                 uuid.UUID            `json:"id"`
	ProfileID          *uuid.UUID           `json:"profile_id,omitempty"`
	Kind               domain.AvatarKind    `json:"kind"`
	Active             bool                 `json:"active"`
	AvatarURL          string               `json:"avatar_url"`
	SVGURL             string               `json:"svg_url,omitempty"`
	PNGURL             string               `json:"png_url,omitempty"`
	DynamicURL         string               `json:"dynamic_url,omitempty"`
	Hash               string               `json:"hash,omitempty"`
	RecommendedByStaff bool                 `json:"recommended_by_staff"`
	Config             *domain.AvatarConfig `json:"config,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// CreateAvatarResponse is returned by the avatar creation endpoints.
// Reused is set when an existing avatar with the same picture was returned.
type CreateAvatarResponse struct {
	Avatar AvatarResponse `json:"avatar"`
	Reused bool           `json:"reused"`
}

// AvatarListResponse wraps a list of avatars.
type AvatarListResponse struct {
	Avatars []AvatarResponse `json:"avatars"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
