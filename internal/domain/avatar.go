package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AvatarKind distinguishes avatars composed from a configuration from
// avatars imported from an external picture.
type AvatarKind string

// Avatar kinds
const (
	AvatarKindCustom AvatarKind = "custom"
	AvatarKindSocial AvatarKind = "social"
)

// MaxHashLength bounds the stored content hash.
const MaxHashLength = 256

// DefaultDynamicHandle addresses the dynamic avatar of the requesting profile
// when no handle is known.
const DefaultDynamicHandle = "Self"

// Avatar validation errors
var (
	// ErrAvatarIDEmpty is returned when an avatar ID is empty or nil.
	ErrAvatarIDEmpty = errors.New("avatar ID cannot be empty")

	// ErrAvatarProfileIDEmpty is returned when an owner is set to the nil UUID.
	ErrAvatarProfileIDEmpty = errors.New("avatar profile ID cannot be the nil UUID")

	// ErrAvatarKindInvalid is returned for an unknown avatar kind.
	ErrAvatarKindInvalid = errors.New("avatar kind must be custom or social")

	// ErrAvatarHashTooLong is returned when the hash exceeds MaxHashLength.
	ErrAvatarHashTooLong = errors.New("avatar hash exceeds 256 characters")

	// ErrAvatarConfigMissing is returned when a custom avatar has no configuration.
	ErrAvatarConfigMissing = errors.New("custom avatar requires a configuration")

	// ErrAvatarNotCustom is returned when an operation needs a custom avatar.
	ErrAvatarNotCustom = errors.New("avatar is not a custom avatar")
)

// Avatar is a stored avatar image. SVG and PNG hold storage keys and either
// may be empty while a conversion is outstanding.
type Avatar struct {
	ID                 uuid.UUID     `json:"id"`
	ProfileID          *uuid.UUID    `json:"profile_id,omitempty"`
	Kind               AvatarKind    `json:"kind"`
	Active             bool          `json:"active"`
	SVG                string        `json:"svg,omitempty"`
	PNG                string        `json:"png,omitempty"`
	Hash               string        `json:"hash"`
	RecommendedByStaff bool          `json:"recommended_by_staff"`
	Config             *AvatarConfig `json:"config,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// NewCustomAvatar creates an unsaved custom avatar. A nil profileID leaves the
// avatar without an owner.
func NewCustomAvatar(profileID uuid.UUID, config *AvatarConfig) (*Avatar, error) {
	a := newAvatar(profileID, AvatarKindCustom)
	a.Config = config
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// NewSocialAvatar creates an unsaved social avatar with a precomputed hash.
func NewSocialAvatar(profileID uuid.UUID, hash string) (*Avatar, error) {
	a := newAvatar(profileID, AvatarKindSocial)
	a.Hash = hash
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func newAvatar(profileID uuid.UUID, kind AvatarKind) *Avatar {
	now := time.Now().UTC()
	a := &Avatar{
		ID:        uuid.New(),
		Kind:      kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if profileID != uuid.Nil {
		owner := profileID
		a.ProfileID = &owner
	}
	return a
}

// Validate checks if the Avatar has valid data.
func (a *Avatar) Validate() error {
	if a.ID == uuid.Nil {
		return ErrAvatarIDEmpty
	}
	if a.ProfileID != nil && *a.ProfileID == uuid.Nil {
		return ErrAvatarProfileIDEmpty
	}
	if len(a.Hash) > MaxHashLength {
		return ErrAvatarHashTooLong
	}

	switch a.Kind {
	case AvatarKindCustom:
		if a.Config == nil {
			return ErrAvatarConfigMissing
		}
		return a.Config.Validate()
	case AvatarKindSocial:
		return nil
	default:
		return ErrAvatarKindInvalid
	}
}

// OwnedBy reports whether the avatar belongs to profileID.
func (a *Avatar) OwnedBy(profileID uuid.UUID) bool {
	return a.ProfileID != nil && *a.ProfileID == profileID
}

// File returns the storage key for the given format, empty if absent.
func (a *Avatar) File(format ImageFormat) string {
	if format == FormatPNG {
		return a.PNG
	}
	return a.SVG
}

// SetFile stores key as the file for format.
func (a *Avatar) SetFile(format ImageFormat, key string) {
	if format == FormatPNG {
		a.PNG = key
	} else {
		a.SVG = key
	}
	a.UpdatedAt = time.Now().UTC()
}

// MissingFormat returns the format to derive from the other one. ok is false
// when both files are present or neither is.
func (a *Avatar) MissingFormat() (missing ImageFormat, ok bool) {
	switch {
	case a.SVG != "" && a.PNG == "":
		return FormatPNG, true
	case a.PNG != "" && a.SVG == "":
		return FormatSVG, true
	default:
		return "", false
	}
}

// AvatarURL prefers the PNG over the SVG. It returns "" when neither exists.
func (a *Avatar) AvatarURL(urlFor func(key string) string) string {
	switch {
	case a.PNG != "":
		return urlFor(a.PNG)
	case a.SVG != "":
		return urlFor(a.SVG)
	default:
		return ""
	}
}

// DynamicURL is the always-current avatar address for handle.
func (a *Avatar) DynamicURL(baseURL, handle string) string {
	if handle == "" {
		handle = DefaultDynamicHandle
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL + "dynamic/avatar/" + handle
}

// DetermineResponse picks the file and content type to serve.
func (a *Avatar) DetermineResponse(useSVG bool) (key, contentType string) {
	if !useSVG {
		return a.PNG, ContentTypePNG
	}
	return a.SVG, ContentTypeSVG
}

// Select copies a custom avatar for profileID. The copy shares the source's
// files and hash and is not persisted.
func (a *Avatar) Select(profileID uuid.UUID) (*Avatar, error) {
	if a.Kind != AvatarKindCustom || a.Config == nil {
		return nil, ErrAvatarNotCustom
	}

	c := newAvatar(profileID, AvatarKindCustom)
	c.Config = NewAvatarConfig(a.Config.Background, a.Config.Layers()...)
	c.Config.ClothingColor = a.Config.ClothingColor
	c.Config.HairColor = a.Config.HairColor
	c.Config.SkinTone = a.Config.SkinTone
	c.SVG = a.SVG
	c.PNG = a.PNG
	c.Hash = a.Hash

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
