package domain

import (
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Profile validation errors
var (
	ErrEmptyProfileID = errors.New("profile ID cannot be empty")
	ErrEmptyHandle    = errors.New("handle cannot be empty")
	ErrInvalidHandle  = errors.New("handle must be 1-39 alphanumeric characters or hyphens")
)

// handlePattern follows GitHub's username rules, which is where social
// avatars are imported from.
var handlePattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,37}[A-Za-z0-9])?$`)

// Profile is the owner of avatars. Its handle names generated files and
// addresses the dynamic avatar endpoint.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Handle    string    `json:"handle"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProfile creates a validated Profile with a fresh ID.
func NewProfile(handle string) (*Profile, error) {
	now := time.Now().UTC()
	p := &Profile{
		ID:        uuid.New(),
		Handle:    handle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks if the Profile has valid data.
func (p *Profile) Validate() error {
	if p.ID == uuid.Nil {
		return ErrEmptyProfileID
	}
	if p.Handle == "" {
		return ErrEmptyHandle
	}
	if !handlePattern.MatchString(p.Handle) {
		return ErrInvalidHandle
	}
	return nil
}
