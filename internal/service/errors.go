package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/avatar-api/internal/domain"
	"github.com/phrazzld/avatar-api/internal/imaging"
	"github.com/phrazzld/avatar-api/internal/store"
)

// Service errors. The API maps each of them to a status code.
var (
	// ErrNotOwned indicates the avatar belongs to another profile.
	ErrNotOwned = errors.New("avatar is owned by another profile")

	// ErrAvatarNotFound indicates that the avatar does not exist.
	ErrAvatarNotFound = errors.New("avatar not found")

	// ErrProfileNotFound indicates that the profile does not exist.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrNoActiveAvatar indicates the profile has not activated an avatar.
	ErrNoActiveAvatar = errors.New("profile has no active avatar")

	// ErrHandleTaken indicates another profile already uses the handle.
	ErrHandleTaken = errors.New("handle is already taken")

	// ErrInvalidProfile indicates the handle failed validation.
	ErrInvalidProfile = errors.New("invalid profile")

	// ErrInvalidConfig indicates the avatar configuration cannot be composed.
	ErrInvalidConfig = errors.New("invalid avatar configuration")

	// ErrNotCustom indicates a custom avatar was required.
	ErrNotCustom = errors.New("avatar is not a custom avatar")

	// ErrInvalidImage indicates an upload that is not a supported picture.
	ErrInvalidImage = errors.New("unsupported or corrupt image")

	// ErrImageTooLarge indicates an upload or download over the size limit.
	ErrImageTooLarge = errors.New("image exceeds the size limit")

	// ErrUpstreamNotFound indicates the social network has no such user.
	ErrUpstreamNotFound = errors.New("no avatar found for handle")

	// ErrUpstreamUnavailable indicates the social network could not be reached.
	ErrUpstreamUnavailable = errors.New("avatar provider unavailable")

	// ErrFormatUnavailable indicates the active avatar has no stored file.
	ErrFormatUnavailable = errors.New("avatar has no stored file")
)

// AvatarServiceError wraps unexpected failures with the operation that hit them.
type AvatarServiceError struct {
	// Operation is the operation that failed, e.g. "create_custom".
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface.
func (e *AvatarServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("avatar service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("avatar service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *AvatarServiceError) Unwrap() error {
	return e.Err
}

// NewAvatarServiceError translates known lower-level errors into service
// sentinels and wraps everything else in an AvatarServiceError.
func NewAvatarServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, store.ErrAvatarNotFound):
		return ErrAvatarNotFound
	case errors.Is(err, store.ErrProfileNotFound):
		return ErrProfileNotFound
	case errors.Is(err, store.ErrHandleExists):
		return ErrHandleTaken
	case errors.Is(err, domain.ErrAvatarNotCustom):
		return ErrNotCustom
	case errors.Is(err, imaging.ErrAssetNotFound), errors.Is(err, imaging.ErrInvalidAsset):
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	case isSentinel(err):
		return err
	}

	return &AvatarServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

func isSentinel(err error) bool {
	for _, s := range []error{
		ErrNotOwned, ErrAvatarNotFound, ErrProfileNotFound, ErrNoActiveAvatar,
		ErrHandleTaken, ErrInvalidProfile, ErrInvalidConfig, ErrNotCustom,
		ErrInvalidImage, ErrImageTooLarge, ErrUpstreamNotFound,
		ErrUpstreamUnavailable, ErrFormatUnavailable,
	} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}
