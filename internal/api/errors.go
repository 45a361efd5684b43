package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/avatar-api/internal/api/shared"
	"github.com/phrazzld/avatar-api/internal/domain"
	"github.com/phrazzld/avatar-api/internal/service"
	"github.com/phrazzld/avatar-api/internal/service/auth"
	"github.com/phrazzld/avatar-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// exposing the error types to clients.
func MapErrorToStatusCode(err error) int {
	var validationErrs validator.ValidationErrors
	var tooLarge *http.MaxBytesError

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrNotOwned):
		return http.StatusForbidden

	case errors.Is(err, service.ErrAvatarNotFound),
		errors.Is(err, service.ErrProfileNotFound),
		errors.Is(err, service.ErrNoActiveAvatar),
		errors.Is(err, service.ErrFormatUnavailable),
		errors.Is(err, service.ErrUpstreamNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrHandleTaken),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, service.ErrImageTooLarge),
		errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge

	case errors.Is(err, service.ErrInvalidConfig),
		errors.Is(err, service.ErrInvalidImage),
		errors.Is(err, service.ErrInvalidProfile),
		errors.Is(err, service.ErrNotCustom),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidFormat),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrUpstreamUnavailable):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err. It never
// includes the error text itself.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var tooLarge *http.MaxBytesError

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"
	case errors.Is(err, domain.ErrUnauthorized):
		return "Authentication required"

	case errors.Is(err, service.ErrNotOwned):
		return "You do not own this avatar"

	case errors.Is(err, service.ErrAvatarNotFound),
		errors.Is(err, store.ErrAvatarNotFound):
		return "Avatar not found"
	case errors.Is(err, service.ErrProfileNotFound),
		errors.Is(err, store.ErrProfileNotFound):
		return "Profile not found"
	case errors.Is(err, service.ErrNoActiveAvatar):
		return "Profile has no active avatar"
	case errors.Is(err, service.ErrFormatUnavailable):
		return "Avatar image is not available"
	case errors.Is(err, service.ErrUpstreamNotFound):
		return "No avatar found for this handle"

	case errors.Is(err, service.ErrHandleTaken),
		errors.Is(err, store.ErrHandleExists):
		return "Handle is already taken"

	case errors.Is(err, service.ErrImageTooLarge),
		errors.As(err, &tooLarge):
		return "Image is too large"

	case errors.Is(err, service.ErrInvalidConfig):
		return "Invalid avatar configuration"
	case errors.Is(err, service.ErrInvalidImage):
		return "Unsupported or corrupt image"
	case errors.Is(err, service.ErrInvalidProfile):
		return "Invalid handle"
	case errors.Is(err, service.ErrNotCustom):
		return "Only custom avatars can be selected"
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"
	case errors.Is(err, domain.ErrInvalidFormat):
		return "Invalid format"
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation):
		return "Invalid request data"

	case errors.Is(err, service.ErrUpstreamUnavailable):
		return "Avatar provider is unavailable"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns validator output into a short message that
// names the field and the failed rule.
func SanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		fe := validationErrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		return fmt.Sprintf("Invalid %s: %s", ve.Field, ve.Message)
	}
	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the status code and safe message for err. A non-empty
// defaultMsg replaces the generic message of 5xx responses.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	msg := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && defaultMsg != "" {
		msg = defaultMsg
	}

	var opts []shared.ResponseOption
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, msg, err, opts...)
}
