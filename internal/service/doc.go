// Package service implements the avatar and profile operations on top of the
// stores, the file store and the imaging package.
//
// Expected failures are returned as sentinel errors declared in errors.go.
// Unexpected ones are wrapped in AvatarServiceError so callers can still
// match the underlying cause with errors.Is.
package service
