// Package store defines the persistence interfaces for profiles and avatars,
// the errors every implementation reports, and the transaction helper the
// service layer uses to group writes.
package store
