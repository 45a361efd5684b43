// Package domain contains the core business entities, value objects, and
// domain logic of the application: profiles, avatars and the layered
// configuration custom avatars are composed from. It is independent of any
// specific infrastructure or delivery mechanism.
package domain
