// Package events decouples the avatar service from the background task
// runner. The service emits TaskRequestEvents; handlers registered on the
// emitter turn them into queued work.
package events
