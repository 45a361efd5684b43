// Package task runs background work outside the request path. Tasks are
// persisted before they are queued so that pending work survives restarts;
// the runner recovers unfinished tasks on start and requeues tasks stuck in
// processing. Avatar format conversion is the task this service runs.
package task
