// Package status reduces trajectory fetch state and rendering-surface feedback
// into the three-state ViewerStatus.
//
// Reduce is a pure transition function. Reporter wraps it with a lock, a
// typed event channel and change notifications.
package status
