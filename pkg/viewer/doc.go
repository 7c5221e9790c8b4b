// Package viewer binds the loaders, the request memory, the composer and the
// status reporter into a Session that serves one rendering surface.
//
// A Session re-derives its Snapshot whenever the cache entries it observes
// change, and pushes the result to its watchers.
package viewer
