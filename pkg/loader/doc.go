// Package loader exposes the Structure Loader and the Trajectory Loader.
//
// Both loaders are thin adapters between the fetch collaborators and a shared
// Resource Cache: they build the cache key, supply the producer and translate
// cache entries into a Result the composer and status reporter consume.
package loader
