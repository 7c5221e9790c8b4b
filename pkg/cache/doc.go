/*
Package cache implements the Resource Cache: a generic key/value store with a
per-instance freshness policy and request coalescing.

Every fetch for a key is tagged with a generation token drawn from a monotonically
increasing counter. Only the outcome of the current generation is stored, so a
slow, superseded fetch can never overwrite a newer result. Callers that ask for a
key while a fetch is in flight attach to that fetch instead of starting another.

Entries observed through Retain are pinned; other entries are evicted by Sweep
(or RunJanitor) once they have not been accessed for the retention window.
*/
package cache
