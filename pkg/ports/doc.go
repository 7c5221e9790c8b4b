/*
Package ports defines the driven ports (interfaces) of the trajview orchestration layer.

These interfaces decouple the loaders and the request memory from external
implementations, allowing them to work with various fetch services and storage backends.

# Key Interfaces

  - StructureFetcher / TrajectoryFetcher: The network collaborators that produce payloads.
  - RequestStore: Persists the last trajectory request per subject.
  - DistributedLocker: Provides distributed locking when several replicas share a RequestStore.
*/
package ports
