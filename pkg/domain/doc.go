/*
Package domain contains the core domain models of the trajview orchestration layer.

It defines the values exchanged between the fetch collaborators, the caches and the
rendering surface. This package is kept pure and free of external dependencies
like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - Subject: Opaque identifier of the structural entity being visualized.
  - StructurePayload / TrajectoryPayload: Immutable fetched payloads and their cache keys.
  - TrajectoryRequest: The frame range and atom selection a caller asked for.
  - ViewerSource: The single composed input handed to the rendering surface.
  - ViewerStatus / StatusEvent: The idle/loading/error signal and the surface's reports.
*/
package domain
