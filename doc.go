/*
Package trajview loads molecular structures and trajectory segments for
interactive viewers, caches them process-wide and reduces everything a
rendering surface needs into a single snapshot.

# Concept

Two remote collaborators are involved: a structure service returning a
textual (optionally compressed) structure file, and a trajectory service
returning binary coordinates. The Engine owns one cache per payload kind and
a request memory. Each rendering surface gets a viewer Session that

  - loads the structure of the active subject,
  - restores the trajectory request last made for that subject,
  - composes a viewer source (none, structure, or structure plus trajectory),
  - reduces fetch state and surface feedback into idle, loading or error.

Concurrent requests for the same payload share a single fetch, and a
superseded fetch can never overwrite a newer result.

# Usage

	package main

	import (
		"context"
		"log"
		"time"

		"github.com/aretw0/trajview"
		"github.com/aretw0/trajview/pkg/adapters/fetch"
		"github.com/aretw0/trajview/pkg/domain"
	)

	func main() {
		client, err := fetch.New("https://md.example.org/api", fetch.WithTimeout(30*time.Second))
		if err != nil {
			log.Fatal(err)
		}

		eng, err := trajview.New(client, client)
		if err != nil {
			log.Fatal(err)
		}
		defer eng.Close()

		ctx := context.Background()
		go eng.Run(ctx)

		s := eng.Session("tab-1")
		if err := s.SetSubject(ctx, "P1"); err != nil {
			log.Fatal(err)
		}
		_ = s.RequestTrajectory(ctx, domain.TrajectoryRequest{FrameRange: "0-100"})

		for snap := range s.Watch(ctx) {
			log.Printf("%s: %s", snap.Source.Kind, snap.Status.Status)
		}
	}

# Architecture

  - pkg/domain: payloads, viewer sources, status and errors.
  - pkg/cache: generic coalescing cache with generation tokens.
  - pkg/loader: structure and trajectory loaders on top of the cache.
  - pkg/memory: last trajectory request per subject.
  - pkg/compose and pkg/status: pure derivations of the view.
  - pkg/viewer: one Session per rendering surface.
  - pkg/adapters: HTTP fetch client, Redis store, HTTP and MCP servers.
*/
package trajview
