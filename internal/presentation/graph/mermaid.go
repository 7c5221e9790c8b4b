// Package graph draws the load pipeline of a viewer snapshot as a Mermaid flowchart.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/trajview/pkg/domain"
	"github.com/aretw0/trajview/pkg/viewer"
)

// Stage states used as Mermaid classes.
const (
	StateIdle    = "idle"
	StateLoading = "loading"
	StateReady   = "ready"
	StateFailed  = "failed"
)

// Stages returns the state of each pipeline stage of s, keyed by node ID.
// The trajectory stage is absent when no request is active.
func Stages(s viewer.Snapshot) map[string]string {
	stages := map[string]string{"structure": StateIdle}
	switch {
	case s.StructureError != "":
		stages["structure"] = StateFailed
	case s.StructureLoading:
		stages["structure"] = StateLoading
	case s.Source.Kind != domain.SourceNone:
		stages["structure"] = StateReady
	}

	if s.Request != nil {
		stages["trajectory"] = StateIdle
		switch {
		case s.Source.Kind == domain.SourceTrajectory:
			stages["trajectory"] = StateReady
		case s.Status.Status == domain.StatusError:
			stages["trajectory"] = StateFailed
		case s.Status.Status == domain.StatusLoading:
			stages["trajectory"] = StateLoading
		}
	}
	return stages
}

// GenerateMermaid produces a Mermaid flowchart of the subject, its structure,
// the optional trajectory request and the composed source.
// Shapes:
// - Subject: ((Circle))
// - Request: [/Parallelogram/]
// - Fetch stages: [[Subroutine]]
// - Source: [Rectangle]
func GenerateMermaid(s viewer.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	subject := string(s.Subject)
	if subject == "" {
		subject = "no subject"
	}
	sb.WriteString(fmt.Sprintf("    subject((\"%s\"))\n", escape(subject)))
	sb.WriteString("    structure[[\"structure\"]]\n")
	sb.WriteString(fmt.Sprintf("    source[\"%s\"]\n", s.Source.Kind))
	sb.WriteString("    subject --> structure\n")
	sb.WriteString("    structure --> source\n")

	if s.Request != nil {
		sb.WriteString(fmt.Sprintf("    request[/\"%s\"/]\n", escape(requestLabel(*s.Request))))
		sb.WriteString("    trajectory[[\"trajectory\"]]\n")
		sb.WriteString("    subject -. remembered .-> request\n")
		sb.WriteString("    request --> trajectory\n")
		sb.WriteString("    trajectory --> source\n")
	}

	sb.WriteString("\n    %% Stage Styles\n")
	// Force black text (color:#000) for contrast on both themes
	sb.WriteString("    classDef ready fill:#dcfce7,stroke:#15803d,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef loading fill:#fef9c3,stroke:#ca8a04,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef failed fill:#fee2e2,stroke:#b91c1c,stroke-width:4px,color:#000;\n")
	sb.WriteString("    classDef idle fill:#f1f5f9,stroke:#64748b,color:#000;\n")

	stages := Stages(s)
	for _, id := range []string{"structure", "trajectory"} {
		if state, ok := stages[id]; ok {
			sb.WriteString(fmt.Sprintf("    class %s %s;\n", id, state))
		}
	}
	return sb.String()
}

func requestLabel(r domain.TrajectoryRequest) string {
	frames, selection := r.FrameRange, r.Selection
	if frames == "" {
		frames = "all frames"
	}
	if selection == "" {
		selection = "all atoms"
	}
	return frames + " / " + selection
}

// escape replaces double quotes, which terminate Mermaid labels.
func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
