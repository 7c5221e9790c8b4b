package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/trajview/internal/presentation/graph"
	"github.com/aretw0/trajview/pkg/domain"
	"github.com/aretw0/trajview/pkg/viewer"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		snapshot viewer.Snapshot
		contains []string
		excludes []string
	}{
		{
			name:     "Empty Session",
			snapshot: viewer.Snapshot{Source: domain.NoSource(), Status: domain.Idle()},
			contains: []string{
				"subject((\"no subject\"))",
				"source[\"none\"]",
				"class structure idle;",
			},
			excludes: []string{"trajectory"},
		},
		{
			name: "Structure Loading",
			snapshot: viewer.Snapshot{
				Subject:          "P1",
				Source:           domain.NoSource(),
				StructureLoading: true,
			},
			contains: []string{
				"subject((\"P1\"))",
				"class structure loading;",
			},
		},
		{
			name: "Trajectory Ready",
			snapshot: viewer.Snapshot{
				Subject: "P1",
				Request: &domain.TrajectoryRequest{FrameRange: "0-100"},
				Source:  domain.ViewerSource{Kind: domain.SourceTrajectory},
			},
			contains: []string{
				"request[/\"0-100 / all atoms\"/]",
				"request --> trajectory",
				"class structure ready;",
				"class trajectory ready;",
			},
		},
		{
			name: "Trajectory Failed Keeps Structure",
			snapshot: viewer.Snapshot{
				Subject: "P1",
				Request: &domain.TrajectoryRequest{Selection: "name \"CA\""},
				Source:  domain.ViewerSource{Kind: domain.SourceStructure},
				Status:  domain.ViewerStatus{Status: domain.StatusError, Message: "failed to load trajectory"},
			},
			contains: []string{
				"all frames / name 'CA'",
				"class structure ready;",
				"class trajectory failed;",
			},
		},
		{
			name: "Structure Failed",
			snapshot: viewer.Snapshot{
				Subject:        "P1",
				Source:         domain.NoSource(),
				StructureError: "status 404",
			},
			contains: []string{"class structure failed;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.snapshot)
			if !strings.HasPrefix(got, "graph LR\n") {
				t.Errorf("unexpected header:\n%s", got)
			}
			for _, c := range tt.contains {
				if !strings.Contains(got, c) {
					t.Errorf("expected output to contain %q, but got:\n%s", c, got)
				}
			}
			for _, c := range tt.excludes {
				if strings.Contains(got, c) {
					t.Errorf("expected output not to contain %q, but got:\n%s", c, got)
				}
			}
		})
	}
}
