package compose_test

import (
	"errors"
	"testing"

	"github.com/aretw0/trajview/pkg/compose"
	"github.com/aretw0/trajview/pkg/domain"
	"github.com/aretw0/trajview/pkg/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func structureOf(subject domain.Subject, text string) loader.Result[domain.StructurePayload] {
	return loader.Result[domain.StructurePayload]{
		HasValue: true,
		Value:    domain.StructurePayload{Subject: subject, Text: text, Format: "pdb", Label: domain.Label(subject, "pdb")},
	}
}

func trajectoryOf(subject domain.Subject, data []byte) loader.Result[domain.TrajectoryPayload] {
	return loader.Result[domain.TrajectoryPayload]{
		HasValue: true,
		Value:    domain.TrajectoryPayload{Subject: subject, Data: data, Format: "xtc", Label: domain.Label(subject, "xtc")},
	}
}

func TestCompose(t *testing.T) {
	var (
		noStructure  loader.Result[domain.StructurePayload]
		noTrajectory loader.Result[domain.TrajectoryPayload]
	)
	failedTrajectory := loader.Result[domain.TrajectoryPayload]{Err: errors.New("connection reset")}
	loadingStructure := loader.Result[domain.StructurePayload]{IsLoading: true}
	failedStructure := structureOf("P1", ">atom list")
	failedStructure.Err = errors.New("bad gateway")
	revalidating := structureOf("P1", ">atom list")
	revalidating.IsLoading = true

	tests := []struct {
		name       string
		subject    domain.Subject
		structure  loader.Result[domain.StructurePayload]
		trajectory loader.Result[domain.TrajectoryPayload]
		wantKind   domain.SourceKind
	}{
		{name: "no subject", subject: "", structure: structureOf("P1", ">atom list"), trajectory: noTrajectory, wantKind: domain.SourceNone},
		{name: "structure loading", subject: "P1", structure: loadingStructure, trajectory: noTrajectory, wantKind: domain.SourceNone},
		{name: "structure failed", subject: "P1", structure: failedStructure, trajectory: trajectoryOf("P1", []byte{1}), wantKind: domain.SourceNone},
		{name: "structure revalidating", subject: "P1", structure: revalidating, trajectory: noTrajectory, wantKind: domain.SourceStructure},
		{name: "structure only", subject: "P1", structure: structureOf("P1", ">atom list"), trajectory: noTrajectory, wantKind: domain.SourceStructure},
		{name: "trajectory ready", subject: "P1", structure: structureOf("P1", ">atom list"), trajectory: trajectoryOf("P1", []byte{1, 2}), wantKind: domain.SourceTrajectory},
		{name: "trajectory failed keeps structure", subject: "P1", structure: structureOf("P1", ">atom list"), trajectory: failedTrajectory, wantKind: domain.SourceStructure},
		{name: "trajectory of another subject", subject: "P1", structure: structureOf("P1", ">atom list"), trajectory: trajectoryOf("P2", []byte{1}), wantKind: domain.SourceStructure},
		{name: "structure of another subject", subject: "P2", structure: structureOf("P1", ">atom list"), trajectory: trajectoryOf("P2", []byte{1}), wantKind: domain.SourceNone},
		{name: "trajectory without structure", subject: "P1", structure: noStructure, trajectory: trajectoryOf("P1", []byte{1}), wantKind: domain.SourceNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compose.Compose(tt.subject, tt.structure, tt.trajectory)
			assert.Equal(t, tt.wantKind, got.Kind)
		})
	}
}

func TestCompose_StructureVariant(t *testing.T) {
	var noTrajectory loader.Result[domain.TrajectoryPayload]
	got := compose.Compose("P1", structureOf("P1", ">atom list"), noTrajectory)

	require.NotNil(t, got.Structure)
	assert.Equal(t, domain.ModelPart{Data: ">atom list", Format: "pdb", Label: "P1.pdb"}, *got.Structure)
	assert.Nil(t, got.Model)
	assert.Nil(t, got.Coordinates)
}

func TestCompose_TrajectoryVariant(t *testing.T) {
	got := compose.Compose("P1", structureOf("P1", ">atom list"), trajectoryOf("P1", []byte{7, 8, 9}))

	assert.Nil(t, got.Structure)
	require.NotNil(t, got.Model)
	require.NotNil(t, got.Coordinates)
	assert.Equal(t, "P1.pdb", got.Model.Label)
	assert.Equal(t, ">atom list", got.Model.Data)
	assert.Equal(t, "P1.xtc", got.Coordinates.Label)
	assert.Equal(t, []byte{7, 8, 9}, got.Coordinates.Data)
	assert.Equal(t, 3, got.Coordinates.Size)
}

func TestCompose_Idempotent(t *testing.T) {
	s := structureOf("P1", ">atom list")
	tr := trajectoryOf("P1", []byte{1, 2, 3})

	first := compose.Compose("P1", s, tr)
	second := compose.Compose("P1", s, tr)
	assert.Equal(t, first, second)
	assert.True(t, first.Equal(second))
}
