package tui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner_IncludesVersion(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "0.1.0\n")
	assert.Contains(t, buf.String(), "v0.1.0")
}

func TestRenderer(t *testing.T) {
	render, err := NewRenderer(60)
	require.NoError(t, err)

	out, err := render("# P1\n\n- Size: 12 bytes\n")
	require.NoError(t, err)
	assert.Contains(t, out, "P1")
	assert.Contains(t, out, "12 bytes")

	plain, err := Plain("# P1")
	require.NoError(t, err)
	assert.Equal(t, "# P1", plain)
}
