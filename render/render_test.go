// ABOUTME: Tests for DOT rendering: passthrough, format validation and graphviz detection.
// ABOUTME: The svg case only runs when graphviz is installed.
package render

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDOT = "graph lab {\n  web -- db\n}\n"

func TestRenderDOTPassthrough(t *testing.T) {
	out, err := RenderDOTSource(context.Background(), sampleDOT, "dot")
	require.NoError(t, err)
	assert.Equal(t, sampleDOT, string(out))
}

func TestRenderRejectsEmptyAndUnknown(t *testing.T) {
	_, err := RenderDOTSource(context.Background(), "", "dot")
	assert.Error(t, err)

	_, err = RenderDOTSource(context.Background(), sampleDOT, "pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRenderWithoutGraphviz(t *testing.T) {
	orig := dotBinary
	dotBinary = "topoedit-no-such-binary"
	t.Cleanup(func() { dotBinary = orig })

	assert.False(t, GraphvizAvailable())
	_, err := RenderDOTSource(context.Background(), sampleDOT, "svg")
	assert.ErrorIs(t, err, ErrGraphvizUnavailable)
}

func TestRenderSVG(t *testing.T) {
	if !GraphvizAvailable() {
		t.Skip("graphviz not installed")
	}
	out, err := RenderDOTSource(context.Background(), sampleDOT, "svg")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(out), "<svg"))
}

func TestContentTypeAndSupported(t *testing.T) {
	assert.Equal(t, "image/svg+xml", ContentType("svg"))
	assert.Equal(t, "image/png", ContentType("png"))
	assert.Equal(t, "text/vnd.graphviz", ContentType("dot"))
	assert.True(t, Supported("png"))
	assert.False(t, Supported("json"))
}
