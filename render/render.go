// ABOUTME: Renders DOT text to SVG or PNG by piping it through the graphviz dot binary.
// ABOUTME: The "dot" format passes the source through untouched.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned for formats other than dot, svg and png.
	ErrUnsupportedFormat = errors.New("unsupported render format")
	// ErrGraphvizUnavailable is returned when the dot binary is not on PATH.
	ErrGraphvizUnavailable = errors.New("graphviz dot command not found")
)

// dotBinary is the graphviz executable; tests swap it out.
var dotBinary = "dot"

// Formats lists the formats RenderDOTSource accepts.
var Formats = []string{"dot", "svg", "png"}

// ContentType returns the MIME type of a rendered format.
func ContentType(format string) string {
	switch format {
	case "svg":
		return "image/svg+xml"
	case "png":
		return "image/png"
	default:
		return "text/vnd.graphviz"
	}
}

// Supported reports whether format can be rendered.
func Supported(format string) bool {
	switch format {
	case "dot", "svg", "png":
		return true
	}
	return false
}

// GraphvizAvailable reports whether the dot binary can be found.
func GraphvizAvailable() bool {
	_, err := exec.LookPath(dotBinary)
	return err == nil
}

// RenderDOTSource renders dotText to format.
func RenderDOTSource(ctx context.Context, dotText string, format string) ([]byte, error) {
	if dotText == "" {
		return nil, fmt.Errorf("cannot render empty DOT text")
	}

	switch format {
	case "dot":
		return []byte(dotText), nil
	case "svg", "png":
		return renderWithGraphviz(ctx, dotText, format)
	default:
		return nil, fmt.Errorf("%w %q: supported formats are %s", ErrUnsupportedFormat, format, strings.Join(Formats, ", "))
	}
}

func renderWithGraphviz(ctx context.Context, dotText string, format string) ([]byte, error) {
	if !GraphvizAvailable() {
		return nil, fmt.Errorf("%w: install graphviz to render %s output", ErrGraphvizUnavailable, format)
	}

	cmd := exec.CommandContext(ctx, dotBinary, "-T"+format)
	cmd.Stdin = strings.NewReader(dotText)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("graphviz dot command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
