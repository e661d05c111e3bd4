// ABOUTME: CLI subcommands: serve, validate, export, scenes and version.
// ABOUTME: File commands read a topology document from disk or stdin ("-").
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/2389-research/topoedit/dot"
	"github.com/2389-research/topoedit/render"
	"github.com/2389-research/topoedit/scene"
	"github.com/2389-research/topoedit/server"
	"github.com/2389-research/topoedit/topo"
	"github.com/fatih/color"
	"go.uber.org/zap"
)

var errValidationFailed = errors.New("validation failed")

// ServeCmd starts the HTTP API.
type ServeCmd struct {
	EnvFile string `name:"env-file" default:".env" help:"Load TOPOEDIT_* defaults from this file"`
	Home    string `help:"Data directory (overrides TOPOEDIT_HOME)"`
}

// Run executes the serve command.
func (c *ServeCmd) Run(rc *runContext) error {
	if err := server.LoadDotEnv(c.EnvFile); err != nil {
		return fmt.Errorf("load %s: %w", c.EnvFile, err)
	}
	cfg, err := server.ConfigFromEnv()
	if err != nil {
		return err
	}
	if cfg.Home, err = dataDir(c.Home); err != nil {
		return err
	}

	logger, err := server.NewLogger(cfg.Env)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	app, err := server.NewApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("close scene store", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	color.New(color.FgGreen).Fprintf(rc.Err, "topoedit listening on http://%s\n", cfg.Bind)
	return app.Run(ctx)
}

// ValidateCmd lints a topology file.
type ValidateCmd struct {
	File   string `arg:"" help:"Topology JSON file, or - for stdin"`
	Strict bool   `help:"Treat warnings as failures"`
}

// Run executes the validate command.
func (c *ValidateCmd) Run(rc *runContext) error {
	doc, err := readDocument(c.File)
	if err != nil {
		return err
	}

	diags := topo.Lint(doc)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	for _, d := range diags {
		p := yellow
		if d.Severity == "error" {
			p = red
		}
		p.Fprintf(rc.Out, "[%s] %s", d.Severity, d.Message)
		if d.NodeID != "" {
			fmt.Fprintf(rc.Out, " (node: %s)", d.NodeID)
		}
		if d.EdgeID != "" {
			fmt.Fprintf(rc.Out, " (edge: %s)", d.EdgeID)
		}
		fmt.Fprintf(rc.Out, " [%s]\n", d.Rule)
	}

	report, err := topo.Deserialize(topo.NewMemGraph(), doc)
	if err != nil {
		return err
	}
	for _, id := range report.SkippedEdges {
		yellow.Fprintf(rc.Out, "edge %s would be skipped on load\n", id)
	}
	for _, id := range report.DroppedParents {
		yellow.Fprintf(rc.Out, "node %s would lose its parent on load\n", id)
	}

	if topo.HasErrors(diags) || (c.Strict && len(diags) > 0) {
		red.Fprintln(rc.Out, "Validation failed.")
		return errValidationFailed
	}
	color.New(color.FgGreen).Fprintf(rc.Out, "✓ %s is valid (%d nodes, %d edges, %d groups)\n",
		displayName(c.File), len(doc.Nodes)-len(doc.Groups), len(doc.Edges), len(doc.Groups))
	return nil
}

// ExportCmd converts a topology file. Image formats need graphviz.
type ExportCmd struct {
	File   string `arg:"" help:"Topology JSON file, or - for stdin"`
	Format string `short:"f" default:"dot" enum:"dot,yaml,json,svg,png" help:"Output format (dot, yaml, json, svg, png)"`
	Output string `short:"o" help:"Write to this file instead of stdout"`
	Name   string `help:"Graph name used in dot output"`
}

// Run executes the export command.
func (c *ExportCmd) Run(rc *runContext) error {
	doc, err := readDocument(c.File)
	if err != nil {
		return err
	}

	var body []byte
	switch c.Format {
	case "yaml":
		body, err = topo.EncodeYAML(doc)
	case "json":
		body, err = topo.EncodeDocument(doc)
	default:
		name := c.Name
		if name == "" {
			name = graphName(c.File)
		}
		body, err = render.RenderDOTSource(context.Background(), dot.Serialize(dot.FromDocument(name, doc)), c.Format)
	}
	if err != nil {
		return err
	}

	if c.Output == "" {
		_, err = rc.Out.Write(body)
		return err
	}
	if err := os.WriteFile(c.Output, body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", c.Output, err)
	}
	color.New(color.FgGreen).Fprintf(rc.Err, "wrote %s\n", c.Output)
	return nil
}

// ScenesCmd lists the scenes in a server data directory.
type ScenesCmd struct {
	Home string `help:"Data directory (overrides TOPOEDIT_HOME)"`
}

// Run executes the scenes command.
func (c *ScenesCmd) Run(rc *runContext) error {
	home, err := dataDir(c.Home)
	if err != nil {
		return err
	}

	path := filepath.Join(home, "scenes.db")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no scene database at %s: %w", path, err)
	}
	store, err := scene.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	list, err := store.List(context.Background())
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(rc.Out, "No scenes saved.")
		return nil
	}

	tw := tabwriter.NewWriter(rc.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tNODES\tEDGES\tGROUPS\tUPDATED")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			s.ID, s.Name, s.Nodes, s.Edges, s.Groups, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

// VersionCmd prints the build version.
type VersionCmd struct{}

// Run executes the version command.
func (c *VersionCmd) Run(rc *runContext) error {
	fmt.Fprintf(rc.Out, "topoedit %s\n", Version)
	return nil
}

func readDocument(path string) (*topo.Document, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", displayName(path), err)
	}
	doc, err := topo.DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", displayName(path), err)
	}
	return doc, nil
}

func displayName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return path
}

// graphName derives a dot graph name from a file path.
func graphName(path string) string {
	if path == "-" {
		return "topology"
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
