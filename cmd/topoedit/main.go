// ABOUTME: Entry point for the topoedit CLI: parses arguments with kong and runs the chosen command.
// ABOUTME: Commands write through a bound runContext so tests can capture their output.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
)

// Version is set at build time via ldflags.
var Version = "dev"

// runContext carries the output streams every command writes to.
type runContext struct {
	Out io.Writer
	Err io.Writer
}

// CLI is the root kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`

	Serve    ServeCmd    `cmd:"" help:"Run the topology editing API server"`
	Validate ValidateCmd `cmd:"" help:"Check a topology document for structural problems"`
	Export   ExportCmd   `cmd:"" help:"Convert a topology document to dot, yaml, json or an image"`
	Scenes   ScenesCmd   `cmd:"" help:"List scenes saved by the server"`
	Show     VersionCmd  `cmd:"" name:"version" help:"Print the version"`
}

func newParser(cli *CLI, rc *runContext) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("topoedit"),
		kong.Description("Cyber-range topology editor backend"),
		kong.UsageOnError(),
		kong.Writers(rc.Out, rc.Err),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
		kong.Bind(rc),
	)
}

// run parses args and executes the selected command.
func run(args []string, rc *runContext) error {
	cli := &CLI{}
	parser, err := newParser(cli, rc)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kctx.Run()
}

func main() {
	rc := &runContext{Out: os.Stdout, Err: os.Stderr}
	if err := run(os.Args[1:], rc); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
