// Package cli implements the httpbridge command line, a thin driver over the
// scalar bridge used for smoke tests and scripting.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/samvad-hq/httpbridge/internal/app"
	"github.com/samvad-hq/httpbridge/internal/config"
	"github.com/samvad-hq/httpbridge/pkg/bridge"
)

var version = "dev"

// Options are the global flags.
type Options struct {
	ConfigFile  string
	LogLevel    string
	ShowMetrics bool
}

// CLI holds the state shared by all commands.
type CLI struct {
	opts Options
	out  io.Writer
	err  io.Writer

	// loadConfig is replaced in tests.
	loadConfig func(file string) (*config.Config, error)
}

// New creates a CLI writing to stdout and stderr.
func New() *CLI {
	return &CLI{out: os.Stdout, err: os.Stderr, loadConfig: config.LoadFrom}
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	c := New()
	cmd := c.RootCommand()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		color.New(color.FgRed).Fprintf(c.err, "error: %v\n", err)
	}
	return ExitCode(err)
}

// RootCommand builds the command tree.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "httpbridge",
		Short: "Issue HTTP requests through the httpbridge engine",
		Long: `httpbridge drives the same engine the shared library exports:
each request yields a handle whose body is streamed back in chunks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(c.out)
	root.SetErr(c.err)

	flags := root.PersistentFlags()
	flags.StringVar(&c.opts.ConfigFile, "config", os.Getenv(config.ConfigFileVar), "config file (yaml, json or toml)")
	flags.StringVar(&c.opts.LogLevel, "log-level", "warn", "log level for engine diagnostics (overrides log_level)")
	flags.BoolVar(&c.opts.ShowMetrics, "metrics", false, "print engine metrics to stderr when done")

	for _, m := range []string{"GET", "POST", "PUT", "PATCH", "DELETE"} {
		root.AddCommand(c.requestCommand(m))
	}
	root.AddCommand(c.runCommand())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "httpbridge version %s\n", version)
		},
	})
	return root
}

// withBridge builds a runtime for one command, shuts it down afterwards and
// also shuts it down early when ctx is cancelled, so an interrupted request
// returns instead of hanging.
func (c *CLI) withBridge(ctx context.Context, fn func(b *bridge.Bridge) error) error {
	cfg, err := c.loadConfig(c.opts.ConfigFile)
	if err != nil {
		return exitErr(ExitConfigError, fmt.Errorf("load config: %w", err))
	}
	if c.opts.LogLevel != "" {
		cfg.LogLevel = c.opts.LogLevel
		if err := cfg.Validate(); err != nil {
			return exitErr(ExitConfigError, err)
		}
	}

	rt, err := app.Open(cfg)
	if err != nil {
		return exitErr(ExitConfigError, err)
	}
	b := bridge.New(rt)

	stop := context.AfterFunc(ctx, b.Shutdown)
	defer stop()
	defer func() {
		if c.opts.ShowMetrics {
			c.printMetrics(rt)
		}
		b.Shutdown()
	}()

	return fn(b)
}

func (c *CLI) printMetrics(rt *app.Runtime) {
	families, err := rt.Metrics().Registry().Gather()
	if err != nil {
		fmt.Fprintf(c.err, "gather metrics: %v\n", err)
		return
	}
	enc := expfmt.NewEncoder(c.err, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			fmt.Fprintf(c.err, "encode metrics: %v\n", err)
			return
		}
	}
}

func lastError(b *bridge.Bridge) string {
	msg, _ := b.LastErrorMessage()
	return msg
}
