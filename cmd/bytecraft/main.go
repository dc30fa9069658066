package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"bytecraft/internal/classpath"
	"bytecraft/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// app holds the state shared by subcommands. cfg and log are resolved
// before any subcommand runs.
type app struct {
	configPath string
	logLevel   string
	classpath  []string

	cfg    *config.Config
	log    zerolog.Logger
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:   "bytecraft",
		Short: "Read, rewrite and analyze JVM class files",
		Long: `bytecraft parses JVM class files into visitor events, writes them back
with recomputed stack sizes and stack map frames, and renders control
flow and call graphs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "path to "+config.FileName+" (default: search upward from the working directory)")
	f.StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error, disabled")
	f.StringSliceVar(&a.classpath, "classpath", nil, "directories and jars used to resolve common superclasses")

	root.AddCommand(
		newRewriteCmd(a),
		newTraceCmd(a),
		newCFGCmd(a),
		newBatchCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) setup() error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		a.cfg.LogLevel = a.logLevel
	}
	if len(a.classpath) > 0 {
		a.cfg.Classpath = a.classpath
	}
	level, err := zerolog.ParseLevel(a.cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: a.stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
	a.log.Debug().Str("config", a.cfg.String()).Msg("configured")
	return nil
}

// hierarchy opens the configured class path plus extra entries. The
// caller closes it.
func (a *app) hierarchy(extra ...string) (*classpath.Path, error) {
	entries := append(append([]string(nil), a.cfg.Classpath...), extra...)
	return classpath.Open(entries...)
}

// closePath closes p and reports its error through err unless err is set.
func closePath(p *classpath.Path, err *error) {
	if cerr := p.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("close class path: %w", cerr)
	}
}
