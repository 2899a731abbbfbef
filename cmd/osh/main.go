package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/asheshgoplani/osh/internal/codec"
	"github.com/asheshgoplani/osh/internal/config"
	"github.com/asheshgoplani/osh/internal/event"
	"github.com/asheshgoplani/osh/internal/loader"
	"github.com/asheshgoplani/osh/internal/logging"
	"github.com/asheshgoplani/osh/internal/store"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "0.3.0"

var cliLog = logging.ForComponent(logging.CompCLI)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one invocation and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	a.teardown()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// app is the state shared by every subcommand once setup has run.
type app struct {
	home string

	dir   string
	cfg   *config.Config
	dumps chan os.Signal
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "osh",
		Short: "Fuzzy search over your shell history",
		Long: `osh keeps shell history as append-only logs below ~/.osh and merges
every machine and session into one newest-first stream.

Examples:
  osh search --session-id "$OSH_SESSION"
  osh cat --unique
  osh append --starttime 1700000000.5 --endtime 1700000001 --command 'make test'`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.home, "home", "", "osh directory (default $OSH_HOME or ~/.osh)")

	root.AddCommand(
		newSearchCmd(a),
		newCatCmd(a),
		newAppendCmd(a),
		newConvertCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.home != "" {
		if err := os.Setenv(config.HomeEnv, a.home); err != nil {
			return fmt.Errorf("set %s: %w", config.HomeEnv, err)
		}
		config.ClearCache()
	}
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	a.dir = dir

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v (using defaults)\n", err)
	}
	a.cfg = cfg

	logging.Init(cfg.Logging(dir))
	log.SetFlags(0)
	log.SetOutput(logging.NewBridgeWriter(logging.CompCLI))
	a.watchDumpSignal()

	cliLog.Debug("command_started",
		slog.String("command", cmd.Name()),
		slog.Int("pid", os.Getpid()),
		slog.String("dir", dir))
	return nil
}

// watchDumpSignal writes the in-memory log to a crash dump on SIGUSR1.
func (a *app) watchDumpSignal() {
	if len(dumpSignals) == 0 {
		return
	}
	a.dumps = make(chan os.Signal, 1)
	signal.Notify(a.dumps, dumpSignals...)
	go func(ch <-chan os.Signal, dir string) {
		for range ch {
			path := filepath.Join(dir, fmt.Sprintf("crash-dump-%d.jsonl", time.Now().Unix()))
			if err := logging.DumpRingBuffer(path); err != nil {
				cliLog.Error("crash_dump_failed", slog.String("error", err.Error()))
				continue
			}
			cliLog.Info("crash_dump_written", slog.String("path", path))
		}
	}(a.dumps, a.dir)
}

func (a *app) teardown() {
	if a.dumps != nil {
		signal.Stop(a.dumps)
		close(a.dumps)
		a.dumps = nil
	}
	log.SetOutput(os.Stderr)
	logging.Shutdown()
}

// patterns picks the log encodings to read from [search] format.
func (a *app) patterns() ([]string, error) {
	switch strings.ToLower(strings.TrimSpace(a.cfg.Search.Format)) {
	case "", "auto", "both":
		return loader.DefaultPatterns(), nil
	}
	f, err := codec.ParseFormat(a.cfg.Search.Format)
	if err != nil {
		return nil, fmt.Errorf("[search] format: %w", err)
	}
	if f == codec.FormatBinary {
		return []string{loader.BinaryPattern}, nil
	}
	return []string{loader.TextPattern}, nil
}

// discover lists the logs below the osh directory.
func (a *app) discover() ([]string, error) {
	patterns, err := a.patterns()
	if err != nil {
		return nil, err
	}
	paths, err := loader.Discover(a.dir, patterns...)
	if err != nil {
		return nil, err
	}
	cliLog.Debug("logs_discovered", slog.Int("files", len(paths)))
	return paths, nil
}

// loadOptions builds loader options from [search] settings.
func (a *app) loadOptions(filter event.Filter, unique bool) (loader.Options, error) {
	mode, err := store.ParseMode(a.cfg.Search.Reader)
	if err != nil {
		return loader.Options{}, fmt.Errorf("[search] reader: %w", err)
	}
	strategy, err := loader.ParseStrategy(a.cfg.Search.Merge)
	if err != nil {
		return loader.Options{}, fmt.Errorf("[search] merge: %w", err)
	}
	return loader.Options{
		Mode:     mode,
		Filter:   filter,
		Strategy: strategy,
		Unique:   unique,
	}, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the osh version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "osh %s\n", Version)
		},
	}
}
