package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/asheshgoplani/osh/internal/config"
	"github.com/asheshgoplani/osh/internal/event"
	"github.com/asheshgoplani/osh/internal/index"
	"github.com/asheshgoplani/osh/internal/loader"
	"github.com/asheshgoplani/osh/internal/pool"
	"github.com/asheshgoplani/osh/internal/ui"
)

type searchFlags struct {
	query     string
	sessionID string
	folder    string
	filters   []string
	unique    bool
	showScore bool
}

func newSearchCmd(a *app) *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Pick a command from history interactively",
		Long: `Opens the interactive search on the terminal and prints the accepted
command to stdout. Nothing is printed when the search is cancelled.

Keys: enter accept, esc/ctrl-c cancel, up/down move, ctrl-u duplicates,
ctrl-s session, ctrl-f folder, ctrl-e successful only, ctrl-x scores.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSearch(cmd, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.query, "query", "q", "", "initial query")
	fl.StringVar(&f.sessionID, "session-id", "", "session the session filter compares against")
	fl.StringVar(&f.folder, "folder", "", "folder the folder filter compares against (default: working directory)")
	fl.StringSliceVar(&f.filters, "filter", nil, "filters active at start: duplicates, session_id, folder, exit_code_success")
	fl.BoolVar(&f.unique, "unique", false, "drop older runs of a command while loading")
	fl.BoolVar(&f.showScore, "show-score", false, "show match scores")
	return cmd
}

// searchFilters combines the configured filters with those named on the
// command line.
func searchFilters(configured, flagged []string) (index.FilterSet, error) {
	names := append(append([]string(nil), configured...), flagged...)
	return index.ParseFilterSet(names)
}

func (a *app) runSearch(cmd *cobra.Command, f searchFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	filters, err := searchFilters(a.cfg.Search.Filters, f.filters)
	if err != nil {
		return err
	}
	folder := f.folder
	if folder == "" {
		if wd, err := os.Getwd(); err == nil {
			folder = wd
		}
	}

	paths, err := a.discover()
	if err != nil {
		return err
	}
	opts, err := a.loadOptions(nil, f.unique)
	if err != nil {
		return err
	}
	// the whole history is read before the terminal is taken over, so a
	// broken log is reported on a clean screen
	seqs, err := loader.LoadFiles(ctx, paths, opts)
	if err != nil {
		return err
	}

	produceCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch := make(chan event.Event, 1024)
	if opts.Strategy == loader.FullSort || (opts.Strategy == loader.Auto && !loader.Sorted(seqs)) {
		go loader.Produce(produceCtx, loader.Combine(seqs, opts), ch)
	} else {
		go loader.ProduceMerged(produceCtx, seqs, f.unique, ch)
	}
	collector := pool.Collect(ch)

	var themes *ui.ThemeWatcher
	if a.cfg.ThemeName() == "system" {
		themes = ui.NewThemeWatcher(ctx)
	}

	e, ok, err := ui.Run(ctx, collector, ui.RunOptions{
		Options: ui.Options{
			Query:     f.query,
			Filters:   filters,
			Scope:     index.Scope{SessionID: f.sessionID, Folder: folder},
			ShowScore: f.showScore || a.cfg.Search.ShowScore,
			Themes:    themes,
		},
		Theme: a.cfg.ResolveTheme(),
		Color: os.Getenv(config.ColorEnv),
	})
	cancel()
	if err != nil {
		return err
	}
	if !ok {
		cliLog.Debug("search_cancelled")
		return nil
	}
	cliLog.Debug("search_accepted", slog.String("session", e.Session))
	_, err = fmt.Fprintln(cmd.OutOrStdout(), e.Command)
	return err
}
