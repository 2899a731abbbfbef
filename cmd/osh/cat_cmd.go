package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/asheshgoplani/osh/internal/event"
	"github.com/asheshgoplani/osh/internal/follow"
	"github.com/asheshgoplani/osh/internal/loader"
	"github.com/asheshgoplani/osh/internal/ui"
)

func newCatCmd(a *app) *cobra.Command {
	var (
		unique    bool
		sessionID string
		followOn  bool
	)
	cmd := &cobra.Command{
		Use:   "cat",
		Short: "Print the merged history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runCat(cmd, unique, sessionID, followOn)
		},
	}
	cmd.Flags().BoolVar(&unique, "unique", false, "print only the most recent run of each command")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "only commands from this session")
	cmd.Flags().BoolVarP(&followOn, "follow", "f", false, "keep printing commands as they are appended")
	return cmd
}

// writeEvent prints one history line.
func writeEvent(w io.Writer, e event.Event, now time.Time) error {
	_, err := fmt.Fprintf(w, "%s --- %s\n", ui.RelativeTime(e.EndTime(), now), e.Command)
	return err
}

func (a *app) runCat(cmd *cobra.Command, unique bool, sessionID string, followOn bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	filter := event.BySession(sessionID)
	opts, err := a.loadOptions(filter, unique)
	if err != nil {
		return err
	}
	paths, err := a.discover()
	if err != nil {
		return err
	}

	var (
		events []event.Event
		f      *follow.Follower
	)
	if followOn {
		patterns, err := a.patterns()
		if err != nil {
			return err
		}
		f = follow.New(a.dir, filter, patterns...)
		seqs, err := f.Snapshot(ctx, paths, opts)
		if err != nil {
			return err
		}
		events = loader.Combine(seqs, opts)
	} else {
		events, err = loader.Load(ctx, paths, opts)
		if err != nil {
			return err
		}
	}

	w := bufio.NewWriter(cmd.OutOrStdout())
	now := time.Now()
	for _, e := range events {
		if err := writeEvent(w, e, now); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if f == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()
	for e := range f.Events() {
		if err := writeEvent(w, e, time.Now()); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return <-done
}
