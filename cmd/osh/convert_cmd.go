package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/asheshgoplani/osh/internal/codec"
	"github.com/asheshgoplani/osh/internal/loader"
	"github.com/asheshgoplani/osh/internal/store"
)

func newConvertCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Write a binary copy of every text log",
		Long: `Converts each *.osh text log below the osh directory into a sibling
*.bosh binary log with the same records in the same order. Existing binary
logs are left alone unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := loader.Discover(a.dir, loader.TextPattern)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, src := range paths {
				dst := strings.TrimSuffix(src, codec.TextExt) + codec.BinaryExt
				if _, err := os.Stat(dst); err == nil && !force {
					fmt.Fprintf(out, "skip %s (exists)\n", dst)
					continue
				}
				n, err := convertLog(cmd, src, dst)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s -> %s (%d events)\n", src, dst, n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing binary logs")
	return cmd
}

// convertLog rewrites the text log src as a binary log at dst. The new file
// only appears once complete.
func convertLog(cmd *cobra.Command, src, dst string) (int, error) {
	events, err := store.Open(src, store.Streaming).ReadAll(cmd.Context(), nil)
	if err != nil {
		return 0, err
	}

	tmp := dst + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmp, err)
	}
	sink := store.NewWriterSink(f, codec.FormatBinary)
	for _, e := range events {
		if err = sink.Write(e); err != nil {
			break
		}
	}
	if err == nil {
		err = f.Sync()
	}
	if err = errors.Join(err, sink.Close()); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("write %s: %w", dst, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("finalize %s: %w", dst, err)
	}
	cliLog.Info("log_converted", slog.String("src", src), slog.String("dst", dst), slog.Int("events", len(events)))
	return len(events), nil
}
