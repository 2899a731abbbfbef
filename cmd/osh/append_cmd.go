package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/asheshgoplani/osh/internal/event"
	"github.com/asheshgoplani/osh/internal/store"
)

type appendFlags struct {
	start    float64
	end      float64
	command  string
	folder   string
	exitCode int16
	machine  string
	session  string
	file     string
}

func newAppendCmd(a *app) *cobra.Command {
	var f appendFlags
	cmd := &cobra.Command{
		Use:   "append",
		Short: "Record one executed command",
		Long: `Appends one command to the local history log. Shell hooks call this after
every command; times are Unix seconds and may be fractional.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := f.event()
			if err != nil {
				return err
			}
			path := a.cfg.AppendPath(a.dir)
			if f.file != "" {
				path = f.file
				if !filepath.IsAbs(path) {
					path = filepath.Join(a.dir, path)
				}
			}
			if err := store.Append(path, e); err != nil {
				return err
			}
			cliLog.Debug("command_recorded", slog.String("path", path), slog.Int("exit_code", int(e.ExitCode)))
			return nil
		},
	}
	fl := cmd.Flags()
	fl.Float64Var(&f.start, "starttime", 0, "start time in Unix seconds")
	fl.Float64Var(&f.end, "endtime", 0, "end time in Unix seconds (default: start time)")
	fl.StringVar(&f.command, "command", "", "command line")
	fl.StringVar(&f.folder, "folder", "", "working directory (default: current directory)")
	fl.Int16Var(&f.exitCode, "exit-code", 0, "exit status")
	fl.StringVar(&f.machine, "machine", "", "machine id (default: hostname)")
	fl.StringVar(&f.session, "session", "", "shell session id (default: a new random id)")
	fl.StringVar(&f.file, "file", "", "log to append to, relative to the osh directory (default: [append] file)")
	_ = cmd.MarkFlagRequired("starttime")
	_ = cmd.MarkFlagRequired("command")
	return cmd
}

// event builds the record, filling defaults from the environment.
func (f appendFlags) event() (event.Event, error) {
	if math.IsNaN(f.start) || math.IsInf(f.start, 0) {
		return event.Event{}, fmt.Errorf("invalid --starttime %v", f.start)
	}
	duration := 0.0
	if f.end != 0 {
		if math.IsNaN(f.end) || math.IsInf(f.end, 0) {
			return event.Event{}, fmt.Errorf("invalid --endtime %v", f.end)
		}
		duration = f.end - f.start
	}

	e := event.Event{
		StartTime: unixSeconds(f.start),
		Command:   f.command,
		Duration:  duration,
		ExitCode:  f.exitCode,
		Folder:    f.folder,
		Machine:   f.machine,
		Session:   f.session,
	}
	if e.Folder == "" {
		if wd, err := os.Getwd(); err == nil {
			e.Folder = wd
		}
	}
	if e.Machine == "" {
		if host, err := os.Hostname(); err == nil {
			e.Machine = host
		}
	}
	if e.Session == "" {
		e.Session = uuid.NewString()
	}
	return e, nil
}

// unixSeconds converts fractional Unix seconds to a time, keeping
// microsecond precision.
func unixSeconds(s float64) time.Time {
	return time.UnixMicro(int64(math.Round(s * 1e6)))
}
