package cmd

import (
	"fmt"
	"github.com/cottand/rqm/decls"
	"github.com/cottand/rqm/internal/log"
	"github.com/cottand/rqm/reqmachine"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"io"
	"path/filepath"
)

var DumpCmd = &cobra.Command{
	Use:          "dump file.yaml",
	Short:        "Build the requirement machines of a declaration file and print them",
	RunE:         runDump,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var (
	dumpFlags *machineFlags
	dumpWatch *bool
)

func init() {
	dumpFlags = addMachineFlags(DumpCmd)
	dumpWatch = DumpCmd.Flags().BoolP("watch", "w", false, "rebuild whenever the file changes")
}

func runDump(cmd *cobra.Command, args []string) error {
	dumpFlags.apply()
	path := args[0]
	out := cmd.OutOrStdout()

	if !*dumpWatch {
		return dumpFile(out, path)
	}
	if err := dumpFile(out, path); err != nil {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), describeError(err, false))
	}
	return watch(cmd, path, func() {
		if err := dumpFile(out, path); err != nil {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), describeError(err, false))
		}
	})
}

func dumpFile(out io.Writer, path string) error {
	d, err := decls.Load(path)
	if err != nil {
		return err
	}
	opts, err := dumpFlags.options(d.Options)
	if err != nil {
		return err
	}
	stats := &reqmachine.Stats{}
	machines, err := buildMachines(d, opts, &reqmachine.Diagnostics{Stats: stats})
	for i, m := range machines {
		_, _ = fmt.Fprintln(out, heading(out, fmt.Sprintf("# machine %d", i+1)))
		if err := m.Dump(out); err != nil {
			return errors.Wrap(err, "could not write dump")
		}
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%d machines, %d completion steps, %d unified concrete terms\n",
		stats.NumRequirementMachines.Load(), stats.NumCompletionSteps.Load(), stats.NumUnifiedConcreteTerms.Load())
	return nil
}

// watch calls rebuild whenever path is written, until the command's context is done.
// The parent directory is watched, since editors often replace files on save.
func watch(cmd *cobra.Command, path string, rebuild func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "could not start watching")
	}
	defer func() { _ = w.Close() }()

	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "could not get absolute path of target")
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return errors.Wrapf(err, "could not watch %s", path)
	}
	log.DefaultLogger.Info("watching", "path", abs)

	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			rebuild()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.DefaultLogger.Warn("watch error", "err", err)
		}
	}
}
