package cmd

import (
	"github.com/cottand/rqm/decls"
	"github.com/cottand/rqm/internal/config"
	"github.com/cottand/rqm/internal/log"
	"github.com/cottand/rqm/reqmachine"
	"github.com/cottand/rqm/rewriting"
	"github.com/cottand/rqm/signatures"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"io"
	"log/slog"
	"os"
	"strings"
)

// machineFlags are the flags shared by every command building machines
type machineFlags struct {
	logLevel    *int
	logSections *[]string
	steps       *int
	depth       *int
}

func addMachineFlags(c *cobra.Command) *machineFlags {
	return &machineFlags{
		logLevel:    c.Flags().IntP("log-level", "l", int(slog.LevelError), "log level"),
		logSections: c.Flags().StringSlice("log-sections", nil, "sections to log below warn level, eg completion,propertymap"),
		steps:       c.Flags().Int("steps", 0, "completion step limit, overriding the declaration file"),
		depth:       c.Flags().Int("depth", 0, "completion depth limit, overriding the declaration file"),
	}
}

func (f *machineFlags) apply() {
	log.SetLevel(slog.Level(*f.logLevel))
	if len(*f.logSections) > 0 {
		log.EnableSections(*f.logSections...)
	}
}

func (f *machineFlags) options(fromFile config.Options) (config.Options, error) {
	opts := fromFile.Override(config.Options{StepLimit: *f.steps, DepthLimit: *f.depth})
	return opts, opts.Validate()
}

// buildMachines builds a machine for every protocol component of d, then for
// the component and the signature d declares
func buildMachines(d *decls.Declarations, opts config.Options, diags *reqmachine.Diagnostics) ([]*reqmachine.Machine, error) {
	log.DefaultLogger.Debug("building machines", "decls", d, "steps", opts.StepLimit, "depth", opts.DepthLimit)
	ctx := rewriting.NewContext()
	computer := signatures.NewComputer(ctx, opts, diags)
	if err := computer.Compute(d.Module); err != nil {
		return computer.Machines, err
	}
	machines := computer.Machines

	if len(d.Component) > 0 {
		m := reqmachine.New(ctx, opts, diags)
		if err := m.InitWithProtocols(d.Component); err != nil {
			return machines, errors.Wrap(err, "could not build declared component")
		}
		machines = append(machines, m)
	}
	if d.HasSignature {
		_, m, err := computer.Signature(d.Params, d.Requirements)
		if err != nil {
			return machines, err
		}
		machines = append(machines, m)
	}
	return machines, nil
}

// describeError renders coded errors with their code, and with the machine dump when verbose
func describeError(err error, verbose bool) string {
	var coded reqmachine.CodedError
	if !errors.As(err, &coded) {
		return err.Error()
	}
	sb := strings.Builder{}
	sb.WriteString(reqmachine.FormatWithCode(coded))
	if verbose && coded.Dump() != "" {
		sb.WriteString("\n")
		sb.WriteString(coded.Dump())
	}
	return sb.String()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func heading(w io.Writer, text string) string {
	if isTerminal(w) {
		return "\x1b[1;36m" + text + "\x1b[0m"
	}
	return text
}
