package cmd

import (
	"fmt"
	"github.com/cottand/rqm/decls"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var CheckCmd = &cobra.Command{
	Use:          "check file.yaml",
	Short:        "Build the requirement machines of a declaration file and verify every canonical term",
	RunE:         runCheck,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var (
	checkFlags   *machineFlags
	checkVerbose *bool
)

func init() {
	checkFlags = addMachineFlags(CheckCmd)
	checkVerbose = CheckCmd.Flags().BoolP("verbose", "v", false, "print the machine dump of failures")
}

func runCheck(cmd *cobra.Command, args []string) error {
	checkFlags.apply()

	d, err := decls.Load(args[0])
	if err != nil {
		return err
	}
	opts, err := checkFlags.options(d.Options)
	if err != nil {
		return err
	}
	opts.VerifyTerms = true

	machines, err := buildMachines(d, opts, nil)
	if err != nil {
		return errors.New(describeError(err, *checkVerbose))
	}
	for i, m := range machines {
		if err := m.VerifyAll(); err != nil {
			return errors.Errorf("machine %d: %s", i+1, describeError(err, *checkVerbose))
		}
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d machines\n", len(machines))
	return nil
}
