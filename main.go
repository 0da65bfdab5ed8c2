package main

import (
	"context"
	"github.com/cottand/rqm/cmd"
	"github.com/spf13/cobra"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "rqm [subcommand]",
	Short:        "rqm builds confluent rewrite systems from generic requirements",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(cmd.DumpCmd)
	rootCmd.AddCommand(cmd.CheckCmd)
}
