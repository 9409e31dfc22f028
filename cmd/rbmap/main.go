// Package main provides the entry point for the rbmap CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rbmap/cmd/rbmap/commands"
	"github.com/Sumatoshi-tech/rbmap/pkg/version"
)

func main() {
	opts := &commands.Options{}

	rootCmd := &cobra.Command{
		Use:   "rbmap",
		Short: "rbmap - red-black ordered set tooling",
		Long: `rbmap replays operation scripts against a red-black tree and inspects the result.

Commands:
  run       Replay a script and print a summary
  check     Replay a script, validating the tree after every mutation
  dump      Print the tree shape (tree, json, yaml)
  stats     Print tree and arena statistics
  plot      Render the depth histogram as HTML
  diff      Compare the contents of two replayed scripts
  mcp       Serve the tree over the Model Context Protocol`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default: rbmap.yaml in ., ./config, /etc/rbmap)")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "suppress output")

	commands.Register(rootCmd, opts)
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
