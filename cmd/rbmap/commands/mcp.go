package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rbmap/pkg/mcp"
	"github.com/Sumatoshi-tech/rbmap/pkg/observability"
)

// mcpTreeName labels the gauges of the session tree.
const mcpTreeName = "mcp"

// NewMCPCommand creates the MCP server command.
func NewMCPCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server keeps one ordered set of integers for the session and exposes it
as tools that AI agents can discover and invoke:
  - rbmap_insert, rbmap_erase: mutate the set
  - rbmap_find, rbmap_list: query it in order
  - rbmap_check: validate the red-black invariants and report the shape
  - rbmap_clear: empty the set`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := opts.open(cmd, observability.ModeMCP)
			if err != nil {
				return err
			}
			defer sess.close()

			gauge, err := observability.NewTreeMetrics(sess.providers.Meter, mcpTreeName)
			if err != nil {
				return err
			}

			sess.gauges = append(sess.gauges, gauge)

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:      sess.providers.Logger,
				Metrics:     sess.red,
				TreeMetrics: gauge,
				Tracer:      sess.providers.Tracer,
				Allocator:   sess.allocators.GetShard(mcpTreeName),
			})

			return srv.Run(cmd.Context())
		},
	}
}
