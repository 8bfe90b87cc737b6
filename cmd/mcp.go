package cmd

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kmcaloon/groqcache/internal/mcpserver"
)

func newMCPCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the result cache and the query engine as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := o.newPipeline(nil)
			p.ReloadFragments()
			s := mcpserver.New(version, p.Cache, p.Adapter, p.Dataset)
			o.logger.Info("mcp.start", "cache", o.cfg.CacheRoot())
			return server.ServeStdio(s)
		},
	}
}
