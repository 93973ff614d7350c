package root

import (
	"github.com/spf13/cobra"

	"github.com/docker/rulelawyer/pkg/cli"
	"github.com/docker/rulelawyer/pkg/mcp"
	"github.com/docker/rulelawyer/pkg/server"
)

type mcpFlags struct {
	root       *rootFlags
	rec        recordFlags
	listenAddr string
}

func newMCPCmd(root *rootFlags) *cobra.Command {
	flags := mcpFlags{root: root}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start an MCP server with the rules tools",
		Long: `Expose ask_rules and search_rules as Model Context Protocol tools. The server
talks over stdio unless --listen is given, in which case it serves streamable HTTP.`,
		GroupID: "server",
		Args:    cobra.NoArgs,
		RunE:    flags.runMCPCommand,
	}

	cmd.Flags().StringVarP(&flags.listenAddr, "listen", "l", "", "Serve streamable HTTP on this address instead of stdio")
	flags.rec.register(cmd)

	return cmd
}

func (f *mcpFlags) runMCPCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, _, closeApp, err := f.root.openApp(ctx, &f.rec)
	if err != nil {
		return err
	}
	defer closeApp()

	if err := a.StartAgent(ctx); err != nil {
		return err
	}

	if f.listenAddr == "" {
		return mcp.ServeStdio(ctx, a)
	}

	ln, err := server.Listen(ctx, f.listenAddr)
	if err != nil {
		return err
	}
	defer ln.Close()

	cli.NewPrinter(cmd.ErrOrStderr()).Printf("MCP server listening on %s\n", server.URL(ln))
	return mcp.ServeHTTP(ctx, a, ln)
}
