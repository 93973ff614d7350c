package root

import (
	"github.com/spf13/cobra"

	"github.com/docker/rulelawyer/pkg/cli"
	"github.com/docker/rulelawyer/pkg/server"
)

type serveFlags struct {
	root       *rootFlags
	rec        recordFlags
	listenAddr string
}

func newServeCmd(root *rootFlags) *cobra.Command {
	flags := serveFlags{root: root}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serve the HTTP API used by front ends: libraries, sessions, questions and a
websocket stream of the reasoning steps.`,
		Example: `  rulelawyer serve
  rulelawyer serve --listen unix:///tmp/rulelawyer.sock`,
		GroupID: "server",
		Args:    cobra.NoArgs,
		RunE:    flags.runServeCommand,
	}

	cmd.Flags().StringVarP(&flags.listenAddr, "listen", "l", server.DefaultAddr, "Address to listen on (host:port, unix://, npipe:// or fd://)")
	flags.rec.register(cmd)

	return cmd
}

func (f *serveFlags) runServeCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cli.NewPrinter(cmd.OutOrStdout())

	a, _, closeApp, err := f.root.openApp(ctx, &f.rec)
	if err != nil {
		return err
	}
	defer closeApp()

	if err := a.StartAgent(ctx); err != nil {
		return err
	}

	ln, err := server.Listen(ctx, f.listenAddr)
	if err != nil {
		return err
	}
	defer ln.Close()

	out.Printf("Listening on %s\n", server.URL(ln))

	srv := server.New(a, a.Libraries(), a.Sessions())
	return srv.Serve(ctx, ln)
}
