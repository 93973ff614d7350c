package root

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/docker/rulelawyer/pkg/app"
	"github.com/docker/rulelawyer/pkg/cli"
	"github.com/docker/rulelawyer/pkg/history"
)

type chatFlags struct {
	root      *rootFlags
	rec       recordFlags
	sessionID string
	plain     bool
	hideTrace bool
	noWatch   bool
}

func newChatCmd(root *rootFlags) *cobra.Command {
	flags := chatFlags{root: root}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk about the rules, with memory of the last exchanges",
		Long: `Start an interactive conversation over the active library. Every exchange is
stored in a session. Type /reset to clear the context, /new to start a new
session, /history to list earlier questions, !N to ask one again and /exit
to leave.`,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE:    flags.runChatCommand,
	}

	cmd.Flags().StringVarP(&flags.sessionID, "session", "s", "", "Resume a stored session")
	cmd.Flags().BoolVar(&flags.plain, "plain", false, "Print answers as plain text")
	cmd.Flags().BoolVar(&flags.hideTrace, "hide-trace", false, "Do not print the reasoning steps")
	cmd.Flags().BoolVar(&flags.noWatch, "no-watch", false, "Do not reload the library when it changes on disk")
	flags.rec.register(cmd)

	return cmd
}

func (f *chatFlags) runChatCommand(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	out := cli.NewPrinter(cmd.OutOrStdout(), cli.WithPlain(f.plain))

	opts := []app.Opt{
		app.WithOnReload(func(id string, docs int, err error) {
			if err != nil {
				out.PrintError(err)
				return
			}
			out.Printf("\nLibrary %s reloaded (%d documents).\n", id, docs)
		}),
	}
	if !f.hideTrace {
		opts = append(opts, app.WithOnStep(out.PrintStep))
	}

	a, settings, closeApp, err := f.root.openApp(ctx, &f.rec, opts...)
	if err != nil {
		return err
	}
	defer closeApp()

	if err := a.StartAgent(ctx); err != nil {
		return err
	}
	if a.Library() == "" {
		return app.ErrNoActiveLibrary
	}

	if f.sessionID != "" {
		err = a.UseSession(ctx, f.sessionID)
	} else {
		err = a.NewSession(ctx)
	}
	if err != nil {
		return err
	}

	if !f.noWatch {
		go func() {
			if err := a.WatchLibrary(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("Library watcher stopped", "error", err)
			}
		}()
	}

	label := a.Library()
	if meta, err := a.Libraries().Get(label); err == nil {
		label = meta.Title
	}

	hist, err := history.Load(history.Path(settings.ResolvedDataDir()))
	if err != nil {
		slog.Warn("Ignoring unreadable question history", "error", err)
		hist = nil
	}

	cfg := cli.Config{
		AppName:   AppName,
		Library:   label,
		HideTrace: f.hideTrace,
		Streamed:  true,
	}
	if hist != nil {
		cfg.History = hist
	}
	return cli.Run(ctx, out, cfg, a, cmd.InOrStdin())
}
