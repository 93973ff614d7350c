package root

import (
	"context"
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/docker/rulelawyer/pkg/app/export"
	"github.com/docker/rulelawyer/pkg/app/transcript"
	"github.com/docker/rulelawyer/pkg/cli"
	"github.com/docker/rulelawyer/pkg/paths"
	"github.com/docker/rulelawyer/pkg/session"
)

func newSessionCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Manage stored conversations",
		Example: `  rulelawyer session list
  rulelawyer session show 3f1c9a2e-...
  rulelawyer session export 3f1c9a2e-... -o grappling.html
  rulelawyer chat --session 3f1c9a2e-...`,
		GroupID: "manage",
	}

	cmd.AddCommand(newSessionListCmd(root))
	cmd.AddCommand(newSessionShowCmd(root))
	cmd.AddCommand(newSessionExportCmd(root))
	cmd.AddCommand(newSessionDeleteCmd(root))

	return cmd
}

// withSessions runs fn against the session store of the configured data
// directory.
func (f *rootFlags) withSessions(ctx context.Context, fn func(session.Store) error) error {
	settings, err := f.loadSettings()
	if err != nil {
		return err
	}
	store, err := session.NewSQLiteStore(ctx, paths.SessionsDB(settings.ResolvedDataDir()))
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newSessionListCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sessions, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cli.NewPrinter(cmd.OutOrStdout())

			return root.withSessions(cmd.Context(), func(store session.Store) error {
				sessions, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(sessions) == 0 {
					out.Println("No sessions yet.")
					return nil
				}

				maxLen := 0
				for _, s := range sessions {
					maxLen = max(maxLen, runewidth.StringWidth(s.Title))
				}
				for _, s := range sessions {
					padding := strings.Repeat(" ", maxLen-runewidth.StringWidth(s.Title))
					out.Printf("  %s  %s%s  %s\n", s.ID, s.Title, padding, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	}
}

func newSessionShowCmd(root *rootFlags) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a session with its reasoning steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cli.NewPrinter(cmd.OutOrStdout(), cli.WithPlain(plain))

			return root.withSessions(cmd.Context(), func(store session.Store) error {
				sess, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if plain {
					out.Println(transcript.PlainText(sess))
					return nil
				}
				out.PrintMarkdown(transcript.Markdown(sess))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print only questions and answers, as plain text")

	return cmd
}

func newSessionExportCmd(root *rootFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a session as a standalone HTML page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cli.NewPrinter(cmd.OutOrStdout())

			return root.withSessions(cmd.Context(), func(store session.Store) error {
				sess, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				path, err := export.ToFile(sess, output)
				if err != nil {
					return err
				}
				out.Printf("Session exported to %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: <title>-<timestamp>.html)")

	return cmd
}

func newSessionDeleteCmd(root *rootFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a session",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cli.NewPrinter(cmd.OutOrStdout())

			return root.withSessions(ctx, func(store session.Store) error {
				sess, err := store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if !yes && !out.Confirm(ctx, fmt.Sprintf("Delete session '%s'?", sess.Title), cmd.InOrStdin()) {
					out.Println("Aborted.")
					return nil
				}
				if err := store.Delete(ctx, sess.ID); err != nil {
					return err
				}
				out.Printf("Session '%s' deleted\n", sess.Title)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
