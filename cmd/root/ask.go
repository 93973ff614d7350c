package root

import (
	"context"
	"log/slog"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/docker/rulelawyer/pkg/agent"
	"github.com/docker/rulelawyer/pkg/app"
	"github.com/docker/rulelawyer/pkg/cli"
)

type askFlags struct {
	root      *rootFlags
	rec       recordFlags
	sessionID string
	plain     bool
	copy      bool
	hideTrace bool
}

func newAskCmd(root *rootFlags) *cobra.Command {
	flags := askFlags{root: root}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one rules question",
		Long:  "Search the active library over several rounds, then print the answer with its sources.",
		Example: `  rulelawyer ask "How does grappling work?"
  rulelawyer ask --session 3f1c... "And what about shoving?"`,
		GroupID: "core",
		Args:    cobra.MinimumNArgs(1),
		RunE:    flags.runAskCommand,
	}

	cmd.Flags().StringVarP(&flags.sessionID, "session", "s", "", "Store the exchange in this session and use its memory")
	cmd.Flags().BoolVar(&flags.plain, "plain", false, "Print the answer as plain text")
	cmd.Flags().BoolVar(&flags.copy, "copy", false, "Copy the answer to the clipboard")
	cmd.Flags().BoolVar(&flags.hideTrace, "hide-trace", false, "Do not print the reasoning steps")
	flags.rec.register(cmd)

	return cmd
}

func (f *askFlags) runAskCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cli.NewPrinter(cmd.OutOrStdout(), cli.WithPlain(f.plain))

	var opts []app.Opt
	if !f.hideTrace {
		opts = append(opts, app.WithOnStep(out.PrintStep))
	}

	a, _, closeApp, err := f.root.openApp(ctx, &f.rec, opts...)
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
		if err := a.UseSession(ctx, f.sessionID); err != nil {
			return err
		}
	}

	conv := &answerCapture{Conversation: a}
	cfg := cli.Config{
		AppName:   AppName,
		HideTrace: f.hideTrace,
		Streamed:  true,
	}
	if err := cli.Ask(ctx, out, cfg, conv, strings.Join(args, " ")); err != nil {
		return err
	}

	if f.copy && conv.answer != "" {
		if err := clipboard.WriteAll(conv.answer); err != nil {
			slog.Warn("Failed to copy answer", "error", err)
			out.PrintError(err)
		} else {
			out.Println("\nAnswer copied to the clipboard.")
		}
	}
	return nil
}

// answerCapture remembers the last successful answer.
type answerCapture struct {
	cli.Conversation
	answer string
}

func (c *answerCapture) Ask(ctx context.Context, question string) (*agent.Result, error) {
	res, err := c.Conversation.Ask(ctx, question)
	if err == nil && res != nil {
		c.answer = res.Answer
	}
	return res, err
}
