package root

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docker/rulelawyer/pkg/cli"
	"github.com/docker/rulelawyer/pkg/environment"
	"github.com/docker/rulelawyer/pkg/model/provider"
	"github.com/docker/rulelawyer/pkg/userconfig"
)

func newConfigCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and change settings",
		Example: `  rulelawyer config show
  rulelawyer config set provider anthropic
  rulelawyer config set-key anthropic
  rulelawyer config test`,
		GroupID: "manage",
	}

	cmd.AddCommand(newConfigShowCmd(root))
	cmd.AddCommand(newConfigSetCmd(root))
	cmd.AddCommand(newConfigSetKeyCmd())
	cmd.AddCommand(newConfigTestCmd(root))

	return cmd
}

func newConfigShowCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print every setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cli.NewPrinter(cmd.OutOrStdout())

			settings, err := root.loadSettings()
			if err != nil {
				return err
			}

			path := root.settingsPath
			if path == "" {
				path = userconfig.Path()
			}
			out.Printf("Settings file: %s\n\n", path)

			for _, key := range userconfig.Keys() {
				value, err := settings.Get(key)
				if err != nil {
					return err
				}
				if key == "api_key" {
					value = settings.MaskedAPIKey()
				}
				out.Printf("  %-22s %s\n", key, value)
			}
			return nil
		},
	}
}

func newConfigSetCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Long:  "Change one setting. Keys: " + strings.Join(userconfig.Keys(), ", ") + ".",
		Args:  cobra.ExactArgs(2),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return userconfig.Keys(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cli.NewPrinter(cmd.OutOrStdout())

			settings, err := root.loadSettings()
			if err != nil {
				return err
			}
			if err := settings.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := root.saveSettings(settings); err != nil {
				return fmt.Errorf("failed to save settings: %w", err)
			}
			out.Printf("%s updated\n", args[0])
			return nil
		},
	}
}

func newConfigSetKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "set-key <provider>",
		Short:     "Store a provider API key in the system keyring",
		Args:      cobra.ExactArgs(1),
		ValidArgs: provider.Names,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cli.NewPrinter(cmd.OutOrStdout())

			name := strings.ToLower(args[0])
			if !slices.Contains(provider.Names, name) {
				return fmt.Errorf("%w: %q", provider.ErrUnknownProvider, args[0])
			}

			secret, err := out.PromptSecret(ctx, fmt.Sprintf("%s API key: ", name), cmd.InOrStdin())
			if err != nil {
				return err
			}
			if secret == "" {
				return errors.New("no key entered")
			}

			ring, err := environment.OpenKeyring()
			if err != nil {
				return fmt.Errorf("opening keyring: %w", err)
			}
			if err := ring.Set(provider.APIKeyEnv(name), secret); err != nil {
				return fmt.Errorf("storing key: %w", err)
			}
			out.Printf("%s stored in the keyring\n", provider.APIKeyEnv(name))
			return nil
		},
	}
}

func newConfigTestCmd(root *rootFlags) *cobra.Command {
	var rec recordFlags

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Check that the configured model answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cli.NewPrinter(cmd.OutOrStdout())

			a, _, closeApp, err := root.openApp(ctx, &rec)
			if err != nil {
				return err
			}
			defer closeApp()

			p, err := a.NewProvider(ctx)
			if err != nil {
				return err
			}
			out.Printf("Testing %s...\n", p.ID())

			reply, err := provider.TestConnection(ctx, p)
			if err != nil {
				out.PrintError(err)
				return cli.RuntimeError{Err: err}
			}
			out.Printf("Connection OK: %s\n", strings.TrimSpace(reply))
			return nil
		},
	}
	rec.register(cmd)

	return cmd
}
