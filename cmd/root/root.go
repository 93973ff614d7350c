package root

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docker/rulelawyer/pkg/app"
	"github.com/docker/rulelawyer/pkg/cli"
	"github.com/docker/rulelawyer/pkg/logging"
	"github.com/docker/rulelawyer/pkg/model/provider"
	"github.com/docker/rulelawyer/pkg/paths"
	"github.com/docker/rulelawyer/pkg/userconfig"
)

const AppName = "rulelawyer"

type rootFlags struct {
	enableOtel   bool
	debugMode    bool
	logFilePath  string
	settingsPath string
	logFile      io.Closer
}

func NewRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   AppName,
		Short: "rulelawyer - answers tabletop rules questions from your rulebooks",
		Long: `rulelawyer imports HTML rulebooks into libraries and answers questions about them,
refining its search over several rounds before writing an answer with sources.`,
		Example: `  rulelawyer library import ./srd.chm --title "SRD 5.1" --use
  rulelawyer ask "How does grappling work?"
  rulelawyer chat`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.setupLogging(); err != nil {
				// Fall back to stderr so the logs are not lost
				slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})))
				slog.Warn("Failed to open log file", "error", err)
			}

			if flags.enableOtel {
				if err := initOTelSDK(cmd.Context()); err != nil {
					slog.Warn("Failed to initialize OpenTelemetry SDK", "error", err)
				} else {
					slog.Debug("OpenTelemetry SDK initialized successfully")
				}
			}

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if flags.logFile != nil {
				if err := flags.logFile.Close(); err != nil {
					slog.Error("Failed to close log file", "error", err)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.debugMode, "debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flags.enableOtel, "otel", "o", false, "Enable OpenTelemetry tracing")
	cmd.PersistentFlags().StringVar(&flags.logFilePath, "log-file", "", "Path to debug log file (default: ~/.rulelawyer/rulelawyer.debug.log; only used with --debug)")
	cmd.PersistentFlags().StringVar(&flags.settingsPath, "settings", "", "Path to the settings file (default: ~/.config/rulelawyer/settings.yaml)")

	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands:"})
	cmd.AddGroup(&cobra.Group{ID: "manage", Title: "Management Commands:"})
	cmd.AddGroup(&cobra.Group{ID: "server", Title: "Server Commands:"})

	cmd.AddCommand(newAskCmd(&flags))
	cmd.AddCommand(newChatCmd(&flags))
	cmd.AddCommand(newLibraryCmd(&flags))
	cmd.AddCommand(newSessionCmd(&flags))
	cmd.AddCommand(newConfigCmd(&flags))
	cmd.AddCommand(newServeCmd(&flags))
	cmd.AddCommand(newMCPCmd(&flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func Execute(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args ...string) error {
	rootCmd := NewRootCmd()
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(defaultToChat(rootCmd, args))
	setContextRecursive(ctx, rootCmd)

	if err := rootCmd.Execute(); err != nil {
		return processErr(ctx, err, stderr, rootCmd)
	}
	return nil
}

func setContextRecursive(ctx context.Context, cmd *cobra.Command) {
	cmd.SetContext(ctx)
	for _, child := range cmd.Commands() {
		setContextRecursive(ctx, child)
	}
}

// defaultToChat prepends "chat" when no subcommand is given, so a bare
// "rulelawyer" (or "rulelawyer --debug") opens the conversation. Help flags
// are left alone. Other words are taken as flag values.
func defaultToChat(rootCmd *cobra.Command, args []string) []string {
	for _, arg := range args {
		switch {
		case arg == "--help" || arg == "-h":
			return args
		case isSubcommand(rootCmd, arg):
			return args
		}
	}

	return append([]string{"chat"}, args...)
}

// isSubcommand reports whether name matches a registered subcommand or alias.
func isSubcommand(cmd *cobra.Command, name string) bool {
	switch name {
	case "help", "completion", "__complete", "__completeNoDesc":
		return true
	}
	for _, sub := range cmd.Commands() {
		if sub.Name() == name || sub.HasAlias(name) {
			return true
		}
	}
	return false
}

func processErr(ctx context.Context, err error, stderr io.Writer, rootCmd *cobra.Command) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, provider.ErrMissingAPIKey):
		fmt.Fprintln(stderr, err)
		fmt.Fprintln(stderr, "\nEither:\n - Set it with 'rulelawyer config set api_key <key>'\n - Store it in the keyring with 'rulelawyer config set-key <provider>'\n - Export the environment variable before running rulelawyer")
	case errors.Is(err, app.ErrNoActiveLibrary):
		fmt.Fprintln(stderr, err)
	default:
		if _, ok := errors.AsType[cli.RuntimeError](err); ok {
			// Already printed by the command itself
			break
		}
		fmt.Fprintln(stderr, err)
		fmt.Fprintln(stderr)
		if strings.HasPrefix(err.Error(), "unknown command ") || strings.HasPrefix(err.Error(), "accepts ") {
			_ = rootCmd.Usage()
		}
	}

	return err
}

// setupLogging configures slog logging behavior. With --debug, logs go to a
// rotating file in the data directory or to --log-file.
func (f *rootFlags) setupLogging() error {
	path := cmp.Or(strings.TrimSpace(f.logFilePath), paths.DebugLog(paths.GetDataDir()))

	closer, err := logging.Setup(f.debugMode, path)
	if err != nil {
		return err
	}
	f.logFile = closer
	return nil
}

// loadSettings reads the settings file named by --settings, or the default one.
func (f *rootFlags) loadSettings() (*userconfig.Settings, error) {
	if f.settingsPath != "" {
		return userconfig.LoadFrom(f.settingsPath)
	}
	return userconfig.Load()
}

func (f *rootFlags) saveSettings(s *userconfig.Settings) error {
	if f.settingsPath != "" {
		return s.SaveTo(f.settingsPath)
	}
	return s.Save()
}
