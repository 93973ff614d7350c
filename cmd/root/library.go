package root

import (
	"fmt"
	"os"
	"strings"

	"github.com/docker/go-units"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/docker/rulelawyer/pkg/cli"
	"github.com/docker/rulelawyer/pkg/library"
	"github.com/docker/rulelawyer/pkg/rag/prompts"
	"github.com/docker/rulelawyer/pkg/rag/types"
)

const previewSnippetLength = 200

func newLibraryCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "library",
		Aliases: []string{"lib"},
		Short:   "Manage rules libraries",
		Long:    "Import rulebooks into libraries and choose the one questions are answered from.",
		Example: `  # Import a compiled help archive and make it active
  rulelawyer library import ./srd.chm --title "SRD 5.1" --use

  # Import an already extracted directory of HTML pages
  rulelawyer library import ./srd-html --title "SRD 5.1"

  # List libraries and switch
  rulelawyer library list
  rulelawyer library use 3f1c9a2e`,
		GroupID: "manage",
	}

	cmd.AddCommand(newLibraryListCmd(root))
	cmd.AddCommand(newLibraryCreateCmd(root))
	cmd.AddCommand(newLibraryImportCmd(root))
	cmd.AddCommand(newLibraryPreviewCmd(root))
	cmd.AddCommand(newLibraryUseCmd(root))
	cmd.AddCommand(newLibraryDeleteCmd(root))

	return cmd
}

func (f *rootFlags) openLibraries() (*library.Manager, error) {
	settings, err := f.loadSettings()
	if err != nil {
		return nil, err
	}
	return library.NewManager(settings.ResolvedDataDir())
}

func newLibraryListCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List libraries",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cli.NewPrinter(cmd.OutOrStdout())

			settings, err := root.loadSettings()
			if err != nil {
				return err
			}
			libraries, err := library.NewManager(settings.ResolvedDataDir())
			if err != nil {
				return err
			}
			libs, err := libraries.List()
			if err != nil {
				return err
			}

			if len(libs) == 0 {
				out.Println("No libraries yet.")
				out.Println("\nImport one with: rulelawyer library import <archive-or-dir> --title <title>")
				return nil
			}

			out.Printf("Libraries (%d):\n\n", len(libs))

			// Titles are often CJK, so pad by display width
			maxLen := 0
			for _, meta := range libs {
				maxLen = max(maxLen, runewidth.StringWidth(meta.Title))
			}

			for _, meta := range libs {
				marker := " "
				if meta.ID == settings.ActiveLibrary {
					marker = "*"
				}
				padding := strings.Repeat(" ", maxLen-runewidth.StringWidth(meta.Title))
				out.Printf("%s %s  %s%s  %5d docs  %8s  %s\n",
					marker, meta.ID, meta.Title, padding, meta.DocCount,
					documentsSize(libraries, meta.ID), meta.CreatedAt.Format("2006-01-02"))
			}
			return nil
		},
	}
}

func documentsSize(libraries *library.Manager, id string) string {
	path, err := libraries.DocumentsPath(id)
	if err != nil {
		return "-"
	}
	info, err := os.Stat(path)
	if err != nil {
		return "-"
	}
	return units.HumanSize(float64(info.Size()))
}

func newLibraryCreateCmd(root *rootFlags) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create an empty library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cli.NewPrinter(cmd.OutOrStdout())

			libraries, err := root.openLibraries()
			if err != nil {
				return err
			}
			meta, err := libraries.Create(args[0], description)
			if err != nil {
				return err
			}
			out.Printf("Library '%s' created with id %s\n", meta.Title, meta.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Description of the library")

	return cmd
}

func newLibraryImportCmd(root *rootFlags) *cobra.Command {
	var (
		title       string
		description string
		use         bool
	)

	cmd := &cobra.Command{
		Use:   "import <archive-or-dir>",
		Short: "Import HTML rule pages into a new library",
		Long: `Import a compiled help archive (unpacked with the configured 7-Zip binary) or a
directory of HTML pages. Every page with enough text becomes one document.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cli.NewPrinter(cmd.OutOrStdout())

			a, settings, closeApp, err := root.openApp(ctx, nil)
			if err != nil {
				return err
			}
			defer closeApp()

			meta, err := a.Import(ctx, title, description, args[0], func(p types.Progress) {
				out.PrintProgress(p)
			})
			if err != nil {
				return err
			}
			out.Printf("\nLibrary '%s' imported with id %s (%d documents)\n", meta.Title, meta.ID, meta.DocCount)

			if use {
				settings.ActiveLibrary = meta.ID
				if err := root.saveSettings(settings); err != nil {
					return fmt.Errorf("failed to save settings: %w", err)
				}
				out.Println("It is now the active library.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Title of the library")
	cmd.Flags().StringVar(&description, "description", "", "Description of the library")
	cmd.Flags().BoolVar(&use, "use", false, "Make the imported library active")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func newLibraryPreviewCmd(root *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "preview <id>",
		Short: "Show the first documents of a library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cli.NewPrinter(cmd.OutOrStdout())

			libraries, err := root.openLibraries()
			if err != nil {
				return err
			}
			docs, err := libraries.Preview(args[0], limit)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				out.Println("The library has no documents.")
				return nil
			}

			for i, d := range docs {
				out.Printf("%d. %s", i+1, d.Key())
				if d.Title() != "" {
					out.Printf(" (%s)", d.Title())
				}
				out.Println()
				out.Printf("   %s\n", prompts.Preview(d.Content, previewSnippetLength))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Number of documents to show")

	return cmd
}

func newLibraryUseCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Answer questions from this library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cli.NewPrinter(cmd.OutOrStdout())

			settings, err := root.loadSettings()
			if err != nil {
				return err
			}
			libraries, err := library.NewManager(settings.ResolvedDataDir())
			if err != nil {
				return err
			}
			meta, err := libraries.Get(args[0])
			if err != nil {
				return err
			}
			if meta.DocCount == 0 {
				return fmt.Errorf("library %s has no documents, import some first", meta.ID)
			}

			settings.ActiveLibrary = meta.ID
			if err := root.saveSettings(settings); err != nil {
				return fmt.Errorf("failed to save settings: %w", err)
			}
			out.Printf("Active library: %s (%s)\n", meta.Title, meta.ID)
			return nil
		},
	}
}

func newLibraryDeleteCmd(root *rootFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a library and its documents",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cli.NewPrinter(cmd.OutOrStdout())

			settings, err := root.loadSettings()
			if err != nil {
				return err
			}
			libraries, err := library.NewManager(settings.ResolvedDataDir())
			if err != nil {
				return err
			}
			meta, err := libraries.Get(args[0])
			if err != nil {
				return err
			}

			if !yes && !out.Confirm(ctx, fmt.Sprintf("Delete library '%s' (%d documents)?", meta.Title, meta.DocCount), cmd.InOrStdin()) {
				out.Println("Aborted.")
				return nil
			}

			if err := libraries.Delete(meta.ID); err != nil {
				return err
			}
			if settings.ActiveLibrary == meta.ID {
				settings.ActiveLibrary = ""
				if err := root.saveSettings(settings); err != nil {
					return fmt.Errorf("failed to save settings: %w", err)
				}
			}
			out.Printf("Library '%s' deleted\n", meta.Title)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
