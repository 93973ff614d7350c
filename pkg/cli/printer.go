package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"charm.land/glamour/v2"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/docker/rulelawyer/pkg/agent"
	"github.com/docker/rulelawyer/pkg/input"
	"github.com/docker/rulelawyer/pkg/rag/types"
)

const (
	defaultWidth = 80
	maxWidth     = 120
)

type palette struct {
	bold  *color.Color
	faint *color.Color
	kinds map[agent.TraceKind]*color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		bold:  color.New(color.Bold),
		faint: color.New(color.Faint),
		kinds: map[agent.TraceKind]*color.Color{
			agent.KindThink:    color.New(color.FgMagenta),
			agent.KindLoop:     color.New(color.FgCyan, color.Bold),
			agent.KindSystem:   color.New(color.FgBlue),
			agent.KindAction:   color.New(color.FgYellow),
			agent.KindDecision: color.New(color.FgGreen),
			agent.KindError:    color.New(color.FgRed, color.Bold),
		},
	}
	for _, c := range append([]*color.Color{p.bold, p.faint}, slices.Collect(maps.Values(p.kinds))...) {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

var stepIcons = map[agent.TraceKind]string{
	agent.KindThink:    "💭",
	agent.KindLoop:     "🔄",
	agent.KindSystem:   "⚙️",
	agent.KindAction:   "🚫",
	agent.KindDecision: "⚖️",
	agent.KindError:    "❌",
}

type Printer struct {
	out      io.Writer
	colors   palette
	plain    bool
	width    int
	renderer *glamour.TermRenderer
}

type PrinterOpt func(*Printer)

// WithPlain prints answers as they are instead of rendering markdown.
func WithPlain(plain bool) PrinterOpt {
	return func(p *Printer) {
		p.plain = plain
	}
}

func WithWidth(width int) PrinterOpt {
	return func(p *Printer) {
		p.width = width
	}
}

// WithColor forces colours on or off. By default they are on when out is a
// terminal.
func WithColor(enabled bool) PrinterOpt {
	return func(p *Printer) {
		p.colors = newPalette(enabled)
	}
}

func NewPrinter(out io.Writer, opts ...PrinterOpt) *Printer {
	tty := isTerminal(out)
	p := &Printer{
		out:    out,
		colors: newPalette(tty),
		plain:  !tty,
		width:  terminalWidth(out),
	}
	for _, opt := range opts {
		opt(p)
	}

	if !p.plain {
		r, err := glamour.NewTermRenderer(
			glamour.WithWordWrap(min(p.width, maxWidth)),
			glamour.WithStandardStyle("dark"),
		)
		if err == nil {
			p.renderer = r
		}
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultWidth
}

func (p *Printer) Println(a ...any) {
	fmt.Fprintln(p.out, a...)
}

func (p *Printer) Print(a ...any) {
	fmt.Fprint(p.out, a...)
}

func (p *Printer) Printf(format string, a ...any) {
	fmt.Fprintf(p.out, format, a...)
}

// PrintWelcomeMessage prints the chat banner.
func (p *Printer) PrintWelcomeMessage(appName, library string) {
	p.Printf("\n------- Welcome to %s! -------\n", p.colors.bold.Sprint(appName))
	if library != "" {
		p.Printf("Library: %s\n", p.colors.bold.Sprint(library))
	}
	p.Println("Commands: /reset clears the context, /new starts a session, /exit quits.")
	p.Println()
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) {
	p.Printf("%s %s\n", stepIcons[agent.KindError], p.colors.kinds[agent.KindError].Sprint(err))
}

// PrintStep prints one trace entry as it happens.
func (p *Printer) PrintStep(e agent.TraceEntry) {
	p.Println(p.formatStep(e))
}

func (p *Printer) formatStep(e agent.TraceEntry) string {
	c, ok := p.colors.kinds[e.Kind]
	if !ok {
		c = p.colors.faint
	}
	icon := stepIcons[e.Kind]
	if icon == "" {
		icon = "•"
	}
	label := e.Label
	if label == "" {
		label = string(e.Kind)
	}
	return fmt.Sprintf("%s %s %s", icon, c.Sprintf("[%s]", label), e.Content)
}

// PrintTrace prints a whole recorded trace.
func (p *Printer) PrintTrace(trace []agent.TraceEntry) {
	for _, e := range trace {
		p.PrintStep(e)
	}
}

// PrintAnswer prints the final answer, rendered as markdown on terminals.
func (p *Printer) PrintAnswer(answer string) {
	p.Printf("\n%s\n", p.colors.bold.Sprint("Answer"))
	p.PrintMarkdown(answer)
}

// PrintMarkdown renders markdown on terminals and prints it as is otherwise.
func (p *Printer) PrintMarkdown(md string) {
	if p.renderer != nil {
		if rendered, err := p.renderer.Render(md); err == nil {
			p.Print(rendered)
			return
		}
	}
	p.Println(strings.TrimSpace(md))
}

// PrintSources prints the final pool as a numbered list.
func (p *Printer) PrintSources(pool []agent.DocSnapshot) {
	p.Printf("\n%s\n", p.colors.bold.Sprint("Sources"))
	if len(pool) == 0 {
		p.Println("  (none)")
		return
	}
	for i, doc := range pool {
		p.Printf("  %d. %s", i+1, doc.Path)
		if doc.Source != "" && doc.Source != doc.Path {
			p.Printf(" %s", p.colors.faint.Sprintf("(%s)", doc.Source))
		}
		p.Println()
		if doc.Snippet != "" {
			p.Printf("     %s\n", p.colors.faint.Sprint(doc.Snippet))
		}
	}
}

// PrintResult prints the answer and its sources, or the failure.
func (p *Printer) PrintResult(res *agent.Result) {
	if res == nil {
		return
	}
	if res.Err != nil {
		p.PrintError(res.Err)
		return
	}
	p.PrintAnswer(res.Answer)
	p.PrintSources(res.Pool)
}

// PrintProgress prints one ingestion progress update.
func (p *Printer) PrintProgress(progress types.Progress) {
	p.Printf("[%3.0f%%] %s\n", progress.Fraction*100, progress.Message)
}

// Confirm asks a yes/no question. On a terminal a single key press answers;
// otherwise a line is read from rd. Anything but yes is a no.
func (p *Printer) Confirm(ctx context.Context, question string, rd io.Reader) bool {
	p.Printf("%s", p.colors.bold.Sprintf("%s (y/n): ", question))

	if f, ok := rd.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		fd := int(f.Fd())
		if oldState, err := term.MakeRaw(fd); err == nil {
			defer func() {
				if err := term.Restore(fd, oldState); err != nil {
					p.Printf("\nFailed to restore terminal state: %v\n", err)
				}
			}()
			buf := make([]byte, 1)
			for {
				if _, err := f.Read(buf); err != nil {
					return false
				}
				switch buf[0] {
				case 'y', 'Y':
					p.Print("yes\r\n")
					return true
				case 'n', 'N', 3: // 3 is Ctrl+C
					p.Print("no\r\n")
					return false
				}
			}
		}
	}

	text, err := input.ReadLine(ctx, rd)
	if err != nil {
		p.Println()
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(text))
	return answer == "y" || answer == "yes"
}

// PromptSecret reads a value without echoing it when rd is a terminal.
func (p *Printer) PromptSecret(ctx context.Context, prompt string, rd io.Reader) (string, error) {
	p.Print(prompt)

	if f, ok := rd.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		secret, err := term.ReadPassword(int(f.Fd()))
		p.Println()
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return strings.TrimSpace(string(secret)), nil
	}

	text, err := input.ReadLine(ctx, rd)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
