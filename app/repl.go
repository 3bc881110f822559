package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"mercurial/modes"
	"mercurial/session"
	"mercurial/stream"
	"mercurial/ui"

	"github.com/peterh/liner"
)

// LineReader is the REPL's input. Console implements it.
type LineReader interface {
	Prompt(prompt string) (string, error)
}

// REPL is an interactive chat on one session. Replies stream to out as they
// arrive.
type REPL struct {
	app     *App
	in      LineReader
	out     io.Writer
	printer *ui.Printer
	session *session.Session

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewREPL starts a session in mode (empty selects the configured default).
func (a *App) NewREPL(in LineReader, out io.Writer, width int, mode string) (*REPL, error) {
	sess, err := a.Sessions.Create(mode)
	if err != nil {
		return nil, err
	}
	return &REPL{
		app:     a,
		in:      in,
		out:     out,
		printer: ui.NewPrinter(out, width),
		session: sess,
	}, nil
}

func (r *REPL) Session() *session.Session {
	return r.session
}

// Run reads lines until /quit, end of input or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, ui.TitleStyle.Render("Mercurial "+r.app.Version)+" "+
		ui.DimStyle.Render(fmt.Sprintf("(%s, mode %s). /help for commands.", r.app.Provider.GetModel(), r.session.Mode().ID)))

	for ctx.Err() == nil {
		line, err := r.in.Prompt(r.prompt())
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return err
		}
		if quit := r.Handle(ctx, line); quit {
			return nil
		}
	}
	return nil
}

func (r *REPL) prompt() string {
	return fmt.Sprintf("[%s] > ", r.session.Mode().ID)
}

// Interrupt cancels the reply in flight. It reports whether there was one.
func (r *REPL) Interrupt() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.cancel = nil
	return true
}

// Handle runs one line of input: a slash command or a message. It reports
// whether the REPL should exit.
func (r *REPL) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		r.send(ctx, line)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/q", "/exit":
		return true
	case "/help", "/h":
		fmt.Fprintln(r.out, ui.FormatHelp(
			"/mode <id>", "Switch mode",
			"/modes", "List modes",
			"/model [name]", "Show or set model",
			"/clear", "Clear history",
			"/reset", "Clear and restore default mode",
			"/quit", "Exit",
		))
		fmt.Fprintln(r.out, ui.DimStyle.Render(`Start a message with "code" to save its code blocks in general mode. Ctrl-C cancels a reply.`))
	case "/modes":
		ui.RenderModes(r.out, modes.All(), r.session.Mode().ID)
	case "/mode":
		if arg == "" {
			fmt.Fprintf(r.out, "mode: %s\n", r.session.Mode().ID)
			break
		}
		if err := r.session.SetMode(arg); err != nil {
			fmt.Fprintln(r.out, ui.ErrorStyle.Render(err.Error()))
			break
		}
		fmt.Fprintln(r.out, ui.SuccessStyle.Render("mode: "+string(r.session.Mode().ID)))
	case "/model":
		if arg != "" {
			r.app.Provider.SetModel(arg)
		}
		fmt.Fprintf(r.out, "model: %s\n", r.app.Provider.GetModel())
	case "/clear":
		r.session.Clear(false)
		fmt.Fprintln(r.out, ui.DimStyle.Render("History cleared."))
	case "/reset":
		r.session.Clear(true)
		fmt.Fprintln(r.out, ui.DimStyle.Render("History cleared, mode "+string(r.session.Mode().ID)+"."))
	default:
		fmt.Fprintln(r.out, ui.WarningStyle.Render("unknown command "+cmd+", /help lists commands"))
	}
	return false
}

func (r *REPL) send(ctx context.Context, input string) {
	turn, err := r.session.Begin(ctx, input)
	if err != nil {
		fmt.Fprintln(r.out, ui.ErrorStyle.Render(err.Error()))
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
		cancel()
	}()

	_, err = r.app.Relay.Run(ctx, turn, r.printer)
	if errors.Is(err, stream.ErrCancelled) {
		fmt.Fprintln(r.out, "\n"+ui.WarningStyle.Render("[cancelled]"))
	}
}
