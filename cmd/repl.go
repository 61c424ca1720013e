package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/matthoffner/wizardcoder-sandbox/internal/buffer"
	"github.com/matthoffner/wizardcoder-sandbox/internal/history"
	"github.com/matthoffner/wizardcoder-sandbox/internal/sandbox"
	"github.com/matthoffner/wizardcoder-sandbox/internal/ui"
)

const replHelp = `  :stop            cancel the streaming response
  :clear [on|off]  toggle clearing the editor after each iteration
  :auto [on|off]   toggle resubmitting the follow-up after each iteration
  :type <text>     type text at the editor cursor
  :undo            undo the last editor change
  :redo            redo the last undone change
  :show            print the editor contents
  :versions        list settled iterations
  :save <file>     write the editor contents to a file
  :recent [n]      list prompts from earlier sessions
  :reset-chat      clear the chat transcript
  :quit            exit`

// repl reads prompts and editor commands from in until :quit or EOF.
type repl struct {
	ctrl *sandbox.Controller
	doc  *buffer.Document
	echo *ui.EditorEcho
	in   io.Reader
	out  io.Writer
}

func newREPL(ctrl *sandbox.Controller, doc *buffer.Document, in io.Reader, out io.Writer) *repl {
	echo := ui.NewEditorEcho(out)
	ctrl.OnChange(echo.OnChange)
	ctrl.OnSessionEnd(func(sandbox.SessionSummary) { echo.Break() })
	return &repl{ctrl: ctrl, doc: doc, echo: echo, in: in, out: out}
}

var (
	promptColor = color.New(color.FgGreen)
	dimColor    = color.New(color.FgHiBlack)
)

func (r *repl) run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		promptColor.Fprint(os.Stderr, "  › ")
		var line string
		select {
		case <-ctx.Done():
			r.ctrl.Stop()
			return nil
		case l, ok := <-lines:
			if !ok {
				r.ctrl.Stop()
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, ":") {
			if err := r.ctrl.Submit(ctx, line); err != nil {
				fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
			}
			continue
		}
		quit, err := r.command(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
		}
		if quit {
			r.ctrl.Stop()
			return nil
		}
	}
}

func (r *repl) command(line string) (quit bool, err error) {
	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "quit", "exit", "q":
		return true, nil
	case "help", "h":
		fmt.Fprintln(os.Stderr, replHelp)
	case "stop":
		r.ctrl.Stop()
	case "clear":
		current, _ := r.ctrl.Modes()
		on, err := toggle(arg, current)
		if err != nil {
			return false, err
		}
		r.ctrl.SetClearMode(on)
		dimColor.Fprintf(os.Stderr, "  clear mode %s\n", onOff(on))
	case "auto":
		_, current := r.ctrl.Modes()
		on, err := toggle(arg, current)
		if err != nil {
			return false, err
		}
		r.ctrl.SetAutoMode(on)
		dimColor.Fprintf(os.Stderr, "  auto mode %s\n", onOff(on))
	case "type":
		if arg == "" {
			return false, errors.New("usage: :type <text>")
		}
		c := r.doc.Cursor()
		return false, r.ctrl.Edit(buffer.Edit{Start: c, End: c, Text: arg})
	case "undo":
		return false, r.ctrl.Undo()
	case "redo":
		return false, r.ctrl.Redo()
	case "show":
		content, lang := r.ctrl.Content()
		dimColor.Fprintf(os.Stderr, "── %s ──\n", lang)
		fmt.Fprintln(r.out, content)
	case "versions":
		records := r.ctrl.Records()
		if len(records) == 0 {
			dimColor.Fprintln(os.Stderr, "  no iterations yet")
		}
		for _, rec := range records {
			dimColor.Fprintf(os.Stderr, "  v%d ", rec.Index+1)
			fmt.Fprintf(os.Stderr, "%s ", rec.Prompt)
			dimColor.Fprintf(os.Stderr, "(%s, %d bytes)\n", rec.Language, len(rec.Content))
		}
	case "save":
		if arg == "" {
			return false, errors.New("usage: :save <file>")
		}
		content, _ := r.ctrl.Content()
		if err := os.WriteFile(arg, []byte(content), 0o644); err != nil {
			return false, err
		}
		dimColor.Fprintf(os.Stderr, "  saved %s\n", arg)
	case "recent":
		limit := 10
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n < 1 {
				return false, errors.New("usage: :recent [n]")
			}
			limit = n
		}
		prompts, err := history.Prompts(limit)
		if err != nil {
			return false, err
		}
		if len(prompts) == 0 {
			dimColor.Fprintln(os.Stderr, "  no prompts yet")
		}
		for i, p := range prompts {
			dimColor.Fprintf(os.Stderr, "  %2d ", i+1)
			fmt.Fprintln(r.out, p)
		}
	case "reset-chat":
		r.ctrl.ClearTranscript()
		dimColor.Fprintln(os.Stderr, "  chat cleared")
	default:
		return false, fmt.Errorf("unknown command :%s (try :help)", name)
	}
	return false, nil
}

func toggle(arg string, current bool) (bool, error) {
	switch arg {
	case "":
		return !current, nil
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", arg)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
