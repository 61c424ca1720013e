package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/matthoffner/wizardcoder-sandbox/internal/buffer"
	"github.com/matthoffner/wizardcoder-sandbox/internal/diag"
	"github.com/matthoffner/wizardcoder-sandbox/internal/preview"
	"github.com/matthoffner/wizardcoder-sandbox/internal/sandbox"
	"github.com/matthoffner/wizardcoder-sandbox/internal/ui"
)

var (
	runOut        string
	runIterations int
	runScreenshot string
)

var runCmd = &cobra.Command{
	Use:   "run <prompt>",
	Short: "Generate code for a prompt and write the settled result",
	Long: `Stream one prompt into a fresh editor buffer and print the settled content,
with markdown fences stripped. Piped stdin is appended to the prompt.

With --max-iterations above 1 the follow-up prompt is resubmitted after each
iteration, as in auto mode, and the last iteration is written.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := strings.Join(args, " ")
		if stdinData := readStdin(); stdinData != "" {
			prompt += "\n\n" + stdinData
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		malformed := countEvents(ctx, a.bus, diag.EventMalformedFrame)

		ctrl, _ := a.newController(nil)
		defer ctrl.Close()

		if runIterations < 1 {
			runIterations = 1
		}
		ctrl.SetAutoMode(runIterations > 1)

		var (
			settled atomic.Int32
			mu      sync.Mutex
			lastErr string
		)
		sp := ui.NewSpinner("Waiting for the first token...")
		ctrl.OnChange(func(c buffer.Change) {
			sp.Update(fmt.Sprintf("v%d  %s, %d bytes", settled.Load()+1, c.Language, len(c.Value)))
		})
		ctrl.OnSessionEnd(func(s sandbox.SessionSummary) {
			switch s.Status {
			case sandbox.StatusDone:
				if int(settled.Add(1)) >= runIterations-1 {
					ctrl.SetAutoMode(false)
				}
			case sandbox.StatusErrored:
				mu.Lock()
				lastErr = s.Err
				mu.Unlock()
			}
		})

		sp.Start()
		if err := ctrl.Submit(ctx, prompt); err != nil {
			sp.Fail(err.Error())
			return err
		}
		if err := ctrl.WaitIdle(ctx); err != nil {
			sp.Fail("interrupted")
			return err
		}

		content, lang := ctrl.Content()
		if records := ctrl.Records(); len(records) > 0 {
			last := records[len(records)-1]
			content, lang = last.Content, last.Language
		}

		mu.Lock()
		failure := lastErr
		mu.Unlock()
		if failure != "" {
			sp.Fail(failure)
		} else {
			sp.Success(fmt.Sprintf("%d iteration(s), %s, %d bytes", settled.Load(), lang, len(content)))
		}
		if n := malformed(); n > 0 {
			color.New(color.FgYellow).Fprintf(os.Stderr, "  ⚠ skipped %d malformed frame(s)\n", n)
		}

		if err := writeOutput(runOut, content); err != nil {
			return err
		}
		if runScreenshot != "" {
			if err := screenshot(ctx, a, content, runScreenshot); err != nil {
				return err
			}
		}
		if failure != "" {
			return errors.New(failure)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "Write the result to a file instead of stdout")
	runCmd.Flags().IntVarP(&runIterations, "max-iterations", "n", 1, "Number of iterations; above 1 enables auto mode")
	runCmd.Flags().StringVar(&runScreenshot, "screenshot", "", "Render the result in headless Chrome and save a PNG")
}

func writeOutput(path, content string) error {
	if path == "" {
		fmt.Fprint(os.Stdout, content)
		if !strings.HasSuffix(content, "\n") {
			fmt.Fprintln(os.Stdout)
		}
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	dimColor.Fprintf(os.Stderr, "  wrote %s\n", path)
	return nil
}

// screenshot renders content through the double-buffered renderer and
// captures whichever tab ends up visible.
func screenshot(ctx context.Context, a *app, content, path string) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	sp := ui.NewSpinner("Rendering preview...")
	sp.Start()
	browser, err := preview.NewBrowser(ctx, preview.BrowserOptions{ExecPath: a.cfg.Preview.ChromePath, Logger: a.logger})
	if err != nil {
		sp.Fail("could not start chrome")
		return err
	}
	defer browser.Close()

	front, err := browser.NewSurface("front")
	if err != nil {
		sp.Fail("could not open tab")
		return err
	}
	back, err := browser.NewSurface("back")
	if err != nil {
		sp.Fail("could not open tab")
		return err
	}
	r := preview.NewRenderer(front, back, a.logger, a.sink)
	swapped := make(chan struct{}, 1)
	r.OnSwap(func(string) {
		select {
		case swapped <- struct{}{}:
		default:
		}
	})
	r.Update(content)

	select {
	case <-swapped:
	case <-ctx.Done():
		sp.Fail("timed out rendering preview")
		return ctx.Err()
	}

	png, err := r.Front().(*preview.ChromeSurface).Screenshot()
	if err != nil {
		sp.Fail("screenshot failed")
		return err
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		sp.Fail("could not save screenshot")
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	sp.Success("saved " + path)
	return nil
}

// countEvents counts events of type t published from now on. The count is
// read from the subscription buffer when the returned func is called.
func countEvents(ctx context.Context, bus *diag.Bus, t diag.EventType) func() int {
	sub, _ := bus.Subscribe(ctx, t)
	n := 0
	return func() int {
		for {
			select {
			case _, ok := <-sub.C:
				if !ok {
					return n
				}
				n++
			default:
				return n
			}
		}
	}
}

// readStdin reads piped input if available.
func readStdin() string {
	info, err := os.Stdin.Stat()
	if err != nil {
		return ""
	}
	if (info.Mode() & os.ModeCharDevice) != 0 {
		return ""
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return ""
	}
	s := strings.TrimSpace(string(data))
	// Keep the prompt a reasonable size.
	if len(s) > 8000 {
		s = s[:8000] + "\n... (truncated)"
	}
	return s
}
