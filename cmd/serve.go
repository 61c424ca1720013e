package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matthoffner/wizardcoder-sandbox/internal/buffer"
	"github.com/matthoffner/wizardcoder-sandbox/internal/diag"
	"github.com/matthoffner/wizardcoder-sandbox/internal/preview"
	"github.com/matthoffner/wizardcoder-sandbox/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sandbox with a live browser preview",
	Long: `Start an interactive session and serve a live preview of the editor buffer.
Open the printed address in a browser; the page swaps to each new render only
once it has finished loading.

With --chrome the preview is also rendered in headless Chrome.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		g, ctx := errgroup.WithContext(cmd.Context())
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		renderer, closeSurfaces, err := newRenderer(ctx, a)
		if err != nil {
			return err
		}
		defer closeSurfaces()

		ctrl, doc := a.newController(ui.NewChatPrinter(os.Stderr))
		defer ctrl.Close()

		feed := preview.NewFeed()
		ctrl.OnChange(func(c buffer.Change) { feed.Push(c.Value) })
		server := preview.NewServer(renderer, a.logger)

		cyan := color.New(color.FgCyan, color.Bold)
		fmt.Fprintln(os.Stderr)
		cyan.Fprintln(os.Stderr, "  wizard serve")
		dimColor.Fprintf(os.Stderr, "  preview at http://%s  (:help for commands)\n\n", a.cfg.Preview.Addr)

		g.Go(func() error {
			return server.ListenAndServe(ctx, a.cfg.Preview.Addr)
		})
		g.Go(func() error {
			feed.Run(ctx, renderer)
			return nil
		})
		g.Go(func() error {
			watchDiagnostics(ctx, a.bus)
			return nil
		})
		g.Go(func() error {
			defer cancel()
			return newREPL(ctrl, doc, os.Stdin, os.Stdout).run(ctx)
		})
		return g.Wait()
	},
}

// newRenderer picks headless Chrome tabs or in-memory surfaces.
func newRenderer(ctx context.Context, a *app) (*preview.Renderer, func(), error) {
	if !a.cfg.Preview.Chrome {
		r := preview.NewRenderer(preview.NewMemorySurface("front"), preview.NewMemorySurface("back"), a.logger, a.sink)
		return r, func() {}, nil
	}
	browser, err := preview.NewBrowser(ctx, preview.BrowserOptions{ExecPath: a.cfg.Preview.ChromePath, Logger: a.logger})
	if err != nil {
		return nil, nil, err
	}
	front, err := browser.NewSurface("front")
	if err != nil {
		browser.Close()
		return nil, nil, err
	}
	back, err := browser.NewSurface("back")
	if err != nil {
		browser.Close()
		return nil, nil, err
	}
	return preview.NewRenderer(front, back, a.logger, a.sink), browser.Close, nil
}

// watchDiagnostics prints the events a user would want to know about
// while the preview runs.
func watchDiagnostics(ctx context.Context, bus *diag.Bus) {
	sub, unsubscribe := bus.Subscribe(ctx,
		diag.EventMalformedFrame, diag.EventStalePush, diag.EventStreamError)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			dimColor.Fprintf(os.Stderr, "  [%s] %s\n", e.Type, e.Message)
		}
	}
}
