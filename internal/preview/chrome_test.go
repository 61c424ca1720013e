package preview

import (
	"context"
	"os/exec"
	"testing"
	"time"
)

func requireChrome(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no chrome binary found")
}

func TestChromeRenderer(t *testing.T) {
	requireChrome(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	browser, err := NewBrowser(ctx, BrowserOptions{})
	if err != nil {
		t.Fatalf("NewBrowser: %v", err)
	}
	defer browser.Close()

	front, err := browser.NewSurface("front")
	if err != nil {
		t.Fatalf("NewSurface: %v", err)
	}
	back, err := browser.NewSurface("back")
	if err != nil {
		t.Fatalf("NewSurface: %v", err)
	}

	r := NewRenderer(front, back, nil, nil)
	swapped := make(chan string, 1)
	r.OnSwap(func(c string) { swapped <- c })
	r.Update("<h1>hello</h1>")

	select {
	case got := <-swapped:
		if got != "<h1>hello</h1>" {
			t.Errorf("unexpected content %q", got)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for swap")
	}

	png, err := r.Front().(*ChromeSurface).Screenshot()
	if err != nil {
		t.Fatalf("Screenshot: %v", err)
	}
	if len(png) == 0 {
		t.Error("expected screenshot bytes")
	}
}
