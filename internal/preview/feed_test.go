package preview

import (
	"context"
	"testing"
	"time"
)

func TestFeed_KeepsNewest(t *testing.T) {
	f := NewFeed()
	f.Push("a")
	f.Push("b")
	f.Push("c")

	a, b := NewMemorySurface("a"), NewMemorySurface("b")
	r := NewRenderer(a, b, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx, r)

	deadline := time.Now().Add(2 * time.Second)
	for r.Visible() != "c" {
		if time.Now().After(deadline) {
			t.Fatalf("expected c to become visible, got %q", r.Visible())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := len(a.Loads()) + len(b.Loads()); n != 1 {
		t.Errorf("superseded pushes should never load, got %d loads", n)
	}
}
