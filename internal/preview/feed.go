package preview

import "context"

// Feed hands content from a producer that must not block, such as a
// buffer change listener, to a Renderer. Only the newest value is kept.
type Feed struct {
	ch chan string
}

func NewFeed() *Feed {
	return &Feed{ch: make(chan string, 1)}
}

// Push replaces any value not yet taken by Run.
func (f *Feed) Push(content string) {
	for {
		select {
		case f.ch <- content:
			return
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

// Run forwards pushed content to r until ctx is cancelled.
func (f *Feed) Run(ctx context.Context, r *Renderer) {
	for {
		select {
		case <-ctx.Done():
			return
		case content := <-f.ch:
			r.Update(content)
		}
	}
}
