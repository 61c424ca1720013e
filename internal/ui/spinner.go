// Package ui provides terminal UI helpers.
package ui

import (
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// Spinner wraps a terminal spinner for loading states.
type Spinner struct {
	s *spinner.Spinner
	w io.Writer
}

// NewSpinner creates a spinner with the given message on stderr.
func NewSpinner(msg string) *Spinner {
	return NewSpinnerTo(os.Stderr, msg)
}

// NewSpinnerTo creates a spinner writing to w.
func NewSpinnerTo(w io.Writer, msg string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = "  " + msg
	s.Color("cyan")
	return &Spinner{s: s, w: w}
}

// Start begins the spinner animation.
func (sp *Spinner) Start() {
	sp.s.Start()
}

// Update replaces the message shown next to the spinner.
func (sp *Spinner) Update(msg string) {
	sp.s.Lock()
	sp.s.Suffix = "  " + msg
	sp.s.Unlock()
}

// Stop halts the spinner and clears the line.
func (sp *Spinner) Stop() {
	sp.s.Stop()
}

// Success stops the spinner and prints a green check.
func (sp *Spinner) Success(msg string) {
	sp.s.Stop()
	color.New(color.FgGreen).Fprintf(sp.w, "  ✓ %s\n", msg)
}

// Fail stops the spinner and prints a red cross.
func (sp *Spinner) Fail(msg string) {
	sp.s.Stop()
	color.New(color.FgRed).Fprintf(sp.w, "  ✗ %s\n", msg)
}
