package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/matthoffner/wizardcoder-sandbox/internal/sandbox"
)

// ChatPrinter writes transcript messages to a terminal, coloured by role.
type ChatPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewChatPrinter(w io.Writer) *ChatPrinter {
	return &ChatPrinter{w: w}
}

var (
	userColor   = color.New(color.FgCyan, color.Bold)
	systemColor = color.New(color.FgYellow)
	wizardColor = color.New(color.FgMagenta, color.Bold)
	errorColor  = color.New(color.FgRed)
)

// Append implements sandbox.ChatSink.
func (p *ChatPrinter) Append(m sandbox.ChatMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch m.Role {
	case sandbox.RoleUser:
		userColor.Fprintf(p.w, "  you › %s\n", m.Content)
	case sandbox.RoleWizard:
		wizardColor.Fprintf(p.w, "  🪄 %s\n", m.Content)
	case sandbox.RoleSystem:
		if strings.HasPrefix(m.Content, "error:") {
			errorColor.Fprintf(p.w, "  %s\n", m.Content)
			return
		}
		systemColor.Fprintf(p.w, "  %s\n", m.Content)
	default:
		fmt.Fprintf(p.w, "  %s\n", m.Content)
	}
}
