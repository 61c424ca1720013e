package preview

import "sync"

// MemorySurface records what it is asked to display. With Manual set, loads
// complete only when Complete is called, which lets callers interleave
// updates with in-flight loads.
type MemorySurface struct {
	Name   string
	Manual bool

	mu      sync.Mutex
	content string
	visible bool
	loads   []string
	waiting []func()
}

// NewMemorySurface returns a surface whose loads complete immediately.
func NewMemorySurface(name string) *MemorySurface {
	return &MemorySurface{Name: name}
}

func (m *MemorySurface) Load(html string, done func()) {
	m.mu.Lock()
	m.content = html
	m.loads = append(m.loads, html)
	if m.Manual {
		m.waiting = append(m.waiting, done)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	done()
}

func (m *MemorySurface) Show(visible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visible = visible
}

// Complete finishes the oldest outstanding load. It reports false if none
// was waiting.
func (m *MemorySurface) Complete() bool {
	m.mu.Lock()
	if len(m.waiting) == 0 {
		m.mu.Unlock()
		return false
	}
	done := m.waiting[0]
	m.waiting = m.waiting[1:]
	m.mu.Unlock()
	done()
	return true
}

func (m *MemorySurface) Content() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.content
}

func (m *MemorySurface) Visible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}

// Loads returns every document the surface was asked to load, in order.
func (m *MemorySurface) Loads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loads...)
}
