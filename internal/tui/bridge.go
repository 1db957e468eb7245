package tui

import (
	"sync"

	"ai-newsletter/internal/feed"

	tea "github.com/charmbracelet/bubbletea"
)

// Bridge forwards controller notifications into a running program.
// Notifications that arrive before Attach are dropped.
type Bridge struct {
	mu sync.Mutex
	p  *tea.Program
}

func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.p = p
}

func (b *Bridge) Render(s feed.Snapshot) {
	b.send(snapshotMsg{snapshot: s})
}

func (b *Bridge) LoadFailed(message string) {
	b.send(loadFailedMsg{message: message})
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.Lock()
	p := b.p
	b.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}
