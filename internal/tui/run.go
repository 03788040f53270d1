package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/ecofinance-notify/internal/toast"
)

// Bridge forwards toast events into a running program. Create it before
// the toast manager and pass Listen as the manager's listener.
type Bridge struct {
	program *tea.Program
	mu      sync.Mutex
}

// NewBridge creates an unattached bridge. Events are dropped until Run
// attaches a program.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Listen implements toast.Listener.
func (b *Bridge) Listen(e toast.Event) {
	b.mu.Lock()
	p := b.program
	b.mu.Unlock()
	if p == nil {
		return
	}
	// The listener may fire from inside Update; Send must not block it.
	go p.Send(toastEventMsg{event: e})
}

func (b *Bridge) attach(p *tea.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.program = p
}

// Run shows the notification center until the user quits or ctx is
// cancelled.
func Run(ctx context.Context, toasts Toasts, inbox Inbox, opts ...Option) error {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	m := newModel(ctx, toasts, inbox, cfg)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if cfg.Bridge != nil {
		cfg.Bridge.attach(p)
		defer cfg.Bridge.attach(nil)
	}

	_, err := p.Run()
	inbox.CloseCenter()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("notification center: %w", err)
	}
	return nil
}
