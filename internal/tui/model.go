// Package tui is the display boundary of the notification pipeline: a
// bubbletea program rendering the toast container and the notification
// center.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/model"
	"github.com/Veraticus/ecofinance-notify/internal/notify"
	"github.com/Veraticus/ecofinance-notify/internal/toast"
	"github.com/Veraticus/ecofinance-notify/internal/tui/themes"
)

// Inbox is the part of the notification store the center needs.
type Inbox interface {
	Notifications(filter notify.Filter, category model.Category) []model.Notification
	UnreadCount() int
	QueuedCount() int
	Online() bool
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context) int
	DismissNotification(ctx context.Context, id string) error
	DeleteNotification(ctx context.Context, id string) error
	OpenCenter()
	CloseCenter()
	CenterOpen() bool
}

// Toasts is the part of the toast manager the container needs.
type Toasts interface {
	SetViewport(width int)
	Tick()
	Snapshot() []toast.View
	Close(id string) bool
	Action(id string) bool
	Retry(id string) bool
}

var filterCycle = []notify.Filter{notify.FilterActive, notify.FilterUnread, notify.FilterUrgent, notify.FilterAll}

// Model holds the notification center state.
type Model struct {
	ctx       context.Context
	lastError error
	inbox     Inbox
	toasts    Toasts
	lastEvent *toast.Event
	theme     themes.Theme
	keymap    KeyMap
	help      help.Model
	bar       progress.Model
	config    Config
	filter    notify.Filter
	items     []model.Notification
	views     []toast.View
	lastFired int
	width     int
	height    int
	cursor    int
	quitting  bool
}

// newModel creates a new model with the given configuration.
func newModel(ctx context.Context, toasts Toasts, inbox Inbox, cfg Config) Model {
	h := help.New()
	h.ShowAll = cfg.ShowHelp

	m := Model{
		ctx:    ctx,
		inbox:  inbox,
		toasts: toasts,
		theme:  cfg.Theme,
		keymap: DefaultKeyMap(),
		help:   h,
		bar: progress.New(
			progress.WithGradient(cfg.Theme.GradientLow, cfg.Theme.GradientHi),
			progress.WithoutPercentage(),
			progress.WithWidth(28),
		),
		config: cfg,
		filter: cfg.Filter,
		width:  cfg.Width,
		height: cfg.Height,
	}
	if cfg.CenterOpen {
		inbox.OpenCenter()
	}
	toasts.SetViewport(cfg.Width)
	m.refresh()
	return m
}

// Init starts the countdown ticker and, when configured, the rule checker.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.tick()}
	if m.config.Check != nil {
		cmds = append(cmds, func() tea.Msg { return checkMsg{} })
	}
	return tea.Batch(cmds...)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.config.TickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) runCheck() tea.Cmd {
	check, ctx := m.config.Check, m.ctx
	return func() tea.Msg {
		fired, err := check(ctx)
		return checkDoneMsg{fired: fired, err: err}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd := m.handleKey(msg)
		m.refresh()
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.toasts.SetViewport(msg.Width)
		m.refresh()

	case tickMsg:
		m.toasts.Tick()
		m.refresh()
		return m, m.tick()

	case checkMsg:
		return m, m.runCheck()

	case checkDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.lastError = msg.err
		}
		m.lastFired = msg.fired
		m.refresh()
		if m.config.CheckInterval > 0 {
			return m, tea.Tick(m.config.CheckInterval, func(time.Time) tea.Msg { return checkMsg{} })
		}

	case toastEventMsg:
		ev := msg.event
		m.lastEvent = &ev
		m.refresh()

	case errorMsg:
		m.lastError = msg.err
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keymap.ForceQuit), key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keymap.ToggleCenter):
		if m.inbox.CenterOpen() {
			m.inbox.CloseCenter()
		} else {
			m.inbox.OpenCenter()
		}

	case key.Matches(msg, m.keymap.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keymap.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keymap.CycleFilter):
		m.filter = nextFilter(m.filter)
		m.cursor = 0

	case key.Matches(msg, m.keymap.MarkRead):
		return m.onSelected("mark read", m.inbox.MarkAsRead)

	case key.Matches(msg, m.keymap.MarkAllRead):
		m.inbox.MarkAllAsRead(m.ctx)

	case key.Matches(msg, m.keymap.Dismiss):
		return m.onSelected("dismiss", m.inbox.DismissNotification)

	case key.Matches(msg, m.keymap.Delete):
		return m.onSelected("delete", m.inbox.DeleteNotification)

	case key.Matches(msg, m.keymap.ToastAction):
		if v, ok := m.frontToast(func(v toast.View) bool { return v.HasAction }); ok {
			m.toasts.Action(v.ID)
		}

	case key.Matches(msg, m.keymap.ToastRetry):
		if v, ok := m.frontToast(func(v toast.View) bool { return v.HasRetry }); ok {
			m.toasts.Retry(v.ID)
		}

	case key.Matches(msg, m.keymap.ToastClose):
		if v, ok := m.frontToast(func(toast.View) bool { return true }); ok {
			m.toasts.Close(v.ID)
		}
	}
	return nil
}

// onSelected applies op to the notification under the cursor.
func (m *Model) onSelected(what string, op func(context.Context, string) error) tea.Cmd {
	if !m.inbox.CenterOpen() || m.cursor >= len(m.items) {
		return nil
	}
	id := m.items[m.cursor].ID
	if err := op(m.ctx, id); err != nil {
		wrapped := common.NewUserError("could not "+what+" notification", err)
		return func() tea.Msg { return errorMsg{err: wrapped, context: what} }
	}
	return nil
}

// frontToast returns the oldest visible toast matching want.
func (m *Model) frontToast(want func(toast.View) bool) (toast.View, bool) {
	for _, v := range m.views {
		if v.State == toast.StateVisible && want(v) {
			return v, true
		}
	}
	return toast.View{}, false
}

// refresh re-reads the inbox and the toast container.
func (m *Model) refresh() {
	m.views = m.toasts.Snapshot()
	m.items = m.inbox.Notifications(m.filter, "")
	if m.cursor >= len(m.items) {
		m.cursor = max(len(m.items)-1, 0)
	}
}

func nextFilter(f notify.Filter) notify.Filter {
	for i, c := range filterCycle {
		if c == f {
			return filterCycle[(i+1)%len(filterCycle)]
		}
	}
	return filterCycle[0]
}
