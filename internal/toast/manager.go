package toast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/Veraticus/ecofinance-notify/internal/clock"
	"github.com/Veraticus/ecofinance-notify/internal/metrics"
)

// Config holds the display budget and timing of the toast layer.
type Config struct {
	MaxVisible          int
	MaxVisibleNarrow    int
	NarrowWidth         int
	DebounceWindow      time.Duration
	DedupWindow         time.Duration
	PromotionInterval   time.Duration
	ExitDuration        time.Duration
	TickInterval        time.Duration
	DefaultDuration     time.Duration
	SimilarityThreshold float64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxVisible:          5,
		MaxVisibleNarrow:    3,
		NarrowWidth:         80,
		DebounceWindow:      3 * time.Second,
		DedupWindow:         3 * time.Second,
		PromotionInterval:   300 * time.Millisecond,
		ExitDuration:        300 * time.Millisecond,
		TickInterval:        50 * time.Millisecond,
		DefaultDuration:     5 * time.Second,
		SimilarityThreshold: 0.85,
	}
}

type dedupEntry struct {
	at time.Time
	id string
}

// Manager owns every toast and its timers. All methods are safe for
// concurrent use; state changes run to completion under one lock.
type Manager struct {
	clock    clock.Clock
	limiter  *rate.Limiter
	dedup    *cache.Cache
	listener Listener
	metrics  *metrics.Metrics
	newID    func() string
	byID     map[string]*item
	// active holds visible and exiting toasts in display order; both occupy
	// a slot until removed.
	active    []*item
	waiting   []*item
	loadingID string
	config    Config
	width     int
	mu        sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock driving timers.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithListener publishes toast events to l.
func WithListener(l Listener) Option {
	return func(m *Manager) { m.listener = l }
}

// WithMetrics records toast metrics on mt.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// NewManager creates a toast manager.
func NewManager(cfg Config, opts ...Option) *Manager {
	if cfg.MaxVisible <= 0 {
		cfg.MaxVisible = DefaultConfig().MaxVisible
	}
	if cfg.MaxVisibleNarrow <= 0 || cfg.MaxVisibleNarrow > cfg.MaxVisible {
		cfg.MaxVisibleNarrow = cfg.MaxVisible
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}

	m := &Manager{
		clock:  clock.Real{},
		newID:  uuid.NewString,
		byID:   make(map[string]*item),
		config: cfg,
		dedup:  cache.New(cfg.DedupWindow, 2*cfg.DedupWindow+time.Second),
	}
	limit := rate.Inf
	if cfg.PromotionInterval > 0 {
		limit = rate.Every(cfg.PromotionInterval)
	}
	m.limiter = rate.NewLimiter(limit, 1)

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetViewport records the display width in columns; narrow displays show
// fewer toasts at once. Zero means unknown and is treated as wide.
func (m *Manager) SetViewport(width int) {
	m.mu.Lock()
	m.width = width
	events := m.promote(m.clock.Now())
	m.mu.Unlock()
	m.publish(events)
}

// Capacity returns the number of toasts that may be on screen at once.
func (m *Manager) Capacity() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capacity()
}

func (m *Manager) capacity() int {
	if m.width > 0 && m.width < m.config.NarrowWidth {
		return m.config.MaxVisibleNarrow
	}
	return m.config.MaxVisible
}

// Show requests a toast. It returns the id of the toast that now represents
// the request, which is an existing one when the request was absorbed.
func (m *Manager) Show(req Request) (string, Decision) {
	if req.Type == "" {
		req.Type = TypeInfo
	}

	m.mu.Lock()
	now := m.clock.Now()
	var (
		events   []Event
		id       string
		decision Decision
	)

	switch {
	case req.Kind == KindLoaded:
		events = m.releaseLoading(now)
		id, decision, events = m.place(req, now, events)
	default:
		if it := m.findDebounced(req, now); it != nil {
			id, decision = it.id, DecisionDebounced
			events = append(events, m.refresh(it, now))
			break
		}
		if it := m.findDuplicate(req, now); it != nil {
			id, decision = it.id, DecisionDeduplicated
			events = append(events, m.refresh(it, now))
			break
		}
		if req.Kind == KindLoading {
			if it, ok := m.byID[m.loadingID]; ok {
				id, decision = it.id, DecisionLoadingRefreshed
				events = append(events, m.refresh(it, now))
				break
			}
		}
		id, decision, events = m.place(req, now, events)
		if req.Kind == KindLoading {
			m.loadingID = id
		}
	}

	if m.metrics != nil {
		m.metrics.ToastRequests.WithLabelValues(string(decision)).Inc()
	}
	m.updateGauges()
	m.mu.Unlock()

	slog.Debug("Toast requested", "title", req.Title, "decision", decision, "id", id)
	m.publish(events)
	return id, decision
}

// findDebounced looks for a live toast whose content is nearly the same and
// whose last request falls inside the debounce window.
func (m *Manager) findDebounced(req Request, now time.Time) *item {
	key := contentKey(req)
	for _, it := range m.live() {
		if it.req.Type != req.Type || now.Sub(it.lastRequestedAt) > m.config.DebounceWindow {
			continue
		}
		if IsNearDuplicate(contentKey(it.req), key, m.config.SimilarityThreshold) {
			return it
		}
	}
	return nil
}

func (m *Manager) findDuplicate(req Request, now time.Time) *item {
	raw, ok := m.dedup.Get(dedupKey(req))
	if !ok {
		return nil
	}
	entry, _ := raw.(dedupEntry)
	if now.Sub(entry.at) > m.config.DedupWindow {
		return nil
	}
	it, ok := m.byID[entry.id]
	if !ok || it.state == StateExiting {
		return nil
	}
	return it
}

// refresh marks a toast as requested again. The countdown keeps running.
func (m *Manager) refresh(it *item, now time.Time) Event {
	it.lastRequestedAt = now
	it.repeats++
	if it.dedupKey != "" {
		m.dedup.SetDefault(it.dedupKey, dedupEntry{id: it.id, at: now})
	}
	return Event{Type: EventRefreshed, Toast: m.view(it, now)}
}

// place creates a toast and shows it or queues it behind the display budget.
func (m *Manager) place(req Request, now time.Time, events []Event) (string, Decision, []Event) {
	it := &item{
		id:              m.newID(),
		req:             req,
		createdAt:       now,
		lastRequestedAt: now,
		duration:        m.durationFor(req),
		dedupKey:        dedupKey(req),
		progress:        1,
	}
	m.byID[it.id] = it
	m.dedup.SetDefault(it.dedupKey, dedupEntry{id: it.id, at: now})

	if len(m.waiting) == 0 && len(m.active) < m.capacity() {
		m.show(it, now)
		return it.id, DecisionShown, append(events, Event{Type: EventShown, Toast: m.view(it, now)})
	}
	it.state = StateQueued
	m.waiting = append(m.waiting, it)
	return it.id, DecisionQueued, append(events, Event{Type: EventQueued, Toast: m.view(it, now)})
}

func (m *Manager) durationFor(req Request) time.Duration {
	if req.Duration != nil {
		return max(*req.Duration, 0)
	}
	if req.Kind == KindLoading {
		return 0
	}
	return m.config.DefaultDuration
}

func (m *Manager) show(it *item, now time.Time) {
	it.state = StateVisible
	it.shownAt = now
	if it.duration > 0 {
		it.deadline = now.Add(it.duration)
	}
	m.active = append(m.active, it)
}

// releaseLoading ends the outstanding loading toast, if any, so the loaded
// toast that follows is shown fresh.
func (m *Manager) releaseLoading(now time.Time) []Event {
	it, ok := m.byID[m.loadingID]
	m.loadingID = ""
	if !ok {
		return nil
	}
	m.dedup.Delete(it.dedupKey)
	it.dedupKey = ""
	if it.state == StateQueued {
		m.waiting = removeItem(m.waiting, it)
		return []Event{m.remove(it, now)}
	}
	return m.beginExit(it, now)
}

// Close dismisses a toast by hand. Visible toasts leave through the exit
// animation; queued toasts are dropped immediately.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	now := m.clock.Now()
	it, ok := m.byID[id]
	if !ok || it.state == StateExiting {
		m.mu.Unlock()
		return false
	}

	var events []Event
	if it.state == StateQueued {
		m.waiting = removeItem(m.waiting, it)
		events = append(events, m.remove(it, now))
	} else {
		events = m.beginExit(it, now)
	}
	m.updateGauges()
	m.mu.Unlock()

	m.publish(events)
	return true
}

// Retry runs the toast's retry callback and closes it.
func (m *Manager) Retry(id string) bool {
	m.mu.Lock()
	it, ok := m.byID[id]
	var retry func()
	if ok {
		retry = it.req.RetryAction
	}
	m.mu.Unlock()

	if retry == nil {
		return false
	}
	retry()
	m.Close(id)
	return true
}

// Action runs the toast's action callback and closes it.
func (m *Manager) Action(id string) bool {
	m.mu.Lock()
	it, ok := m.byID[id]
	var action *Action
	if ok {
		action = it.req.Action
	}
	m.mu.Unlock()

	if action == nil || action.Run == nil {
		return false
	}
	action.Run()
	m.Close(id)
	return true
}

func (m *Manager) beginExit(it *item, now time.Time) []Event {
	it.state = StateExiting
	it.deadline = time.Time{}
	it.progress = 0
	it.exitAt = now.Add(m.config.ExitDuration)
	return []Event{{Type: EventExiting, Toast: m.view(it, now)}}
}

func (m *Manager) remove(it *item, now time.Time) Event {
	it.state = StateRemoved
	it.deadline = time.Time{}
	it.exitAt = time.Time{}
	delete(m.byID, it.id)
	if m.loadingID == it.id {
		m.loadingID = ""
	}
	return Event{Type: EventRemoved, Toast: m.view(it, now)}
}

// Tick advances every timer to the current instant: expired toasts start
// exiting, finished exits are removed and waiting toasts are promoted.
func (m *Manager) Tick() {
	m.mu.Lock()
	now := m.clock.Now()
	var events []Event

	kept := m.active[:0]
	for _, it := range m.active {
		switch {
		case it.state == StateExiting && !now.Before(it.exitAt):
			events = append(events, m.remove(it, now))
			continue
		case it.state == StateVisible && !it.deadline.IsZero() && !now.Before(it.deadline):
			events = append(events, m.beginExit(it, now)...)
		case it.state == StateVisible:
			m.progressAt(it, now)
		}
		kept = append(kept, it)
	}
	clear(m.active[len(kept):])
	m.active = kept

	events = append(events, m.promote(now)...)
	m.updateGauges()
	m.mu.Unlock()

	m.publish(events)
}

// promote moves waiting toasts into free slots, no faster than the
// promotion interval.
func (m *Manager) promote(now time.Time) []Event {
	var events []Event
	for len(m.waiting) > 0 && len(m.active) < m.capacity() {
		if !m.limiter.AllowN(now, 1) {
			break
		}
		it := m.waiting[0]
		m.waiting[0] = nil
		m.waiting = m.waiting[1:]
		m.show(it, now)
		events = append(events, Event{Type: EventShown, Toast: m.view(it, now)})
	}
	return events
}

// Reset tears the layer down, cancelling every timer.
func (m *Manager) Reset() {
	m.mu.Lock()
	now := m.clock.Now()
	var events []Event
	for _, it := range append(append([]*item{}, m.active...), m.waiting...) {
		events = append(events, m.remove(it, now))
	}
	m.active, m.waiting = nil, nil
	m.loadingID = ""
	m.dedup.Flush()
	m.updateGauges()
	m.mu.Unlock()

	m.publish(events)
}

// Run ticks the manager until ctx is cancelled, then resets it.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Reset()
			return ctx.Err()
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Snapshot returns the on-screen toasts followed by the waiting ones.
func (m *Manager) Snapshot() []View {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	out := make([]View, 0, len(m.active)+len(m.waiting))
	for _, it := range m.active {
		out = append(out, m.view(it, now))
	}
	for _, it := range m.waiting {
		out = append(out, m.view(it, now))
	}
	return out
}

// Counts returns how many toasts are on screen and how many are waiting.
func (m *Manager) Counts() (visible, waiting int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.active {
		if it.state == StateVisible {
			visible++
		}
	}
	return visible, len(m.waiting)
}

func (m *Manager) live() []*item {
	out := make([]*item, 0, len(m.active)+len(m.waiting))
	for _, it := range m.active {
		if it.state == StateVisible {
			out = append(out, it)
		}
	}
	return append(out, m.waiting...)
}

// progressAt updates and returns the countdown progress. It never increases.
func (m *Manager) progressAt(it *item, now time.Time) float64 {
	if it.state != StateVisible || it.duration <= 0 {
		return it.progress
	}
	p := 1 - float64(now.Sub(it.shownAt))/float64(it.duration)
	p = min(max(p, 0), 1)
	if p < it.progress {
		it.progress = p
	}
	return it.progress
}

func (m *Manager) view(it *item, now time.Time) View {
	v := View{
		ID:              it.id,
		Title:           it.req.Title,
		Message:         it.req.Message,
		Type:            it.req.Type,
		State:           it.state,
		TransactionType: it.req.TransactionType,
		CreatedAt:       it.createdAt,
		LastRequestedAt: it.lastRequestedAt,
		Duration:        it.duration,
		Progress:        m.progressAt(it, now),
		Repeats:         it.repeats,
		HasRetry:        it.req.RetryAction != nil,
	}
	if it.req.Action != nil {
		v.HasAction = true
		v.ActionLabel = it.req.Action.Label
	}
	if it.state == StateVisible && !it.deadline.IsZero() {
		v.Remaining = max(it.deadline.Sub(now), 0)
	}
	return v
}

func (m *Manager) updateGauges() {
	if m.metrics == nil {
		return
	}
	visible := 0
	for _, it := range m.active {
		if it.state == StateVisible {
			visible++
		}
	}
	m.metrics.ToastsVisible.Set(float64(visible))
	m.metrics.ToastsWaiting.Set(float64(len(m.waiting)))
}

func (m *Manager) publish(events []Event) {
	if m.listener == nil {
		return
	}
	for _, ev := range events {
		m.listener(ev)
	}
}

func removeItem(list []*item, target *item) []*item {
	for i, it := range list {
		if it == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
