package toast

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/ecofinance-notify/internal/clock"
	"github.com/Veraticus/ecofinance-notify/internal/metrics"
)

var start = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

var distinctTitles = []string{"Mercado", "Transporte", "Aluguel", "Salário", "Academia", "Farmácia", "Cinema", "Viagem"}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *clock.Manual) {
	t.Helper()
	c := clock.NewManual(start)
	m := NewManager(DefaultConfig(), append([]Option{WithClock(c)}, opts...)...)
	return m, c
}

func states(m *Manager) map[State]int {
	out := make(map[State]int)
	for _, v := range m.Snapshot() {
		out[v.State]++
	}
	return out
}

func TestManager_DebounceWithinWindow(t *testing.T) {
	m, c := newTestManager(t)
	req := Request{Title: "Transação salva", Message: "Mercado R$ 50", Type: TypeSuccess}

	first, decision := m.Show(req)
	assert.Equal(t, DecisionShown, decision)

	c.Advance(time.Second)
	second, decision := m.Show(req)
	assert.Equal(t, DecisionDebounced, decision)
	assert.Equal(t, first, second)

	snap := m.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 1, snap[0].Repeats)
	assert.Equal(t, start.Add(time.Second), snap[0].LastRequestedAt)
	assert.Equal(t, 4*time.Second, snap[0].Remaining, "refresh does not restart the countdown")
}

func TestManager_NearDuplicateIsDebounced(t *testing.T) {
	m, c := newTestManager(t)
	m.Show(Request{Title: "Importação", Message: "Importadas 10 transações", Type: TypeInfo})
	c.Advance(500 * time.Millisecond)

	_, decision := m.Show(Request{Title: "Importação", Message: "Importadas 11 transações", Type: TypeInfo})
	assert.Equal(t, DecisionDebounced, decision)

	_, decision = m.Show(Request{Title: "Importação", Message: "Importadas 11 transações", Type: TypeError})
	assert.Equal(t, DecisionShown, decision, "different type is a different toast")
}

func TestManager_DebounceWindowElapsed(t *testing.T) {
	m, c := newTestManager(t)
	req := Request{Title: "Oi", Message: "mundo", Type: TypeInfo, Duration: DurationOf(10 * time.Second)}

	m.Show(req)
	c.Advance(4 * time.Second)
	_, decision := m.Show(req)
	assert.Equal(t, DecisionShown, decision)
	assert.Len(t, m.Snapshot(), 2)
}

func TestManager_DedupCatchesCosmeticDifferences(t *testing.T) {
	m, c := newTestManager(t)
	first, _ := m.Show(Request{Title: "Saved", Message: "Tudo certo", Type: TypeInfo, Source: "form"})
	c.Advance(time.Second)

	id, decision := m.Show(Request{Title: "saved!", Message: "tudo certo!", Type: TypeInfo, Source: "form"})
	assert.Equal(t, DecisionDeduplicated, decision)
	assert.Equal(t, first, id)

	_, decision = m.Show(Request{Title: "saved!", Message: "tudo certo!", Type: TypeInfo, Source: "sync"})
	assert.Equal(t, DecisionShown, decision, "dedup is scoped by source")
}

func TestManager_ConcurrencyCapAndPromotion(t *testing.T) {
	m, c := newTestManager(t)
	capacity := m.Capacity()

	ids := make([]string, 0, capacity+3)
	for i := 0; i < capacity+3; i++ {
		id, _ := m.Show(Request{Title: distinctTitles[i], Message: "Lançamento em " + distinctTitles[i], Type: TypeInfo})
		ids = append(ids, id)
	}

	visible, waiting := m.Counts()
	assert.Equal(t, capacity, visible)
	assert.Equal(t, 3, waiting)

	// A free slot is not filled until the closed toast is removed.
	require.True(t, m.Close(ids[0]))
	m.Tick()
	assert.Equal(t, 3, states(m)[StateQueued])

	c.Advance(DefaultConfig().ExitDuration)
	m.Tick()
	visible, waiting = m.Counts()
	assert.Equal(t, capacity, visible)
	assert.Equal(t, 2, waiting)

	// Two more slots open at once, but promotion is paced.
	require.True(t, m.Close(ids[1]))
	require.True(t, m.Close(ids[2]))
	c.Advance(DefaultConfig().ExitDuration - time.Millisecond)
	m.Tick()
	c.Advance(time.Millisecond)
	m.Tick()
	visible, waiting = m.Counts()
	assert.Equal(t, capacity-1, visible)
	assert.Equal(t, 1, waiting)

	c.Advance(DefaultConfig().PromotionInterval)
	m.Tick()
	visible, waiting = m.Counts()
	assert.Equal(t, capacity, visible)
	assert.Equal(t, 0, waiting)

	snap := m.Snapshot()
	assert.Equal(t, ids[capacity], snap[capacity-3].ID, "queue is FIFO")
}

func TestManager_NarrowViewport(t *testing.T) {
	m, _ := newTestManager(t)
	m.SetViewport(60)
	assert.Equal(t, 3, m.Capacity())
	m.SetViewport(120)
	assert.Equal(t, 5, m.Capacity())
	m.SetViewport(0)
	assert.Equal(t, 5, m.Capacity())
}

func TestManager_ExpiryAndProgress(t *testing.T) {
	m, c := newTestManager(t)
	id, _ := m.Show(Request{Title: "x", Type: TypeWarning, Duration: DurationOf(time.Second)})

	last := 1.0
	for i := 0; i < 10; i++ {
		c.Advance(100 * time.Millisecond)
		m.Tick()
		snap := m.Snapshot()
		require.Len(t, snap, 1)
		assert.LessOrEqual(t, snap[0].Progress, last)
		last = snap[0].Progress
	}
	assert.Equal(t, StateExiting, m.Snapshot()[0].State)

	c.Advance(299 * time.Millisecond)
	m.Tick()
	require.Len(t, m.Snapshot(), 1)

	c.Advance(time.Millisecond)
	m.Tick()
	assert.Empty(t, m.Snapshot())
	assert.False(t, m.Close(id))
}

func TestManager_ZeroDurationNeverExpires(t *testing.T) {
	m, c := newTestManager(t)
	m.Show(Request{Title: "fixo", Duration: DurationOf(0)})

	c.Advance(time.Hour)
	m.Tick()
	snap := m.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, StateVisible, snap[0].State)
	assert.InDelta(t, 1.0, snap[0].Progress, 0.0001)
}

func TestManager_LoadingSingleton(t *testing.T) {
	m, c := newTestManager(t)

	loading, decision := m.Show(Request{Title: "Carregando", Message: "Buscando dados", Kind: KindLoading})
	require.Equal(t, DecisionShown, decision)

	c.Advance(5 * time.Second)
	id, decision := m.Show(Request{Title: "Carregando", Message: "Sincronizando notificações do servidor", Kind: KindLoading})
	assert.Equal(t, DecisionLoadingRefreshed, decision)
	assert.Equal(t, loading, id)

	loaded, decision := m.Show(Request{Title: "Carregando", Message: "Buscando dados", Type: TypeSuccess, Kind: KindLoaded})
	assert.Equal(t, DecisionShown, decision)
	assert.NotEqual(t, loading, loaded)

	c.Advance(DefaultConfig().ExitDuration)
	m.Tick()
	snap := m.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, loaded, snap[0].ID)

	next, decision := m.Show(Request{Title: "Carregando", Message: "Outra carga", Kind: KindLoading})
	assert.Equal(t, DecisionShown, decision)
	assert.NotEqual(t, loading, next)
}

func TestManager_RetryAndAction(t *testing.T) {
	m, _ := newTestManager(t)
	var retried, acted int

	errID, _ := m.Show(Request{Title: "Falha", Type: TypeError, RetryAction: func() { retried++ }})
	actID, _ := m.Show(Request{Title: "Ver", Type: TypeInfo, Action: &Action{Label: "Abrir", Run: func() { acted++ }}})

	assert.True(t, m.Retry(errID))
	assert.True(t, m.Action(actID))
	assert.False(t, m.Retry(actID))
	assert.Equal(t, 1, retried)
	assert.Equal(t, 1, acted)
	assert.Equal(t, 2, states(m)[StateExiting])
}

func TestManager_ResetAndListener(t *testing.T) {
	var (
		mu     sync.Mutex
		events []EventType
	)
	mt := metrics.New("test")
	m, _ := newTestManager(t, WithMetrics(mt), WithListener(func(ev Event) {
		mu.Lock()
		events = append(events, ev.Type)
		mu.Unlock()
	}))
	for i := 0; i < 7; i++ {
		m.Show(Request{Title: distinctTitles[i], Message: fmt.Sprintf("Categoria %s atualizada", distinctTitles[i])})
	}
	m.Reset()

	assert.Empty(t, m.Snapshot())
	mu.Lock()
	defer mu.Unlock()
	counts := make(map[EventType]int)
	for _, e := range events {
		counts[e]++
	}
	assert.Equal(t, 5, counts[EventShown])
	assert.Equal(t, 2, counts[EventQueued])
	assert.Equal(t, 7, counts[EventRemoved])
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = time.Millisecond
	m := NewManager(cfg)
	m.Show(Request{Title: "x"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Empty(t, m.Snapshot())
}

func TestIsNearDuplicate(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{a: "", b: "", want: true},
		{a: "info|Olá|mundo", b: "info|Olá|mundo", want: true},
		{a: "info|Importadas 10 transações", b: "info|Importadas 11 transações", want: true},
		{a: "info|Salvo", b: "error|Falhou", want: false},
		{a: "abc", b: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.a+"~"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNearDuplicate(tt.a, tt.b, 0.85))
		})
	}
	assert.InDelta(t, 0.75, Similarity("abcd", "abce"), 0.0001)
}
