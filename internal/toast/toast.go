// Package toast implements the short-lived notification surface: bounded
// concurrent display, FIFO overflow with paced promotion, debounce and dedup
// of repeated requests, and countdown timers owned by the manager.
package toast

import (
	"time"

	"github.com/Veraticus/ecofinance-notify/internal/model"
)

// Type selects the visual treatment of a toast.
type Type string

// Toast types.
const (
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
	TypeInfo    Type = "info"
	TypeDelete  Type = "delete"
)

// Kind marks the loading/loaded pair that is handled as a singleton.
type Kind string

// Request kinds.
const (
	KindNormal  Kind = ""
	KindLoading Kind = "loading"
	KindLoaded  Kind = "loaded"
)

// State is the lifecycle position of a toast.
type State string

// Toast states.
const (
	StateQueued  State = "queued"
	StateVisible State = "visible"
	StateExiting State = "exiting"
	StateRemoved State = "removed"
)

// Decision is what Show did with a request.
type Decision string

// Show decisions.
const (
	DecisionShown            Decision = "shown"
	DecisionQueued           Decision = "queued"
	DecisionDebounced        Decision = "debounced"
	DecisionDeduplicated     Decision = "deduplicated"
	DecisionLoadingRefreshed Decision = "loading_refreshed"
)

// Action is a user-invokable button on a toast.
type Action struct {
	Run   func()
	Label string
}

// Request describes a toast to show.
type Request struct {
	// Duration overrides the default display time; zero disables auto-dismiss.
	Duration        *time.Duration
	Action          *Action
	RetryAction     func()
	Title           string
	Message         string
	Type            Type
	TransactionType model.TransactionType
	// Source scopes deduplication, e.g. "notifications" or "import".
	Source string
	Kind   Kind
}

// DurationOf is a helper for building requests with an explicit duration.
func DurationOf(d time.Duration) *time.Duration {
	return &d
}

// View is a read-only snapshot of one toast for rendering.
type View struct {
	CreatedAt       time.Time
	LastRequestedAt time.Time
	ID              string
	Title           string
	Message         string
	ActionLabel     string
	Type            Type
	State           State
	TransactionType model.TransactionType
	Duration        time.Duration
	Remaining       time.Duration
	Progress        float64
	Repeats         int
	HasAction       bool
	HasRetry        bool
}

// EventType identifies a display boundary event.
type EventType string

// Event types.
const (
	EventShown     EventType = "shown"
	EventQueued    EventType = "queued"
	EventRefreshed EventType = "refreshed"
	EventExiting   EventType = "exiting"
	EventRemoved   EventType = "removed"
)

// Event is published to the Listener whenever a toast changes state.
type Event struct {
	Type  EventType
	Toast View
}

// Listener receives toast events. It is called without the manager lock held.
type Listener func(Event)

type item struct {
	createdAt       time.Time
	lastRequestedAt time.Time
	shownAt         time.Time
	deadline        time.Time
	exitAt          time.Time
	req             Request
	id              string
	dedupKey        string
	state           State
	duration        time.Duration
	progress        float64
	repeats         int
}

func contentKey(req Request) string {
	return string(req.Type) + "|" + req.Title + "|" + req.Message
}

func dedupKey(req Request) string {
	return req.Source + "#" + normalize(contentKey(req))
}
