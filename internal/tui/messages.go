package tui

import (
	"time"

	"github.com/Veraticus/ecofinance-notify/internal/toast"
)

// tickMsg drives toast countdowns.
type tickMsg time.Time

// checkMsg asks the model to run a rule check.
type checkMsg struct{}

// checkDoneMsg reports a finished rule check.
type checkDoneMsg struct {
	err   error
	fired int
}

// toastEventMsg carries a toast event forwarded by a Bridge.
type toastEventMsg struct {
	event toast.Event
}

// errorMsg reports a failed inbox operation.
type errorMsg struct {
	err     error
	context string
}
