package tui

import (
	"context"
	"time"

	"github.com/Veraticus/ecofinance-notify/internal/notify"
	"github.com/Veraticus/ecofinance-notify/internal/tui/themes"
)

// CheckFunc evaluates the rules once and returns how many notifications fired.
type CheckFunc func(ctx context.Context) (int, error)

// Config holds TUI configuration.
type Config struct {
	Theme         themes.Theme
	Check         CheckFunc
	Bridge        *Bridge
	Filter        notify.Filter
	Width         int
	Height        int
	TickInterval  time.Duration
	CheckInterval time.Duration
	CenterOpen    bool
	ShowHelp      bool
}

// Option is a functional option for configuring the TUI.
type Option func(*Config)

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Theme:        themes.Default,
		Filter:       notify.FilterActive,
		Width:        80,
		Height:       24,
		TickInterval: 50 * time.Millisecond,
		CenterOpen:   true,
	}
}

// WithTheme sets the visual theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithTickInterval sets how often toast countdowns advance.
func WithTickInterval(d time.Duration) Option {
	return func(c *Config) {
		c.TickInterval = d
	}
}

// WithChecker runs check every interval while the program is up.
func WithChecker(interval time.Duration, check CheckFunc) Option {
	return func(c *Config) {
		c.CheckInterval = interval
		c.Check = check
	}
}

// WithBridge lets b deliver toast events to the running program.
func WithBridge(b *Bridge) Option {
	return func(c *Config) {
		c.Bridge = b
	}
}

// WithFilter sets the initial inbox view.
func WithFilter(f notify.Filter) Option {
	return func(c *Config) {
		c.Filter = f
	}
}

// WithCenterOpen sets whether the notification center starts open.
func WithCenterOpen(open bool) Option {
	return func(c *Config) {
		c.CenterOpen = open
	}
}
