package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMissingCategoryConfig indicates that preferences lack an entry for a category.
var ErrMissingCategoryConfig = errors.New("missing category configuration")

// Frequency is the delivery cadence a profile asked for per category. It is
// stored and synced with the preferences; delivery itself is realtime.
type Frequency string

// Delivery frequencies.
const (
	FrequencyRealtime Frequency = "realtime"
	FrequencyHourly   Frequency = "hourly"
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
)

// ParseFrequency converts a string into a Frequency.
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(s); f {
	case FrequencyRealtime, FrequencyHourly, FrequencyDaily, FrequencyWeekly:
		return f, nil
	}
	return "", fmt.Errorf("unknown frequency %q", s)
}

// CategoryConfig holds per-category delivery preferences.
type CategoryConfig struct {
	Frequency           Frequency `json:"frequency,omitempty"`
	Channels            []Channel `json:"channels"`
	Enabled             bool      `json:"enabled"`
	QuietHoursRespected bool      `json:"quietHoursRespected"`
}

// HasChannel reports whether the category delivers over ch.
func (c CategoryConfig) HasChannel(ch Channel) bool {
	return containsChannel(c.Channels, ch)
}

// QuietHours describes a daily window in which notifications are held back.
type QuietHours struct {
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	Timezone        string `json:"timezone"`
	Enabled         bool   `json:"enabled"`
	ExcludeWeekends bool   `json:"excludeWeekends,omitempty"`
}

// NotificationPreferences is the per-profile delivery configuration.
type NotificationPreferences struct {
	CreatedAt        time.Time                   `json:"createdAt"`
	UpdatedAt        time.Time                   `json:"updatedAt"`
	Categories       map[Category]CategoryConfig `json:"categories"`
	ProfileID        string                      `json:"profileId"`
	QuietHours       QuietHours                  `json:"quietHours"`
	AutoDismissDelay int                         `json:"autoDismissDelay"`
	Version          int                         `json:"version"`
	GlobalEnabled    bool                        `json:"globalEnabled"`
	SoundEnabled     bool                        `json:"soundEnabled"`
	AutoDismissing   bool                        `json:"autoDismissing"`
}

// DefaultPreferences returns the preferences used for a new profile.
func DefaultPreferences(profileID string, now time.Time) NotificationPreferences {
	inAppPush := []Channel{ChannelInApp, ChannelPush}
	return NotificationPreferences{
		ProfileID:        profileID,
		GlobalEnabled:    true,
		SoundEnabled:     true,
		AutoDismissing:   true,
		AutoDismissDelay: 5,
		QuietHours: QuietHours{
			Enabled:         false,
			StartTime:       "22:00",
			EndTime:         "08:00",
			Timezone:        "America/Sao_Paulo",
			ExcludeWeekends: true,
		},
		Categories: map[Category]CategoryConfig{
			CategoryBudget:      {Enabled: true, Channels: clone(inAppPush), Frequency: FrequencyRealtime, QuietHoursRespected: true},
			CategoryGoal:        {Enabled: true, Channels: clone(inAppPush), Frequency: FrequencyRealtime, QuietHoursRespected: true},
			CategoryTransaction: {Enabled: true, Channels: []Channel{ChannelInApp}, Frequency: FrequencyRealtime, QuietHoursRespected: true},
			CategoryReminder:    {Enabled: true, Channels: clone(inAppPush), Frequency: FrequencyRealtime, QuietHoursRespected: true},
			CategoryReport:      {Enabled: true, Channels: []Channel{ChannelInApp, ChannelEmail}, Frequency: FrequencyWeekly, QuietHoursRespected: false},
			CategorySystem:      {Enabled: true, Channels: []Channel{ChannelInApp}, Frequency: FrequencyRealtime, QuietHoursRespected: false},
			CategoryInsight:     {Enabled: true, Channels: []Channel{ChannelInApp}, Frequency: FrequencyDaily, QuietHoursRespected: true},
			CategoryAchievement: {Enabled: true, Channels: clone(inAppPush), Frequency: FrequencyRealtime, QuietHoursRespected: false},
		},
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// Validate checks that every enumerated category is configured and that the
// quiet hours window is well formed.
func (p *NotificationPreferences) Validate() error {
	for _, c := range AllCategories() {
		if _, ok := p.Categories[c]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingCategoryConfig, c)
		}
	}
	if _, err := ParseClock(p.QuietHours.StartTime); err != nil {
		return fmt.Errorf("quiet hours start: %w", err)
	}
	if _, err := ParseClock(p.QuietHours.EndTime); err != nil {
		return fmt.Errorf("quiet hours end: %w", err)
	}
	if p.AutoDismissDelay < 0 {
		return fmt.Errorf("auto dismiss delay cannot be negative")
	}
	return nil
}

// Clone returns a deep copy of the preferences.
func (p NotificationPreferences) Clone() NotificationPreferences {
	out := p
	out.Categories = make(map[Category]CategoryConfig, len(p.Categories))
	for k, v := range p.Categories {
		v.Channels = clone(v.Channels)
		out.Categories[k] = v
	}
	return out
}

// ParseClock parses an "HH:MM" time of day into minutes after midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

func clone[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
