package notify

import (
	"context"
	"fmt"

	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/model"
)

// Preferences returns a copy of the current preferences.
func (s *Store) Preferences() model.NotificationPreferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.Clone()
}

// UpdatePreferences applies mutate to a copy of the preferences. The result
// must validate; on success UpdatedAt is stamped, Version incremented and the
// preferences persisted.
func (s *Store) UpdatePreferences(ctx context.Context, mutate func(*model.NotificationPreferences)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.prefs.Clone()
	mutate(&next)
	if err := next.Validate(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	next.ProfileID = s.profileID
	next.UpdatedAt = s.clock.Now()
	next.Version = s.prefs.Version + 1
	s.prefs = next
	s.persistPreferences(ctx)
	return nil
}

// ToggleCategory flips a category. With a channel it adds or removes that
// channel instead; removing the last channel disables the category and
// adding one to a disabled category enables it.
func (s *Store) ToggleCategory(ctx context.Context, category model.Category, channel model.Channel) error {
	if !category.Valid() {
		return fmt.Errorf("%w: unknown category %q", common.ErrInvalidConfig, category)
	}
	return s.UpdatePreferences(ctx, func(p *model.NotificationPreferences) {
		cfg := p.Categories[category]
		if channel == "" {
			cfg.Enabled = !cfg.Enabled
			p.Categories[category] = cfg
			return
		}

		if cfg.HasChannel(channel) {
			kept := cfg.Channels[:0:0]
			for _, ch := range cfg.Channels {
				if ch != channel {
					kept = append(kept, ch)
				}
			}
			cfg.Channels = kept
			if len(kept) == 0 {
				cfg.Enabled = false
			}
		} else {
			cfg.Channels = append(cfg.Channels, channel)
			cfg.Enabled = true
		}
		p.Categories[category] = cfg
	})
}

// SetFrequency records the delivery cadence of a category.
func (s *Store) SetFrequency(ctx context.Context, category model.Category, freq model.Frequency) error {
	if !category.Valid() {
		return fmt.Errorf("%w: unknown category %q", common.ErrInvalidConfig, category)
	}
	return s.UpdatePreferences(ctx, func(p *model.NotificationPreferences) {
		cfg := p.Categories[category]
		cfg.Frequency = freq
		p.Categories[category] = cfg
	})
}

// SetQuietHours configures the quiet hours window. Times use HH:MM.
func (s *Store) SetQuietHours(ctx context.Context, enabled bool, start, end string) error {
	return s.UpdatePreferences(ctx, func(p *model.NotificationPreferences) {
		p.QuietHours.Enabled = enabled
		if start != "" {
			p.QuietHours.StartTime = start
		}
		if end != "" {
			p.QuietHours.EndTime = end
		}
	})
}

// SetGlobalEnabled turns all notifications on or off.
func (s *Store) SetGlobalEnabled(ctx context.Context, enabled bool) error {
	return s.UpdatePreferences(ctx, func(p *model.NotificationPreferences) {
		p.GlobalEnabled = enabled
	})
}

// ResetPreferences restores the defaults. The version keeps counting up.
func (s *Store) ResetPreferences(ctx context.Context) error {
	return s.UpdatePreferences(ctx, func(p *model.NotificationPreferences) {
		created := p.CreatedAt
		*p = model.DefaultPreferences(s.profileID, s.clock.Now())
		p.CreatedAt = created
	})
}
