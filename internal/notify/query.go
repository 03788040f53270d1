package notify

import (
	"fmt"

	"github.com/Veraticus/ecofinance-notify/internal/model"
)

// Filter selects a view of the inbox.
type Filter string

// Inbox views.
const (
	FilterAll    Filter = "all"
	FilterUnread Filter = "unread"
	FilterActive Filter = "active"
	FilterUrgent Filter = "urgent"
)

// ParseFilter converts a user-supplied view name.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterUnread, FilterActive, FilterUrgent:
		return f, nil
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

func (f Filter) match(n model.Notification) bool {
	switch f {
	case FilterUnread:
		return n.Status.IsUnread()
	case FilterActive:
		return n.Status != model.StatusDismissed
	case FilterUrgent:
		return n.Priority == model.PriorityUrgent && n.Status != model.StatusDismissed
	default:
		return true
	}
}

// Notifications returns the inbox, most recent first, narrowed by filter
// and, when category is non-empty, by category.
func (s *Store) Notifications(filter Filter, category model.Category) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if category != "" && n.Category != category {
			continue
		}
		if filter.match(n) {
			out = append(out, n)
		}
	}
	return out
}

// CountByCategory returns unread counts per category.
func (s *Store) CountByCategory() map[model.Category]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[model.Category]int)
	for _, n := range s.notifications {
		if n.Status.IsUnread() {
			counts[n.Category]++
		}
	}
	return counts
}

// Queue returns the held-back notifications, oldest first.
func (s *Store) Queue() []model.QueuedNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.QueuedNotification(nil), s.queue...)
}
