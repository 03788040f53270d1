package model

import (
	"fmt"
	"time"
)

// Priority indicates how urgently a notification should be surfaced.
type Priority string

// Priority levels.
const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Channel is a delivery channel for notifications.
type Channel string

// Delivery channels.
const (
	ChannelInApp Channel = "in_app"
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ParseChannel converts a string into a Channel.
func ParseChannel(s string) (Channel, error) {
	switch c := Channel(s); c {
	case ChannelInApp, ChannelPush, ChannelEmail, ChannelSMS:
		return c, nil
	}
	return "", fmt.Errorf("unknown notification channel %q", s)
}

// Status tracks a notification through its lifecycle.
type Status string

// Notification statuses. Read and dismissed are terminal for the UI.
const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusDismissed Status = "dismissed"
)

// IsUnread reports whether a notification in this status counts as unread.
func (s Status) IsUnread() bool {
	switch s {
	case StatusPending, StatusSent, StatusDelivered:
		return true
	}
	return false
}

// NotificationAction is a user-invokable button attached to a notification.
type NotificationAction struct {
	ID                 string `json:"id" mapstructure:"id" validate:"required"`
	Label              string `json:"label" mapstructure:"label"`
	URL                string `json:"url,omitempty" mapstructure:"url"`
	Handler            string `json:"handler,omitempty" mapstructure:"handler"`
	DismissAfterAction bool   `json:"dismissAfterAction,omitempty" mapstructure:"dismiss_after_action"`
	Primary            bool   `json:"primary,omitempty" mapstructure:"primary"`
}

// Notification is a single entry of the in-app inbox.
type Notification struct {
	Timestamp   time.Time            `json:"timestamp"`
	ReadAt      *time.Time           `json:"readAt,omitempty"`
	DismissedAt *time.Time           `json:"dismissedAt,omitempty"`
	Data        map[string]any       `json:"data,omitempty"`
	ID          string               `json:"id"`
	ProfileID   string               `json:"profileId"`
	Title       string               `json:"title"`
	Message     string               `json:"message"`
	URL         string               `json:"url,omitempty"`
	Category    Category             `json:"category"`
	Priority    Priority             `json:"priority"`
	Status      Status               `json:"status"`
	Channels    []Channel            `json:"channels"`
	Actions     []NotificationAction `json:"actions,omitempty"`
	Tags        []string             `json:"tags,omitempty"`
}

// HasChannel reports whether the notification targets the given channel.
func (n *Notification) HasChannel(ch Channel) bool {
	return containsChannel(n.Channels, ch)
}

// QueuedNotification is a draft held back during quiet hours or while offline.
type QueuedNotification struct {
	QueuedAt     time.Time    `json:"queuedAt"`
	Notification Notification `json:"notification"`
}

func containsChannel(channels []Channel, ch Channel) bool {
	for _, c := range channels {
		if c == ch {
			return true
		}
	}
	return false
}
