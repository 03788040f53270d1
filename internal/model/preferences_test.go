package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPreferences_CoversEveryCategory(t *testing.T) {
	prefs := DefaultPreferences("p1", time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	require.NoError(t, prefs.Validate())
	assert.Len(t, prefs.Categories, len(AllCategories()))
	assert.Equal(t, 1, prefs.Version)
	assert.True(t, prefs.GlobalEnabled)
	assert.Equal(t, "22:00", prefs.QuietHours.StartTime)
	assert.Equal(t, "08:00", prefs.QuietHours.EndTime)
	assert.False(t, prefs.Categories[CategoryAchievement].QuietHoursRespected)
	assert.True(t, prefs.Categories[CategoryBudget].HasChannel(ChannelPush))
}

func TestNotificationPreferences_Validate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		mutate  func(*NotificationPreferences)
		wantErr error
		name    string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*NotificationPreferences) {},
		},
		{
			name: "missing category",
			mutate: func(p *NotificationPreferences) {
				delete(p.Categories, CategoryInsight)
			},
			wantErr: ErrMissingCategoryConfig,
		},
		{
			name: "malformed quiet hours",
			mutate: func(p *NotificationPreferences) {
				p.QuietHours.StartTime = "25:00"
			},
		},
		{
			name: "negative auto dismiss delay",
			mutate: func(p *NotificationPreferences) {
				p.AutoDismissDelay = -1
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefs := DefaultPreferences("p1", now)
			tt.mutate(&prefs)
			err := prefs.Validate()
			switch {
			case tt.wantErr != nil:
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			case tt.name == "defaults are valid":
				assert.NoError(t, err)
			default:
				assert.Error(t, err)
			}
		})
	}
}

func TestNotificationPreferences_JSONRoundTrip(t *testing.T) {
	prefs := DefaultPreferences("p1", time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	prefs.Version = 7
	cfg := prefs.Categories[CategoryReport]
	cfg.Enabled = false
	prefs.Categories[CategoryReport] = cfg

	raw, err := json.Marshal(prefs)
	require.NoError(t, err)

	var decoded NotificationPreferences
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, prefs.Categories, decoded.Categories)
	assert.Equal(t, prefs.Version, decoded.Version)
	assert.True(t, prefs.CreatedAt.Equal(decoded.CreatedAt))
}

func TestNotificationPreferences_CloneIsDeep(t *testing.T) {
	prefs := DefaultPreferences("p1", time.Now())
	cp := prefs.Clone()

	cfg := cp.Categories[CategoryBudget]
	cfg.Channels[0] = ChannelSMS
	cp.Categories[CategoryBudget] = cfg

	assert.Equal(t, ChannelInApp, prefs.Categories[CategoryBudget].Channels[0])
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "08:30", want: 510},
		{in: "23:59", want: 1439},
		{in: "24:00", wantErr: true},
		{in: "7", wantErr: true},
		{in: "ab:cd", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFrequency(t *testing.T) {
	for _, in := range []string{"realtime", "hourly", "daily", "weekly"} {
		f, err := ParseFrequency(in)
		require.NoError(t, err)
		assert.Equal(t, Frequency(in), f)
	}
	_, err := ParseFrequency("monthly")
	assert.Error(t, err)
}
