package notify

import (
	"log/slog"
	"time"

	"github.com/Veraticus/ecofinance-notify/internal/model"
)

// InQuietHours reports whether now falls inside the quiet hours window.
// The start minute is inclusive and the end minute exclusive; a start later
// than the end describes a window that crosses midnight. With
// ExcludeWeekends set the window never applies on Saturday or Sunday.
func InQuietHours(qh model.QuietHours, now time.Time) bool {
	if !qh.Enabled {
		return false
	}
	local := now.In(location(qh.Timezone))
	if qh.ExcludeWeekends {
		if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return false
		}
	}

	start, err := model.ParseClock(qh.StartTime)
	if err != nil {
		return false
	}
	end, err := model.ParseClock(qh.EndTime)
	if err != nil {
		return false
	}
	minute := local.Hour()*60 + local.Minute()

	switch {
	case start == end:
		return false
	case start < end:
		return minute >= start && minute < end
	default:
		return minute >= start || minute < end
	}
}

func location(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("Unknown quiet hours timezone, using local time", "timezone", name, "error", err)
		return time.Local
	}
	return loc
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
