package domain

import (
	"fmt"
	"time"
)

// Clock supplies the current time. Production code uses SystemClock;
// tests inject a fixed one.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// WillExpireAt computes when an unaccepted pending job times out, from its
// due time and the moment the booking entered (or re-entered) pending.
// Short-notice jobs stay open until the session itself; jobs further out get
// a tighter acceptance deadline.
func WillExpireAt(due, createdAt time.Time) time.Time {
	remaining := due.Sub(createdAt)
	switch {
	case remaining <= 90*time.Minute:
		return due
	case remaining <= 24*time.Hour:
		return createdAt.Add(90 * time.Minute)
	case remaining <= 72*time.Hour:
		return createdAt.Add(16 * time.Hour)
	default:
		return due.Add(-48 * time.Hour)
	}
}

// SessionInterval formats the elapsed time between a session's due instant
// and its end as H:MM:SS, the format stored in session_time.
func SessionInterval(due, endedAt time.Time) string {
	d := endedAt.Sub(due)
	if d < 0 {
		d = -d
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// HumanSessionTime renders an H:MM:SS interval as "X h Y min" for session
// summary messages. Malformed intervals come back unchanged.
func HumanSessionTime(interval string) string {
	var h, m, s int
	if _, err := fmt.Sscanf(interval, "%d:%d:%d", &h, &m, &s); err != nil {
		return interval
	}
	return fmt.Sprintf("%d h %d min", h, m)
}

// FormatMinutes renders a duration in minutes the way booking messages show
// it: "45min", "1h", "1h 30min".
func FormatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dmin", minutes)
	}
	if minutes == 60 {
		return "1h"
	}
	return fmt.Sprintf("%dh %dmin", minutes/60, minutes%60)
}
