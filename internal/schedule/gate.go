package schedule

import (
	"time"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
)

// IsAllowed reports whether now falls inside schedule. now is evaluated in its
// own location; callers convert it first.
func IsAllowed(schedule domain.Schedule, now time.Time, forceWindow bool) bool {
	if forceWindow {
		return true
	}

	hour := now.Hour()
	if hour < schedule.StartHour || hour > schedule.EndHour {
		return false
	}

	return schedule.AllowsWeekday(now.Weekday())
}

// Gate evaluates schedules in a fixed location.
type Gate struct {
	location *time.Location
}

func NewGate(location *time.Location) *Gate {
	if location == nil {
		location = time.UTC
	}
	return &Gate{location: location}
}

func (g *Gate) Location() *time.Location {
	return g.location
}

func (g *Gate) IsAllowed(schedule domain.Schedule, now time.Time, forceWindow bool) bool {
	return IsAllowed(schedule, now.In(g.location), forceWindow)
}
