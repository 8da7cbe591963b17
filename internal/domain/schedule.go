package domain

import (
	"fmt"
	"time"
)

// Schedule is an allowed sending window: an inclusive hour-of-day range and an
// optional weekday set. An empty weekday set allows every day.
type Schedule struct {
	StartHour       int            `json:"startHour" yaml:"start"`
	EndHour         int            `json:"endHour" yaml:"end"`
	AllowedWeekdays []time.Weekday `json:"allowedWeekdays,omitempty" yaml:"days"`
}

func (s Schedule) Validate() error {
	if s.StartHour < 0 || s.StartHour > 23 {
		return fmt.Errorf("%w: start hour %d out of range 0-23", ErrValidation, s.StartHour)
	}
	if s.EndHour < 0 || s.EndHour > 23 {
		return fmt.Errorf("%w: end hour %d out of range 0-23", ErrValidation, s.EndHour)
	}
	if s.StartHour > s.EndHour {
		return fmt.Errorf("%w: start hour %d is after end hour %d", ErrValidation, s.StartHour, s.EndHour)
	}
	for _, day := range s.AllowedWeekdays {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("%w: weekday %d out of range 0-6", ErrValidation, int(day))
		}
	}
	return nil
}

// AllowsWeekday reports whether day is permitted by the schedule.
func (s Schedule) AllowsWeekday(day time.Weekday) bool {
	if len(s.AllowedWeekdays) == 0 {
		return true
	}
	for _, allowed := range s.AllowedWeekdays {
		if allowed == day {
			return true
		}
	}
	return false
}
