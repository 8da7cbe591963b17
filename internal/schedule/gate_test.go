package schedule

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
)

func TestIsAllowedHourBounds(t *testing.T) {
	t.Parallel()

	business := domain.Schedule{StartHour: 8, EndHour: 18}

	for hour := 0; hour < 24; hour++ {
		now := time.Date(2026, time.March, 4, hour, 30, 0, 0, time.UTC)
		want := hour >= 8 && hour <= 18
		if got := IsAllowed(business, now, false); got != want {
			t.Fatalf("IsAllowed(hour=%d) = %v, want %v", hour, got, want)
		}
	}
}

func TestIsAllowedWeekdays(t *testing.T) {
	t.Parallel()

	weekdays := domain.Schedule{
		StartHour:       9,
		EndHour:         17,
		AllowedWeekdays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "wednesday in hours", now: time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC), want: true},
		{name: "saturday in hours", now: time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC), want: false},
		{name: "sunday in hours", now: time.Date(2026, time.March, 8, 10, 0, 0, 0, time.UTC), want: false},
		{name: "friday after hours", now: time.Date(2026, time.March, 6, 18, 0, 0, 0, time.UTC), want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsAllowed(weekdays, tt.now, false); got != tt.want {
				t.Fatalf("IsAllowed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsAllowedForceWindow(t *testing.T) {
	t.Parallel()

	closed := domain.Schedule{StartHour: 8, EndHour: 8, AllowedWeekdays: []time.Weekday{time.Monday}}
	now := time.Date(2026, time.March, 8, 3, 0, 0, 0, time.UTC)

	if IsAllowed(closed, now, false) {
		t.Fatal("IsAllowed() = true without force, want false")
	}
	if !IsAllowed(closed, now, true) {
		t.Fatal("IsAllowed() = false with force, want true")
	}
}

func TestGateUsesConfiguredLocation(t *testing.T) {
	t.Parallel()

	lima := time.FixedZone("PET", -5*60*60)
	gate := NewGate(lima)
	business := domain.Schedule{StartHour: 8, EndHour: 18}

	// 01:00 UTC is 20:00 the previous evening in Lima.
	now := time.Date(2026, time.March, 5, 1, 0, 0, 0, time.UTC)
	if gate.IsAllowed(business, now, false) {
		t.Fatal("IsAllowed() = true, want false for 20:00 local")
	}

	// 14:00 UTC is 09:00 in Lima.
	now = time.Date(2026, time.March, 5, 14, 0, 0, 0, time.UTC)
	if !gate.IsAllowed(business, now, false) {
		t.Fatal("IsAllowed() = false, want true for 09:00 local")
	}
}

func TestProfilesLookup(t *testing.T) {
	t.Parallel()

	profiles := DefaultProfiles()

	got, err := profiles.Lookup(" Extended ")
	if err != nil {
		t.Fatalf("Lookup() unexpected error = %v", err)
	}
	if got.StartHour != 7 || got.EndHour != 22 {
		t.Fatalf("Lookup() = %+v, want 7-22", got)
	}

	_, err = profiles.Lookup("weekend")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Lookup() error = %v, want ErrValidation", err)
	}
}

func TestLoadProfilesMergesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "windows.yaml")
	content := "profiles:\n  night:\n    start: 0\n    end: 6\n    days: [0, 6]\n  business:\n    start: 9\n    end: 17\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	profiles, err := LoadProfiles(path)
	if err != nil {
		t.Fatalf("LoadProfiles() error = %v", err)
	}

	night, err := profiles.Lookup("night")
	if err != nil {
		t.Fatalf("Lookup(night) error = %v", err)
	}
	if night.EndHour != 6 || len(night.AllowedWeekdays) != 2 || night.AllowedWeekdays[1] != time.Saturday {
		t.Fatalf("night = %+v, want 0-6 on Sunday and Saturday", night)
	}

	business, _ := profiles.Lookup(ProfileBusiness)
	if business.StartHour != 9 {
		t.Fatalf("business.StartHour = %d, want 9", business.StartHour)
	}
	if _, err := profiles.Lookup(ProfileFull); err != nil {
		t.Fatalf("built-in profile missing after merge: %v", err)
	}
}

func TestLoadProfilesRejectsInvertedWindow(t *testing.T) {
	t.Parallel()

	_, err := mergeProfiles(DefaultProfiles(), []byte("profiles:\n  broken:\n    start: 20\n    end: 6\n"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("mergeProfiles() error = %v, want ErrValidation", err)
	}
}
