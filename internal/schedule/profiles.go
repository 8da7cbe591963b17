package schedule

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	ProfileBusiness = "business"
	ProfileExtended = "extended"
	ProfileFull     = "full"
	ProfileCustom   = "custom"
)

// Profiles maps a window name to its schedule.
type Profiles map[string]domain.Schedule

// DefaultProfiles returns the built-in named windows.
func DefaultProfiles() Profiles {
	return Profiles{
		ProfileBusiness: {StartHour: 8, EndHour: 18},
		ProfileExtended: {StartHour: 7, EndHour: 22},
		ProfileFull:     {StartHour: 0, EndHour: 23},
		ProfileCustom: {
			StartHour: 9,
			EndHour:   17,
			AllowedWeekdays: []time.Weekday{
				time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
			},
		},
	}
}

// Lookup returns the named schedule, matching names case-insensitively.
func (p Profiles) Lookup(name string) (domain.Schedule, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	schedule, ok := p[key]
	if !ok {
		return domain.Schedule{}, fmt.Errorf("%w: unknown window profile %q", domain.ErrValidation, name)
	}
	return schedule, nil
}

func (p Profiles) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadProfiles merges the YAML file at path over the built-in profiles. An
// empty path returns the defaults.
//
//	profiles:
//	  night:
//	    start: 0
//	    end: 6
//	    days: [0, 6]
func LoadProfiles(path string) (Profiles, error) {
	profiles := DefaultProfiles()
	if strings.TrimSpace(path) == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read window profiles: %w", err)
	}

	return mergeProfiles(profiles, data)
}

func mergeProfiles(profiles Profiles, data []byte) (Profiles, error) {
	var file struct {
		Profiles map[string]domain.Schedule `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse window profiles: %w", err)
	}

	for name, schedule := range file.Profiles {
		if err := schedule.Validate(); err != nil {
			return nil, fmt.Errorf("window profile %q: %w", name, err)
		}
		profiles[strings.ToLower(strings.TrimSpace(name))] = schedule
	}

	return profiles, nil
}
