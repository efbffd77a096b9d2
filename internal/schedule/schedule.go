// Package schedule applies timed scale changes to a clock.
package schedule

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/myorg/scaledclock/internal/config"
)

// Change sets the scale to Percent once After has elapsed in real time since
// the scheduler started.
type Change struct {
	After   time.Duration `yaml:"after" json:"after"`
	Percent float64       `yaml:"percent" json:"percent"`
}

// File is the YAML layout accepted by ParseYAML.
type File struct {
	Schedule []Change `yaml:"schedule"`
}

// ParseYAML parses a schedule document.
func ParseYAML(data []byte) ([]Change, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := Validate(f.Schedule); err != nil {
		return nil, err
	}
	return Sorted(f.Schedule), nil
}

// ParseFile parses a schedule document from a file.
func ParseFile(path string) ([]Change, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseYAML(data)
}

// FromConfig converts configuration entries into changes.
func FromConfig(entries []config.ScheduleEntry) []Change {
	changes := make([]Change, len(entries))
	for i, e := range entries {
		changes[i] = Change{After: e.After, Percent: e.Percent}
	}
	return Sorted(changes)
}

// Validate rejects negative offsets. Percentages are not checked since the
// clock clamps them.
func Validate(changes []Change) error {
	for i, c := range changes {
		if c.After < 0 {
			return fmt.Errorf("change %d: after must be >= 0, got %s", i, c.After)
		}
	}
	return nil
}

// Sorted returns a copy ordered by offset; changes with equal offsets keep
// their relative order.
func Sorted(changes []Change) []Change {
	out := make([]Change, len(changes))
	copy(out, changes)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].After < out[j].After
	})
	return out
}
