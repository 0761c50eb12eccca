package detect

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

// FallbackSelector targets the media element itself when no play control
// produced any traffic
const FallbackSelector = "video"

// Trigger is one play-control heuristic. Lower Priority values are tried first.
type Trigger struct {
	Selector string `yaml:"selector" json:"selector"`
	Priority int    `yaml:"priority" json:"priority"`
	Player   string `yaml:"player" json:"player,omitempty"`
}

var defaultTriggers = []Trigger{
	{Selector: ".jw-icon-display", Priority: 10, Player: "jwplayer"},
	{Selector: ".vjs-big-play-button", Priority: 20, Player: "videojs"},
	{Selector: `[class*="play-button"]`, Priority: 30, Player: "generic"},
	{Selector: `[class*="playButton"]`, Priority: 40, Player: "generic"},
	{Selector: ".play-btn", Priority: 50, Player: "generic"},
	{Selector: `button[aria-label*="play" i]`, Priority: 60, Player: "aria"},
	{Selector: `[data-plyr="play"]`, Priority: 70, Player: "plyr"},
}

// DefaultTriggers returns a copy of the built-in trigger list
func DefaultTriggers() []Trigger {
	return slices.Clone(defaultTriggers)
}

// TriggerTable is an immutable, priority-ordered list of triggers
type TriggerTable struct {
	entries []Trigger
}

// NewTriggerTable merges the given lists into one table. A selector listed
// more than once keeps its last definition. Entries with equal priority keep
// the order in which they were supplied.
func NewTriggerTable(lists ...[]Trigger) TriggerTable {
	index := make(map[string]int)
	var merged []Trigger

	for _, list := range lists {
		for _, t := range list {
			t.Selector = strings.TrimSpace(t.Selector)
			if t.Selector == "" {
				continue
			}
			if i, ok := index[t.Selector]; ok {
				merged[i] = t
				continue
			}
			index[t.Selector] = len(merged)
			merged = append(merged, t)
		}
	}

	slices.SortStableFunc(merged, func(a, b Trigger) int {
		return a.Priority - b.Priority
	})
	return TriggerTable{entries: merged}
}

// DefaultTriggerTable returns the table built from the default triggers
func DefaultTriggerTable() TriggerTable {
	return NewTriggerTable(defaultTriggers)
}

// Entries returns the triggers in the order they are attempted
func (t TriggerTable) Entries() []Trigger {
	return slices.Clone(t.entries)
}

// Len returns the number of triggers
func (t TriggerTable) Len() int {
	return len(t.entries)
}

type triggerFile struct {
	Triggers []Trigger `yaml:"triggers"`
}

// ParseTriggers decodes a YAML trigger list of the form
//
//	triggers:
//	  - selector: ".my-player .start"
//	    priority: 35
//	    player: custom
func ParseTriggers(data []byte) ([]Trigger, error) {
	var file triggerFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse triggers: %w", err)
	}
	for i, t := range file.Triggers {
		if strings.TrimSpace(t.Selector) == "" {
			return nil, fmt.Errorf("trigger %d: selector is required", i)
		}
	}
	return file.Triggers, nil
}

// LoadTriggers reads a YAML trigger file from path
func LoadTriggers(path string) ([]Trigger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read triggers file: %w", err)
	}
	return ParseTriggers(data)
}
