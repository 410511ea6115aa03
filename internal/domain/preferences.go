package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Channel represents a delivery channel toggle.
type Channel string

const (
	ChannelPush  Channel = "PUSH"
	ChannelInApp Channel = "IN_APP"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelPush, ChannelInApp:
		return true
	}
	return false
}

// QuietHours is a wall-clock suppression window. The interval may wrap past
// midnight: with Start > End the inside interval is [Start, 24:00) ∪ [00:00, End).
type QuietHours struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"` // "HH:MM", 24h
	End     string `json:"end"`   // "HH:MM", 24h
}

// Contains reports whether now falls inside the quiet window. A disabled or
// zero-length window contains nothing.
func (q QuietHours) Contains(now time.Time) bool {
	if !q.Enabled {
		return false
	}

	start, err := parseMinuteOfDay(q.Start)
	if err != nil {
		return false
	}
	end, err := parseMinuteOfDay(q.End)
	if err != nil {
		return false
	}
	if start == end {
		return false
	}

	minute := now.Hour()*60 + now.Minute()
	if start < end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

func (q QuietHours) Validate() error {
	if !q.Enabled {
		return nil
	}
	if _, err := parseMinuteOfDay(q.Start); err != nil {
		return fmt.Errorf("%w: invalid quiet hours start %q", ErrValidation, q.Start)
	}
	if _, err := parseMinuteOfDay(q.End); err != nil {
		return fmt.Errorf("%w: invalid quiet hours end %q", ErrValidation, q.End)
	}
	return nil
}

func parseMinuteOfDay(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour*60 + minute, nil
}

// PreferenceSet holds the per-user notification toggles. One instance per
// user; read by every gating stage.
type PreferenceSet struct {
	Categories   map[Category]bool `json:"categories"`
	Priorities   map[Priority]bool `json:"priorities"`
	Channels     map[Channel]bool  `json:"channels"`
	QuietHours   QuietHours        `json:"quietHours"`
	Sound        bool              `json:"sound"`
	Vibration    bool              `json:"vibration"`
	BatchSimilar bool              `json:"batchSimilar"`
}

// DefaultPreferences enables everything with batching on and no quiet hours.
func DefaultPreferences() PreferenceSet {
	p := PreferenceSet{
		Categories:   make(map[Category]bool, len(Categories())),
		Priorities:   make(map[Priority]bool, len(Priorities())),
		Channels:     map[Channel]bool{ChannelPush: true, ChannelInApp: true},
		Sound:        true,
		Vibration:    true,
		BatchSimilar: true,
	}
	for _, c := range Categories() {
		p.Categories[c] = true
	}
	for _, pr := range Priorities() {
		p.Priorities[pr] = true
	}
	return p
}

// Normalize fills missing toggle maps so lookups on a partially stored set do
// not silently disable everything.
func (p *PreferenceSet) Normalize() {
	defaults := DefaultPreferences()
	if p.Categories == nil {
		p.Categories = defaults.Categories
	}
	if p.Priorities == nil {
		p.Priorities = defaults.Priorities
	}
	if p.Channels == nil {
		p.Channels = defaults.Channels
	}
}

func (p *PreferenceSet) Validate() error {
	for c := range p.Categories {
		if !c.IsValid() {
			return fmt.Errorf("%w: invalid category %q in preferences", ErrValidation, c)
		}
	}
	for pr := range p.Priorities {
		if !pr.IsValid() {
			return fmt.Errorf("%w: invalid priority %q in preferences", ErrValidation, pr)
		}
	}
	for ch := range p.Channels {
		if !ch.IsValid() {
			return fmt.Errorf("%w: invalid channel %q in preferences", ErrValidation, ch)
		}
	}
	return p.QuietHours.Validate()
}
