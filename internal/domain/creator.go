package domain

import (
	"fmt"
	"strings"
)

// Priority is the scan tier of a creator
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Priorities lists every tier from most to least urgent.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// ParsePriority parses a tier name, case-insensitively.
func ParsePriority(value string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(value)))
	if !p.Valid() {
		return "", Wrap(ErrInvalidPriority, fmt.Errorf("%q", value))
	}
	return p, nil
}

// Valid reports whether p is a known tier.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Creator is a tracked content source. Creators are loaded once per scan
// cycle and are not mutated while the cycle runs.
type Creator struct {
	ID              string
	DisplayName     string
	Handle          string
	ChannelID       string // platform channel id, defaults to ID
	Priority        Priority
	Focus           string
	MaxItemsPerScan int
	LookbackDays    int
}

// Name returns the display name, falling back to the id.
func (c Creator) Name() string {
	if strings.TrimSpace(c.DisplayName) != "" {
		return c.DisplayName
	}
	return c.ID
}

// Channel returns the platform channel id to query.
func (c Creator) Channel() string {
	if strings.TrimSpace(c.ChannelID) != "" {
		return c.ChannelID
	}
	return c.ID
}

// ValidateCreator checks the fields a registry entry must carry.
func ValidateCreator(c Creator) error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("creator id is required")
	}
	if !c.Priority.Valid() {
		return fmt.Errorf("creator %s: priority is invalid: %q", c.ID, c.Priority)
	}
	if c.MaxItemsPerScan < 0 {
		return fmt.Errorf("creator %s: scan_last_n_videos must not be negative", c.ID)
	}
	if c.LookbackDays < 0 {
		return fmt.Errorf("creator %s: lookback_days must not be negative", c.ID)
	}
	return nil
}
