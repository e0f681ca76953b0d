package common

import (
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// TemporalExtent is a [start, end] time interval. A nil End is an open interval.
type TemporalExtent struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// NewTemporalExtent parses the given instants. An empty end yields an open interval.
func NewTemporalExtent(start, end string) (TemporalExtent, error) {
	extent := TemporalExtent{}
	if start == "" {
		return extent, fmt.Errorf("temporal extent: start is required")
	}
	startTime, err := dateparse.ParseAny(start)
	if err != nil {
		return extent, fmt.Errorf("temporal extent: parse start: %w", err)
	}
	extent.Start = startTime
	if end != "" {
		endTime, err := dateparse.ParseAny(end)
		if err != nil {
			return extent, fmt.Errorf("temporal extent: parse end: %w", err)
		}
		extent.End = &endTime
	}
	if err := extent.Validate(); err != nil {
		return TemporalExtent{}, err
	}
	return extent, nil
}

// Validate checks that the start is set and does not follow the end
func (t TemporalExtent) Validate() error {
	if t.IsZero() {
		return nil
	}
	if t.Start.IsZero() {
		return fmt.Errorf("temporal extent: start is required")
	}
	if t.End != nil && t.Start.After(*t.End) {
		return fmt.Errorf("temporal extent: start %v after end %v", t.Start, *t.End)
	}
	return nil
}

// IsZero returns true when no extent is set at all
func (t TemporalExtent) IsZero() bool {
	return t.Start.IsZero() && t.End == nil
}

// Contains returns whether the instant falls inside the interval (inclusive)
func (t TemporalExtent) Contains(instant time.Time) bool {
	if instant.Before(t.Start) {
		return false
	}
	if t.End != nil && instant.After(*t.End) {
		return false
	}
	return true
}

func (t TemporalExtent) String() string {
	if t.End == nil {
		return fmt.Sprintf("[%s, ..]", t.Start.Format(time.RFC3339))
	}
	return fmt.Sprintf("[%s, %s]", t.Start.Format(time.RFC3339), t.End.Format(time.RFC3339))
}

// Datetime returns the extent as a catalog datetime interval
// (start/end, open-ended as start/..)
func (t TemporalExtent) Datetime() string {
	if t.End == nil {
		return t.Start.Format(time.RFC3339) + "/.."
	}
	return t.Start.Format(time.RFC3339) + "/" + t.End.Format(time.RFC3339)
}
