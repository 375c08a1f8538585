package event

import (
	"fmt"
	"sort"
	"time"
)

// Query filters events by type and an inclusive timestamp range.
// A nil field means the predicate is not supplied.
type Query struct {
	Type  *string
	Start *time.Time
	End   *time.Time
}

// ByType returns a Query that matches only events of type t.
func ByType(t string) Query {
	return Query{Type: &t}
}

// Between returns a Query bounded by start and end, both inclusive.
func Between(start, end time.Time) Query {
	return Query{Start: &start, End: &end}
}

// Validate reports whether q is well-formed: when both bounds are present
// Start must be strictly before End.
func (q Query) Validate() error {
	if q.Start != nil && q.End != nil && !q.Start.Before(*q.End) {
		return fmt.Errorf("start (%s) must be before end (%s)",
			q.Start.Format(time.RFC3339Nano), q.End.Format(time.RFC3339Nano))
	}
	return nil
}

// IsEmpty reports whether q supplies no predicate at all.
func (q Query) IsEmpty() bool {
	return q.Type == nil && q.Start == nil && q.End == nil
}

// Match reports whether ev satisfies every predicate supplied by q.
func Match(ev *Event, q Query) bool {
	if q.Type != nil && ev.Type != *q.Type {
		return false
	}
	if q.Start != nil && ev.Timestamp.Before(*q.Start) {
		return false
	}
	if q.End != nil && ev.Timestamp.After(*q.End) {
		return false
	}
	return true
}

// Filter appends to dst a clone of every event in src matching q.
func Filter(dst []Event, src []Event, q Query) []Event {
	for i := range src {
		if Match(&src[i], q) {
			dst = append(dst, src[i].Clone())
		}
	}
	return dst
}

// SortByTime orders events by timestamp, breaking ties by ID.
func SortByTime(events []Event) {
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
}
