package event_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/argus/internal/event"
)

var t0 = time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)

func makeEvent(id, typ string, ts time.Time) event.Event {
	return event.Event{
		ID:        id,
		Type:      typ,
		Timestamp: ts,
		Payload:   json.RawMessage(`{"key":"value"}`),
	}
}

func ptr[T any](v T) *T { return &v }

type matchCase struct {
	name string
	ev   event.Event
	q    event.Query
	want bool
}

func TestMatch(t *testing.T) {
	ev := makeEvent("e1", "signup", t0)

	cases := []matchCase{
		{name: "empty query matches", ev: ev, q: event.Query{}, want: true},
		{name: "type equal", ev: ev, q: event.ByType("signup"), want: true},
		{name: "type differs", ev: ev, q: event.ByType("click"), want: false},
		{name: "type is case sensitive", ev: ev, q: event.ByType("Signup"), want: false},
		{name: "type is not trimmed", ev: ev, q: event.ByType("signup "), want: false},
		{name: "empty type never matches", ev: ev, q: event.ByType(""), want: false},
		{name: "start inclusive", ev: ev, q: event.Query{Start: ptr(t0)}, want: true},
		{name: "start after event", ev: ev, q: event.Query{Start: ptr(t0.Add(time.Nanosecond))}, want: false},
		{name: "end inclusive", ev: ev, q: event.Query{End: ptr(t0)}, want: true},
		{name: "end before event", ev: ev, q: event.Query{End: ptr(t0.Add(-time.Nanosecond))}, want: false},
		{name: "within range", ev: ev, q: event.Between(t0.Add(-time.Hour), t0.Add(time.Hour)), want: true},
		{name: "outside range", ev: ev, q: event.Between(t0.Add(time.Hour), t0.Add(2*time.Hour)), want: false},
		{
			name: "type and range conjunctive",
			ev:   ev,
			q:    event.Query{Type: ptr("click"), Start: ptr(t0.Add(-time.Hour)), End: ptr(t0.Add(time.Hour))},
			want: false,
		},
		{
			name: "bounds in other zone compare as instants",
			ev:   ev,
			q:    event.Query{Start: ptr(t0.In(time.FixedZone("CEST", 2*60*60)))},
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, event.Match(&tc.ev, tc.q))
		})
	}
}

func TestQueryValidate(t *testing.T) {
	assert.NoError(t, event.Between(t0, t0.Add(time.Second)).Validate())
	assert.Error(t, event.Between(t0, t0).Validate(), "start == end")
	assert.Error(t, event.Between(t0.Add(time.Second), t0).Validate(), "start > end")
	assert.NoError(t, event.Query{Start: ptr(t0)}.Validate(), "open-ended")
}

func TestFilterClonesPayload(t *testing.T) {
	src := []event.Event{makeEvent("e1", "signup", t0), makeEvent("e2", "click", t0)}

	out := event.Filter(nil, src, event.ByType("signup"))
	require.Len(t, out, 1)
	require.Equal(t, "e1", out[0].ID)

	out[0].Payload[0] = 'X'
	assert.Equal(t, `{"key":"value"}`, string(src[0].Payload))
}

func TestCloneNilPayload(t *testing.T) {
	ev := event.Event{ID: "e1", Type: "signup", Timestamp: t0}
	assert.Equal(t, "null", string(ev.Clone().Payload))
}

func TestSortByTime(t *testing.T) {
	events := []event.Event{
		makeEvent("c", "x", t0.Add(time.Hour)),
		makeEvent("b", "x", t0),
		makeEvent("a", "x", t0),
	}
	event.SortByTime(events)

	got := make([]string, 0, len(events))
	for _, ev := range events {
		got = append(got, ev.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
