package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/gyaneshwarpardhi/argus/internal/event"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

const submissionSchemaURL = "argus://schema/event-submission.json"

// submissionSchemaJSON describes the body accepted by POST /events and each
// item of POST /events/batch. Unknown fields (including "id") are ignored.
const submissionSchemaJSON = `{
  "type": "object",
  "required": ["event_type", "timestamp"],
  "properties": {
    "event_type": {"type": "string", "minLength": 1},
    "timestamp": {"type": "string", "format": "date-time"},
    "payload": {}
  }
}`

var submissionSchema = mustCompileSchema(submissionSchemaURL, submissionSchemaJSON)

func mustCompileSchema(url, src string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
	if err != nil {
		panic(fmt.Sprintf("parse schema %s: %v", url, err))
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, doc); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", url, err))
	}
	s, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", url, err))
	}
	return s
}

// submission is the wire shape of a new event.
type submission struct {
	EventType string          `json:"event_type"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// decodeSubmission validates raw against the submission schema and converts it
// into an Event with a UTC timestamp and no ID.
func decodeSubmission(raw []byte) (event.Event, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return event.Event{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := submissionSchema.Validate(doc); err != nil {
		return event.Event{}, fmt.Errorf("invalid event: %w", err)
	}

	var sub submission
	if err := codec.Unmarshal(raw, &sub); err != nil {
		return event.Event{}, fmt.Errorf("invalid event: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, sub.Timestamp)
	if err != nil {
		return event.Event{}, fmt.Errorf("invalid timestamp %q: expected RFC 3339", sub.Timestamp)
	}
	return event.Event{
		Type:      sub.EventType,
		Timestamp: ts.UTC(),
		Payload:   sub.Payload,
	}, nil
}
