// Package event defines the inbound wire format consumed from the event
// queue and its validation rules
package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"

	"github.com/flapjack/flapjack/data"
)

// Type classifies an inbound event
type Type string

// Inbound event types
const (
	TypeService Type = "service"
	TypeAction  Type = "action"
	TypeMetric  Type = "metric"
)

// StateAcknowledgement is the state token carried by action events
const StateAcknowledgement = "acknowledgement"

var (
	// ErrMalformed is returned when a payload is not valid JSON or is
	// missing a required field
	ErrMalformed = errors.New("malformed event")
	// ErrInvalidType is returned when the type token is outside the
	// vocabulary
	ErrInvalidType = errors.New("invalid event type")
)

// requiredStrings are the fields every event must carry as JSON strings
var requiredStrings = []string{"entity", "state", "summary", "type"}

// Event is one check result or operator action pulled off the inbound queue
type Event struct {
	Entity  string `json:"entity"`
	Check   string `json:"check,omitempty"`
	Type    Type   `json:"type"`
	State   string `json:"state"`
	Summary string `json:"summary"`
	Details string `json:"details,omitempty"`
	Time    int64  `json:"time"`

	Tags []string `json:"tags,omitempty"`

	// Per-event overrides of the check's delay settings; nil leaves the
	// check untouched
	InitialFailureDelay *int `json:"initial_failure_delay,omitempty"`
	RepeatFailureDelay  *int `json:"repeat_failure_delay,omitempty"`

	// Action fields
	AcknowledgementID string `json:"acknowledgement_id,omitempty"`
	Duration          int64  `json:"duration,omitempty"`
}

// Parse validates a raw payload and decodes it. The required fields are
// sniffed with jsonparser first so obviously broken payloads are rejected
// without a full decode.
func Parse(raw []byte) (*Event, error) {
	for _, field := range requiredStrings {
		v, err := jsonparser.GetString(raw, field)
		if err != nil || v == "" {
			return nil, fmt.Errorf("%w: missing field %q", ErrMalformed, field)
		}
	}
	if _, err := jsonparser.GetInt(raw, "time"); err != nil {
		return nil, fmt.Errorf("%w: missing field %q", ErrMalformed, "time")
	}

	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Validate applies the schema rules that survive decoding
func (e *Event) Validate() error {
	switch e.Type {
	case TypeService, TypeMetric:
		if _, err := data.ParseCondition(e.State); err != nil {
			return fmt.Errorf("%w: state %q", ErrMalformed, e.State)
		}
	case TypeAction:
		if e.State != StateAcknowledgement {
			return fmt.Errorf("%w: action state %q", ErrMalformed, e.State)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidType, e.Type)
	}
	if e.Time <= 0 {
		return fmt.Errorf("%w: non-positive time", ErrMalformed)
	}
	return nil
}

// CheckName combines entity and the optional check sub-identifier
func (e *Event) CheckName() string {
	if e.Check == "" {
		return e.Entity
	}
	return e.Entity + ":" + e.Check
}

// Condition returns the event state as a condition token; only valid for
// service and metric events
func (e *Event) Condition() data.Condition {
	c, _ := data.ParseCondition(e.State)
	return c
}

// IsAcknowledgement reports whether the event is an operator ack action
func (e *Event) IsAcknowledgement() bool {
	return e.Type == TypeAction && e.State == StateAcknowledgement
}
