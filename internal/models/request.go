package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidPayload = errors.New("invalid invocation payload")

// RequestParams is embedded verbatim in the invocation payload. Field order is
// part of the wire contract: it fixes the serialized form and therefore the
// physical resource id.
type RequestParams struct {
	SecretName   string `json:"secretName"`
	DatabaseName string `json:"databaseName"`
	Action       Action `json:"action"`
}

// Payload is the JSON envelope sent to the initializer function.
type Payload struct {
	Params RequestParams `json:"params"`
}

// RequestDescriptor is what the provisioning engine hands to the invocation transport.
type RequestDescriptor struct {
	TargetIdentifier   string `json:"targetIdentifier"`
	SerializedPayload  string `json:"serializedPayload"`
	PhysicalResourceID string `json:"physicalResourceId"`
}

// Event is a decoded invocation, one concrete type per lifecycle phase.
type Event interface {
	Params() RequestParams
	isLifecycleEvent()
}

type CreateEvent struct{ RequestParams }

type UpdateEvent struct{ RequestParams }

type DeleteEvent struct{ RequestParams }

func (e CreateEvent) Params() RequestParams { return e.RequestParams }
func (e UpdateEvent) Params() RequestParams { return e.RequestParams }
func (e DeleteEvent) Params() RequestParams { return e.RequestParams }

func (CreateEvent) isLifecycleEvent() {}
func (UpdateEvent) isLifecycleEvent() {}
func (DeleteEvent) isLifecycleEvent() {}

// NewEvent selects the event type from params.Action.
func NewEvent(params RequestParams) (Event, error) {
	switch params.Action {
	case ActionCreate:
		return CreateEvent{params}, nil
	case ActionUpdate:
		return UpdateEvent{params}, nil
	case ActionDelete:
		return DeleteEvent{params}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, params.Action)
	}
}

// DecodeEvent parses an invocation payload. A payload that is not a JSON object
// with a params object yields ErrInvalidPayload; a well-formed payload with a
// missing or unrecognized action yields ErrUnknownAction together with the
// decoded params.
func DecodeEvent(raw []byte) (Event, RequestParams, error) {
	var envelope struct {
		Params *RequestParams `json:"params"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, RequestParams{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if envelope.Params == nil {
		return nil, RequestParams{}, fmt.Errorf("%w: missing params", ErrInvalidPayload)
	}

	params := *envelope.Params
	event, err := NewEvent(params)
	if err != nil {
		return nil, params, err
	}
	return event, params, nil
}
