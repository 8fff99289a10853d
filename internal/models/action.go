package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Action is the lifecycle phase a provisioning engine signals for a managed resource.
type Action string

const (
	ActionCreate Action = "onCreate"
	ActionUpdate Action = "onUpdate"
	ActionDelete Action = "onDelete"
)

var ErrUnknownAction = errors.New("unknown lifecycle action")

// Actions lists every lifecycle phase in the order a resource goes through them.
func Actions() []Action {
	return []Action{ActionCreate, ActionUpdate, ActionDelete}
}

func (a Action) String() string {
	return string(a)
}

func (a Action) IsValid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// ParseAction returns ErrUnknownAction for anything outside the three lifecycle phases,
// including the empty string.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// UnmarshalJSON keeps a non-string action as its raw JSON text so it decodes
// into an unrecognized action instead of failing the whole payload.
func (a *Action) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*a = Action(data)
		return nil
	}
	*a = Action(s)
	return nil
}
