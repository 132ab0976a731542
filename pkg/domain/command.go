package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// CommandKind is the tag of a command.
type CommandKind string

const (
	KindSetValue      CommandKind = "SET_VALUE"
	KindSetMany       CommandKind = "SET_MANY"
	KindExecuteAction CommandKind = "EXECUTE_ACTION"
)

// Command is a request applied to the runtime through the bridge.
// The set of commands is closed: only types in this package implement it.
type Command interface {
	Kind() CommandKind
	command()
}

// SetValue sets one path.
type SetValue struct {
	Path  string `json:"path" mapstructure:"path"`
	Value any    `json:"value" mapstructure:"value"`
}

// SetMany sets several paths atomically.
type SetMany struct {
	Updates map[string]any `json:"updates" mapstructure:"updates"`
}

// ExecuteAction invokes a named runtime action.
type ExecuteAction struct {
	ActionID string `json:"action_id" mapstructure:"action_id"`
	Input    any    `json:"input,omitempty" mapstructure:"input"`
}

func (SetValue) Kind() CommandKind      { return KindSetValue }
func (SetMany) Kind() CommandKind       { return KindSetMany }
func (ExecuteAction) Kind() CommandKind { return KindExecuteAction }

func (SetValue) command()      {}
func (SetMany) command()       {}
func (ExecuteAction) command() {}

// DecodeCommand builds a command from a loosely typed payload such as decoded JSON.
// The "type" key selects the variant; the remaining keys fill its fields.
//
//	{"type": "SET_VALUE", "path": "data.age", "value": 30}
//	{"type": "SET_MANY", "updates": {"data.name": "John"}}
//	{"type": "EXECUTE_ACTION", "action_id": "submit", "input": {...}}
func DecodeCommand(payload map[string]any) (Command, error) {
	kind, _ := payload["type"].(string)

	var target Command
	switch CommandKind(kind) {
	case KindSetValue:
		target = &SetValue{}
	case KindSetMany:
		target = &SetMany{}
	case KindExecuteAction:
		target = &ExecuteAction{}
	default:
		return nil, fmt.Errorf("unknown command type %q", kind)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	rest := make(map[string]any, len(payload))
	for k, v := range payload {
		if k != "type" {
			rest[k] = v
		}
	}
	if err := decoder.Decode(rest); err != nil {
		return nil, fmt.Errorf("invalid %s command: %w", kind, err)
	}

	switch cmd := target.(type) {
	case *SetValue:
		if cmd.Path == "" {
			return nil, fmt.Errorf("invalid %s command: path is required", kind)
		}
		return *cmd, nil
	case *SetMany:
		return *cmd, nil
	case *ExecuteAction:
		if cmd.ActionID == "" {
			return nil, fmt.Errorf("invalid %s command: action_id is required", kind)
		}
		return *cmd, nil
	}
	return nil, fmt.Errorf("unknown command type %q", kind)
}
