package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type MessageType string

const (
	MessageTypeShapeCreate    MessageType = "shape:create"
	MessageTypeShapeUpdate    MessageType = "shape:update"
	MessageTypeShapeDelete    MessageType = "shape:delete"
	MessageTypePresenceUpdate MessageType = "presence:update"
)

// EditorOnlyPrefix marks message types that only editors may send.
const EditorOnlyPrefix = "shape:"

// Message is a realtime message exchanged over a board channel.
// Exactly one payload field is set, according to Type.
type Message struct {
	Type     MessageType
	Shape    *Shape
	ShapeID  string
	Presence *PresenceState

	// payload of a message with an unknown type, kept verbatim
	raw json.RawMessage
}

type envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type deletePayload struct {
	ID string `json:"id"`
}

func NewShapeCreate(shape Shape) Message {
	s := shape.Clone()
	return Message{Type: MessageTypeShapeCreate, Shape: &s}
}

func NewShapeUpdate(shape Shape) Message {
	s := shape.Clone()
	return Message{Type: MessageTypeShapeUpdate, Shape: &s}
}

func NewShapeDelete(id string) Message {
	return Message{Type: MessageTypeShapeDelete, ShapeID: id}
}

func NewPresenceUpdate(p PresenceState) Message {
	c := p.Clone()
	return Message{Type: MessageTypePresenceUpdate, Presence: &c}
}

// Known reports whether the message carries one of the four valid tags.
func (m Message) Known() bool {
	switch m.Type {
	case MessageTypeShapeCreate, MessageTypeShapeUpdate, MessageTypeShapeDelete, MessageTypePresenceUpdate:
		return true
	}
	return false
}

func (m Message) IsShapeEdit() bool {
	return strings.HasPrefix(string(m.Type), EditorOnlyPrefix)
}

func (m Message) MarshalJSON() ([]byte, error) {
	var payload any
	switch m.Type {
	case MessageTypeShapeCreate, MessageTypeShapeUpdate:
		if m.Shape == nil {
			return nil, fmt.Errorf("%w: %s without shape", ErrInvalidMessage, m.Type)
		}
		payload = m.Shape
	case MessageTypeShapeDelete:
		payload = deletePayload{ID: m.ShapeID}
	case MessageTypePresenceUpdate:
		if m.Presence == nil {
			return nil, fmt.Errorf("%w: %s without presence", ErrInvalidMessage, m.Type)
		}
		payload = m.Presence
	default:
		if m.raw != nil {
			payload = m.raw
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: m.Type, Payload: data})
}

// UnmarshalJSON decodes a message. Unknown types decode without error so
// that callers can ignore them; known types with a bad payload fail.
func (m *Message) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	msg := Message{Type: env.Type}
	switch env.Type {
	case MessageTypeShapeCreate, MessageTypeShapeUpdate:
		var shape Shape
		if err := decodePayload(env.Payload, &shape); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidMessage, env.Type, err)
		}
		msg.Shape = &shape
	case MessageTypeShapeDelete:
		var p deletePayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidMessage, env.Type, err)
		}
		if p.ID == "" {
			return fmt.Errorf("%w: %s without id", ErrInvalidMessage, env.Type)
		}
		msg.ShapeID = p.ID
	case MessageTypePresenceUpdate:
		var p PresenceState
		if err := decodePayload(env.Payload, &p); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidMessage, env.Type, err)
		}
		msg.Presence = &p
	default:
		msg.raw = env.Payload
	}

	*m = msg
	return nil
}

func decodePayload(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return errors.New("missing payload")
	}
	return json.Unmarshal(data, v)
}

// TypeOf extracts the type tag of a raw frame without decoding the payload.
// Valid JSON that is not an object, or has no string type, yields "".
func TypeOf(data []byte) (MessageType, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return "", nil
	}
	t, _ := obj["type"].(string)
	return MessageType(t), nil
}

// IsEditorOnly reports whether a raw type tag is reserved for editors.
func IsEditorOnly(t MessageType) bool {
	return strings.HasPrefix(string(t), EditorOnlyPrefix)
}
