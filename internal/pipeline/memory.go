// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"encoding/json"
	"time"
)

// Role says who produced a Memory turn.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// Turn is one Memory entry.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Stage     Stage     `json:"stage"`
}

// Memory is the append-only conversation log of a session. The zero value is
// an empty log. Append returns a new Memory and never touches the receiver's
// backing array, so older values remain stable views.
type Memory struct {
	turns []Turn
}

// NewMemory builds a Memory holding a copy of turns.
func NewMemory(turns []Turn) Memory {
	return Memory{turns: append([]Turn(nil), turns...)}
}

// Append returns the log extended with turns.
func (m Memory) Append(turns ...Turn) Memory {
	if len(turns) == 0 {
		return m
	}
	out := make([]Turn, 0, len(m.turns)+len(turns))
	out = append(out, m.turns...)
	out = append(out, turns...)
	return Memory{turns: out}
}

// Len returns the number of turns.
func (m Memory) Len() int { return len(m.turns) }

// Turns returns a copy of the full log, oldest first.
func (m Memory) Turns() []Turn {
	return append([]Turn(nil), m.turns...)
}

// Window returns a copy of the last n turns, oldest first. A non-positive n
// returns nothing.
func (m Memory) Window(n int) []Turn {
	if n <= 0 {
		return nil
	}
	start := len(m.turns) - n
	if start < 0 {
		start = 0
	}
	return append([]Turn(nil), m.turns[start:]...)
}

// MarshalJSON encodes the log as a plain array.
func (m Memory) MarshalJSON() ([]byte, error) {
	if m.turns == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m.turns)
}

// UnmarshalJSON decodes a plain array of turns.
func (m *Memory) UnmarshalJSON(data []byte) error {
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return err
	}
	m.turns = turns
	return nil
}
