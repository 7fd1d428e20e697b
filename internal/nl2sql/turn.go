package nl2sql

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// Turn is one message of the conversation history owned by the caller.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

func HumanTurn(text string) Turn {
	return Turn{Role: RoleHuman, Text: text}
}

func AssistantTurn(text string) Turn {
	return Turn{Role: RoleAssistant, Text: text}
}

func (t Turn) Validate() error {
	switch t.Role {
	case RoleHuman, RoleAssistant:
		return nil
	default:
		return fmt.Errorf("invalid turn role %q", t.Role)
	}
}

func (t Turn) label() string {
	if t.Role == RoleAssistant {
		return "AI"
	}
	return "Human"
}

// FormatHistory renders turns in order, one "Human: ..." or "AI: ..." line each.
func FormatHistory(history []Turn) string {
	if len(history) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, turn := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(turn.label())
		b.WriteString(": ")
		b.WriteString(turn.Text)
	}
	return b.String()
}
