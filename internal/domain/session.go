// Package domain holds the core types shared across the service.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// SessionState tracks the lifecycle of a session.
type SessionState string

const (
	StateActive SessionState = "active"
	StateEnded  SessionState = "ended"
)

// Turn is a single exchange entry in a session's history. Immutable once
// created; Seq is assigned by the store and is strictly increasing,
// gap-free from 1 within a session.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a patient conversation anchored to one simplified report.
// The seed document is set at creation and never mutated.
type Session struct {
	ID           string       `json:"id"`
	SeedDocument string       `json:"seedDocument"`
	Turns        []Turn       `json:"turns,omitempty"`
	State        SessionState `json:"state"`
	CreatedAt    time.Time    `json:"createdAt"`
	LastActiveAt time.Time    `json:"lastActiveAt"`
}

// ValidateSessionID checks that id has the expected UUID shape.
func ValidateSessionID(id string) error {
	if id == "" {
		return NewValidation("session id is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return NewValidation("malformed session id")
	}
	return nil
}
