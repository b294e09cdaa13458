// Package models defines session structures for HydroPipe conversation flows.
package models

import "time"

// Session is the current state of one user's in-progress flow plus its
// transient buffer. It is never persisted with the profile.
type Session struct {
	UserID    string             `json:"user_id"`
	State     StateType          `json:"state"`
	Buffer    map[DataKey]string `json:"buffer,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// CurrentState returns the session state, treating empty as Idle.
func (s *Session) CurrentState() StateType {
	if s == nil || s.State == "" {
		return StateIdle
	}
	return s.State
}

// Clone returns a copy of the session with its own buffer.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Buffer != nil {
		c.Buffer = make(map[DataKey]string, len(s.Buffer))
		for k, v := range s.Buffer {
			c.Buffer[k] = v
		}
	}
	return &c
}
