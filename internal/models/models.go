// Package models defines the core data structures for HydroPipe.
//
// It includes the tracking domain (profiles, daily records, sessions) and the
// transport types (inbound responses, delivery receipts, API envelopes) shared
// across modules.
package models

import (
	"errors"
)

// Error variables for better error handling and testability
var (
	ErrEmptyUserID       = errors.New("user id cannot be empty")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrInvalidProfile    = errors.New("invalid profile")
	ErrHistoryRange      = errors.New("history period out of range")
	ErrUnknownWorkout    = errors.New("unknown workout type")
	ErrInvalidAmount     = errors.New("amount must be a positive number")
	ErrMalformedBuffer   = errors.New("malformed session buffer")
	ErrLookupUnavailable = errors.New("lookup service unavailable")
)

// MessageStatus represents the delivery status of a message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the message was delivered.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the message was read.
	MessageStatusRead MessageStatus = "read"
	// MessageStatusFailed indicates the message failed to send.
	MessageStatusFailed MessageStatus = "failed"
)

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// Receipt records the delivery state of an outbound message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// Response represents an incoming message from a user.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
