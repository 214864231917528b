package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTextBody is returned when a multipart message has no text/plain part
	ErrNoTextBody = errors.New("message has no text/plain part")
	// ErrHistoryDisabled is returned by repositories that do not keep records
	ErrHistoryDisabled = errors.New("history is disabled")
	// ErrCacheMiss is returned when no live cache entry exists for a key
	ErrCacheMiss = errors.New("cache entry not found")
)

// MalformedMessageError reports input that does not parse as a mail message
type MalformedMessageError struct {
	Err error
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed message: %v", e.Err)
}

func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}

// MissingFieldError reports an absent required header
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "Missing required header: " + e.Field
}

// BodyDecodeError reports a body that cannot be decoded under its charset or transfer encoding
type BodyDecodeError struct {
	Charset string
	Err     error
}

func (e *BodyDecodeError) Error() string {
	if e.Charset == "" {
		return fmt.Sprintf("failed to decode body: %v", e.Err)
	}
	return fmt.Sprintf("failed to decode body as %s: %v", e.Charset, e.Err)
}

func (e *BodyDecodeError) Unwrap() error {
	return e.Err
}

// GatewayError reports a failed or unusable classification call
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("classification %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
