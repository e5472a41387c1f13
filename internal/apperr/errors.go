// Package apperr holds the error kinds shared by the services and the
// command layer. Services wrap failures in *Error; callers match kinds
// with errors.Is.
package apperr

import (
	"errors"
	"strings"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrPermission   = errors.New("permission denied")
	ErrNotFound     = errors.New("not found")
	ErrEmbedding    = errors.New("embedding provider failure")
	ErrRoomCreation = errors.New("room creation failure")
	ErrCompletion   = errors.New("completion provider failure")
	ErrStorage      = errors.New("storage failure")
)

type Error struct {
	Kind    error
	Message string
	// Details lists individual user-correctable problems (validation only).
	Details []string
	Err     error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Validation(message string, details ...string) error {
	return &Error{Kind: ErrValidation, Message: message, Details: details}
}

func Permission(message string) error {
	return &Error{Kind: ErrPermission, Message: message}
}

func NotFound(message string) error {
	return &Error{Kind: ErrNotFound, Message: message}
}

func Embedding(err error) error {
	return &Error{Kind: ErrEmbedding, Message: "failed to generate embedding", Err: err}
}

func RoomCreation(err error) error {
	return &Error{Kind: ErrRoomCreation, Message: "failed to create room", Err: err}
}

func Completion(err error) error {
	return &Error{Kind: ErrCompletion, Message: "failed to generate completion", Err: err}
}

func Storage(op string, err error) error {
	return &Error{Kind: ErrStorage, Message: op, Err: err}
}

// UserMessage renders err as the text shown to the person who ran the
// command.
func UserMessage(err error) string {
	var appErr *Error
	switch {
	case errors.Is(err, ErrValidation):
		if errors.As(err, &appErr) {
			if len(appErr.Details) > 0 {
				return strings.Join(appErr.Details, "\n")
			}
			return appErr.Message
		}
		return err.Error()
	case errors.Is(err, ErrPermission):
		return "That item is not yours. You can only change content you created."
	case errors.Is(err, ErrNotFound):
		return "No such item. Check the ID from /search or /my_content."
	case errors.Is(err, ErrEmbedding), errors.Is(err, ErrRoomCreation), errors.Is(err, ErrCompletion):
		return "An upstream service is temporarily unavailable. Please try again in a moment."
	default:
		return "Something went wrong while processing your request. Please try again."
	}
}
