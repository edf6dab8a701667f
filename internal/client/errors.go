// ABOUTME: Closed failure taxonomy for API calls
// ABOUTME: Every failed call surfaces as an *Error carrying exactly one Class

package client

import (
	"errors"
	"fmt"
)

// Class is the classification of a failed call
type Class string

const (
	ClassLoginRejected  Class = "login_rejected"
	ClassSessionExpired Class = "session_expired"
	ClassForbidden      Class = "forbidden"
	ClassNotFound       Class = "not_found"
	ClassServerError    Class = "server_error"
	ClassNetworkError   Class = "network_error"
	ClassClientError    Class = "client_error"
)

// Error is a classified call failure
type Error struct {
	Class   Class
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Class.Notice("")
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Class, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Class, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same class, so callers can write
// errors.Is(err, &client.Error{Class: client.ClassForbidden}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Class == e.Class
}

// ClassOf returns the classification anywhere in err's chain
func ClassOf(err error) (Class, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Class, true
	}
	return "", false
}

// IsClass reports whether err carries class c
func IsClass(err error, c Class) bool {
	got, ok := ClassOf(err)
	return ok && got == c
}

// Notice is the user-visible text for a failure of this class. message is
// the server-supplied text, used where the server's wording is the best
// explanation.
func (c Class) Notice(message string) string {
	switch c {
	case ClassLoginRejected:
		if message != "" {
			return message
		}
		return "Incorrect username or password"
	case ClassSessionExpired:
		return "Session expired, please log in again"
	case ClassForbidden:
		return "You do not have permission to access this"
	case ClassNotFound:
		return "The requested resource does not exist"
	case ClassServerError:
		return "Server error, please try again later"
	case ClassNetworkError:
		return "Network error, please check your connection"
	default:
		if message != "" {
			return message
		}
		return "Request failed"
	}
}
