package erp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors callers branch on. *Error values match them through Is.
var (
	ErrNotAuthenticated = errors.New("not_authenticated")
	ErrSessionExpired   = errors.New("session_expired")
	ErrPermissionDenied = errors.New("permission_denied")
	ErrNotFound         = errors.New("not_found")
	ErrUnreachable      = errors.New("erp_unreachable")
)

// Error is a request the ERP answered with a failure status. Messages holds
// the human-readable server messages when the payload carried any.
type Error struct {
	StatusCode int
	ExcType    string
	Messages   []string
	Fallback   string
}

func (e *Error) Error() string {
	if msg := e.Message(); msg != "" {
		return msg
	}
	return fmt.Sprintf("erp request failed with status %d", e.StatusCode)
}

// Message returns the joined server messages, or the fallback.
func (e *Error) Message() string {
	if len(e.Messages) > 0 {
		return strings.Join(e.Messages, " | ")
	}
	return e.Fallback
}

// Is maps status codes and Frappe exception types onto the sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrSessionExpired:
		return e.StatusCode == http.StatusUnauthorized || e.ExcType == "SessionExpired"
	case ErrPermissionDenied:
		return e.StatusCode == http.StatusForbidden || e.ExcType == "PermissionError"
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound || e.ExcType == "DoesNotExistError"
	}
	return false
}

// errorPayload is the envelope Frappe uses for failures.
type errorPayload struct {
	ExcType        string `json:"exc_type"`
	Exception      string `json:"exception"`
	Message        any    `json:"message"`
	ServerMessages string `json:"_server_messages"`
	Error          string `json:"error"`
}

// normalizeError turns a failed response body into an *Error. fallback is the
// caller's generic message for when the payload carries nothing readable.
func normalizeError(status int, body []byte, fallback string) *Error {
	e := &Error{StatusCode: status, Fallback: fallback}
	if e.Fallback == "" {
		e.Fallback = statusFallback(status)
	}
	var p errorPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return e
	}
	e.ExcType = p.ExcType
	e.Messages = parseServerMessages(p.ServerMessages)
	if len(e.Messages) == 0 {
		if s, ok := p.Message.(string); ok && s != "" {
			e.Messages = []string{s}
		}
	}
	if len(e.Messages) == 0 && p.Exception != "" {
		e.Messages = []string{exceptionText(p.Exception)}
	}
	if len(e.Messages) == 0 && p.Error != "" {
		e.Messages = []string{p.Error}
	}
	return e
}

// parseServerMessages decodes `_server_messages`: a JSON array of strings,
// each itself a JSON object with a "message" field.
func parseServerMessages(raw string) []string {
	if raw == "" {
		return nil
	}
	var encoded []string
	if err := json.Unmarshal([]byte(raw), &encoded); err != nil {
		return nil
	}
	var out []string
	for _, item := range encoded {
		var msg struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			// some server versions send plain strings
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
			continue
		}
		if s := strings.TrimSpace(msg.Message); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// exceptionText strips the python exception class prefix:
// "frappe.exceptions.ValidationError: Stock not sufficient" -> "Stock not sufficient".
func exceptionText(exc string) string {
	if i := strings.Index(exc, ": "); i >= 0 {
		return strings.TrimSpace(exc[i+2:])
	}
	return strings.TrimSpace(exc)
}

func statusFallback(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Bad request. Please check your input and try again."
	case http.StatusUnauthorized:
		return "Unauthorized. Please log in again."
	case http.StatusForbidden:
		return "Forbidden. You don't have permission to access this resource."
	case http.StatusNotFound:
		return "Resource not found."
	case http.StatusInternalServerError:
		return "Internal server error. Please try again later."
	}
	return fmt.Sprintf("Request failed with status %d. Please try again.", status)
}

// UserMessage extracts the best human-readable text from any error the client
// returns.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message()
	}
	return err.Error()
}
