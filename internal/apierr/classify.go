// Package apierr classifies failed exchanges with the conversion service
// into a closed set of error kinds.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is a member of the closed error taxonomy.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindAuthentication  Kind = "authentication"
	KindAuthorization   Kind = "authorization"
	KindNotFound        Kind = "not_found"
	KindTimeout         Kind = "timeout"
	KindPayloadTooLarge Kind = "payload_too_large"
	KindServer          Kind = "server"
	KindNetwork         Kind = "network"
	KindRequestSetup    Kind = "request_setup"
	KindUnknown         Kind = "unknown"
)

var defaultMessages = map[Kind]string{
	KindValidation:      "Invalid request",
	KindAuthentication:  "Authentication required",
	KindAuthorization:   "Access denied",
	KindNotFound:        "Resource not found",
	KindTimeout:         "Request timed out",
	KindPayloadTooLarge: "File size exceeds limit",
	KindServer:          "Server error occurred",
	KindNetwork:         "Network error. Please check your connection.",
	KindRequestSetup:    "Failed to make request",
	KindUnknown:         "An error occurred",
}

// Error is a classified failure. Status is 0 when no response was received.
// Errors carries the service's per-field messages on validation failures.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Errors  []string
	cause   error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// As extracts a classified error from err.
func As(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindUnknown when err was never classified.
func KindOf(err error) Kind {
	if ce, ok := As(err); ok {
		return ce.Kind
	}
	return KindUnknown
}

type outcome int

const (
	outcomeResponded outcome = iota
	outcomeNoResponse
	outcomeNotSent
)

// Exchange describes how a request to the service ended.
type Exchange struct {
	outcome outcome
	status  int
	body    []byte
	err     error
}

// Responded is an exchange where the service answered with status and body.
func Responded(status int, body []byte) Exchange {
	return Exchange{outcome: outcomeResponded, status: status, body: body}
}

// NoResponse is an exchange where the request went out but nothing came back.
func NoResponse(err error) Exchange {
	return Exchange{outcome: outcomeNoResponse, err: err}
}

// NotSent is an exchange that failed while the request was being built.
func NotSent(err error) Exchange {
	return Exchange{outcome: outcomeNotSent, err: err}
}

// Classify maps ex to exactly one Kind. It never fails.
func Classify(ex Exchange) *Error {
	switch ex.outcome {
	case outcomeNoResponse:
		return &Error{Kind: KindNetwork, Message: defaultMessages[KindNetwork], cause: ex.err}
	case outcomeNotSent:
		msg := defaultMessages[KindRequestSetup]
		if ex.err != nil && ex.err.Error() != "" {
			msg = ex.err.Error()
		}
		return &Error{Kind: KindRequestSetup, Message: msg, cause: ex.err}
	}

	kind := kindForStatus(ex.status)
	msg := detail(ex.body)
	if msg == "" {
		msg = defaultMessages[kind]
	}
	e := &Error{Kind: kind, Message: msg, Status: ex.status}
	if kind == KindValidation {
		e.Errors = fieldErrors(ex.body)
	}
	return e
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest: // 400
		return KindValidation
	case http.StatusUnauthorized: // 401
		return KindAuthentication
	case http.StatusForbidden: // 403
		return KindAuthorization
	case http.StatusNotFound: // 404
		return KindNotFound
	case http.StatusRequestTimeout: // 408
		return KindTimeout
	case http.StatusRequestEntityTooLarge: // 413
		return KindPayloadTooLarge
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return KindServer
	default:
		return KindUnknown
	}
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Errors json.RawMessage `json:"errors"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// detail pulls a human message out of an error payload. FastAPI puts it in
// "detail" (a string, or a list of {msg} for request validation); the
// service's error middleware wraps it as {"error":{"message":...}}.
func detail(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}

	if len(eb.Detail) > 0 {
		var s string
		if err := json.Unmarshal(eb.Detail, &s); err == nil {
			return strings.TrimSpace(s)
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(eb.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			return strings.Join(msgs, "; ")
		}
	}

	if eb.Error != nil {
		return strings.TrimSpace(eb.Error.Message)
	}
	return ""
}

// fieldErrors reads the optional "errors" list of a validation payload,
// either plain strings or objects with msg or message. Never nil.
func fieldErrors(body []byte) []string {
	out := []string{}
	var eb errorBody
	if len(body) == 0 || json.Unmarshal(body, &eb) != nil || len(eb.Errors) == 0 {
		return out
	}

	var plain []string
	if err := json.Unmarshal(eb.Errors, &plain); err == nil {
		for _, p := range plain {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}

	var items []struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(eb.Errors, &items); err == nil {
		for _, it := range items {
			m := it.Msg
			if m == "" {
				m = it.Message
			}
			if m = strings.TrimSpace(m); m != "" {
				out = append(out, m)
			}
		}
	}
	return out
}
