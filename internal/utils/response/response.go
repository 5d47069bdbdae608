// Package response provides helpers for writing consistent JSON HTTP responses.
//
// Success responses may take any JSON shape (a student, a list, a message).
// Error responses always use the Response envelope:
//
//	{ "status": "error", "code": "NOT_FOUND", "error": "Student not found" }
//
// Kind is the error taxonomy shared by every handler; StatusCode maps each
// kind to its HTTP status.
package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Response is the standard error envelope.
type Response struct {
	Status  string   `json:"status"`
	Code    Kind     `json:"code,omitempty"`
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
	Stack   string   `json:"stack,omitempty"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Kind classifies an error returned to the client.
type Kind string

const (
	InvalidInput       Kind = "INVALID_INPUT"
	UnprocessableInput Kind = "UNPROCESSABLE_INPUT"
	NotFound           Kind = "NOT_FOUND"
	BadRequest         Kind = "BAD_REQUEST"
	ServiceUnavailable Kind = "SERVICE_UNAVAILABLE"
	InternalError      Kind = "INTERNAL_ERROR"
	NotFoundRoute      Kind = "ROUTE_NOT_FOUND"
	Timeout            Kind = "TIMEOUT"
)

// StatusCode returns the HTTP status for the kind. Unknown kinds map to 500.
func (k Kind) StatusCode() int {
	switch k {
	case InvalidInput, BadRequest:
		return http.StatusBadRequest
	case UnprocessableInput:
		return http.StatusUnprocessableEntity
	case NotFound, NotFoundRoute:
		return http.StatusNotFound
	case ServiceUnavailable:
		return http.StatusServiceUnavailable
	case Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes data as JSON with the given status code.
// Header() must be set before WriteHeader(), and WriteHeader() before the body.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes the error envelope for kind with the kind's status code.
func WriteError(w http.ResponseWriter, kind Kind, message string) error {
	return WriteJSON(w, kind.StatusCode(), Error(kind, message))
}

// Error builds the envelope for kind with a client-facing message.
func Error(kind Kind, message string) Response {
	return Response{
		Status: StatusError,
		Code:   kind,
		Error:  message,
	}
}

// GeneralError wraps any Go error into the envelope, using its message.
//
//	response.WriteJSON(w, http.StatusBadRequest,
//	    response.GeneralError(response.BadRequest, err))
func GeneralError(kind Kind, err error) Response {
	return Error(kind, err.Error())
}

// ValidationError converts validator field errors into one UnprocessableInput
// envelope. Each failing field becomes one entry in Details:
//
//	{ "status": "error", "code": "UNPROCESSABLE_INPUT",
//	  "error": "Please fill all the fields",
//	  "details": ["field phone is required"] }
func ValidationError(errs validator.ValidationErrors) Response {
	details := make([]string, 0, len(errs))

	for _, e := range errs {
		field := strings.ToLower(e.Field())
		switch e.ActualTag() {
		case "required":
			details = append(details, fmt.Sprintf("field %s is required", field))
		default:
			details = append(details, fmt.Sprintf("field %s is invalid", field))
		}
	}

	resp := Error(UnprocessableInput, "Please fill all the fields")
	resp.Details = details
	return resp
}
