package domain

import (
	"errors"
	"net/http"
)

// ErrorKind classifies failures reported to API clients.
type ErrorKind string

const (
	ErrKindBadRequest       ErrorKind = "bad_request"
	ErrKindUpstreamRejected ErrorKind = "upstream_rejected"
	ErrKindUpstreamEmpty    ErrorKind = "upstream_empty"
	ErrKindMissingVideoURL  ErrorKind = "missing_video_url"
	ErrKindBadGateway       ErrorKind = "bad_gateway"
	ErrKindInternal         ErrorKind = "internal_error"
)

// Domain errors.
var (
	// ErrBadRequest is returned when a required input is missing or malformed.
	ErrBadRequest = errors.New("bad request")

	// ErrUpstreamRejected is returned when the resolver reports a failure code or HTTP error.
	ErrUpstreamRejected = errors.New("upstream rejected request")

	// ErrUpstreamEmpty is returned when the resolver succeeded but sent no payload.
	ErrUpstreamEmpty = errors.New("upstream returned no data")

	// ErrMissingVideoURL is returned when the resolver payload has no playable video URL.
	ErrMissingVideoURL = errors.New("missing video url")

	// ErrBadGateway is returned when the resolver cannot be reached.
	ErrBadGateway = errors.New("resolver unreachable")

	// ErrInternal is returned for any unexpected condition.
	ErrInternal = errors.New("internal error")
)

var kindSentinels = map[ErrorKind]error{
	ErrKindBadRequest:       ErrBadRequest,
	ErrKindUpstreamRejected: ErrUpstreamRejected,
	ErrKindUpstreamEmpty:    ErrUpstreamEmpty,
	ErrKindMissingVideoURL:  ErrMissingVideoURL,
	ErrKindBadGateway:       ErrBadGateway,
	ErrKindInternal:         ErrInternal,
}

var kindStatus = map[ErrorKind]int{
	ErrKindBadRequest:       http.StatusBadRequest,
	ErrKindUpstreamRejected: http.StatusBadRequest,
	ErrKindUpstreamEmpty:    http.StatusNotFound,
	ErrKindMissingVideoURL:  http.StatusBadRequest,
	ErrKindBadGateway:       http.StatusBadGateway,
	ErrKindInternal:         http.StatusInternalServerError,
}

// RequestError is a typed failure with a client-facing detail message.
type RequestError struct {
	Kind ErrorKind
	// Status is the HTTP status to report to the client. UpstreamRejected
	// errors caused by an HTTP error from the resolver carry its status.
	Status int
	Detail string
	Err    error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Detail + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Detail
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel error for e's kind.
func (e *RequestError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// NewRequestError creates a RequestError using the default status for kind.
func NewRequestError(kind ErrorKind, detail string, err error) *RequestError {
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &RequestError{
		Kind:   kind,
		Status: status,
		Detail: detail,
		Err:    err,
	}
}

// ErrorStatus returns the HTTP status and detail message for err.
// Errors that are not a *RequestError map to 500.
func ErrorStatus(err error) (int, string) {
	var re *RequestError
	if errors.As(err, &re) {
		status := re.Status
		if status == 0 {
			status = kindStatus[re.Kind]
		}
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, re.Detail
	}
	return http.StatusInternalServerError, err.Error()
}
