package weberr

import (
	"errors"
	"net/http"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidationResponse carries one message per failing input field.
type ValidationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

type RequestError struct {
	Err error
}

func (r *RequestError) Error() string { return r.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

func NewError(err error, msg string, status int, opts ...Opt) error {
	e := &RequestError{Err: err}
	opts = append(opts, WithResponse(
		&ErrorResponse{msg},
		status,
	))

	return Wrap(e, opts...)
}

func NotFound(err error, opts ...Opt) error {
	return NewError(
		err,
		"the resource could not be found",
		http.StatusNotFound,
		opts...,
	)
}

func NotAuthorized(err error, opts ...Opt) error {
	return NewError(
		err,
		"not authorized to access resource",
		http.StatusUnauthorized,
		opts...,
	)
}

func InternalError(err error, opts ...Opt) error {
	return NewError(
		err,
		"the server encountered a problem and could not process your request",
		http.StatusInternalServerError,
		opts...,
	)
}

func BadRequest(err error, opts ...Opt) error {
	return NewError(
		err,
		"bad request",
		http.StatusBadRequest,
		opts...,
	)
}

// Retryable hides the underlying dependency failure from the caller while
// signaling that the same request may succeed shortly.
func Retryable(err error, opts ...Opt) error {
	return NewError(
		err,
		"the service is temporarily unavailable, please retry",
		http.StatusServiceUnavailable,
		opts...,
	)
}

func InvalidFields(msg string, fields map[string]string, opts ...Opt) error {
	e := &RequestError{Err: errors.New(msg)}
	opts = append(opts, WithResponse(
		&ValidationResponse{Error: msg, Fields: fields},
		http.StatusUnprocessableEntity,
	))
	return Wrap(e, opts...)
}
