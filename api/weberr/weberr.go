// Package weberr decorates errors on their way out of handlers. A handler
// returns one error; options attach the client-facing response body and any
// structured log fields, and the errors middleware unwraps them at the top
// of the chain. Anything left undecorated renders as an opaque 500.
package weberr

// Opt decorates an error with additional behavior.
type Opt func(error) error

// Wrap applies opts to err in order, innermost first.
func Wrap(err error, opts ...Opt) error {
	for _, opt := range opts {
		err = opt(err)
	}
	return err
}

// WithResponse attaches the body and status the client should see. Without
// it the middleware hides the error behind a generic internal failure.
func WithResponse(body interface{}, status int) Opt {
	return func(err error) error {
		return &responseError{error: err, body: body, status: status}
	}
}

// WithFields attaches structured fields for the error log line.
func WithFields(fields map[string]interface{}) Opt {
	return func(err error) error {
		return &fieldsError{error: err, fields: fields}
	}
}
