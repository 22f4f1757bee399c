package analysis

import "fmt"

// The three failure classes of an analysis call. Exactly one of these comes
// back from Analyze when it fails; callers switch on the concrete type with
// errors.As instead of string matching.

// RemoteError means the service answered and rejected the request, or answered
// with a body we cannot use. Message carries the service's own description
// when it sent one.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("analysis service rejected the request: %s", e.Message)
}

// UnreachableError means the request went out but no usable response came
// back: connection refused, DNS failure, or the deadline elapsed.
type UnreachableError struct {
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("no response from analysis service: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// RequestError means the call could not even be attempted.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("could not build analysis request: %v", e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }
