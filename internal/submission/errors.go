package submission

import "fmt"

// TransportError is a network-level failure of one transport.
type TransportError struct {
	Transport string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Transport, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ApplicationError is a rejection reported by the intake endpoint itself,
// such as a bad API key or an invalid payload.
type ApplicationError struct {
	StatusCode int
	Message    string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("intake rejected order (status %d): %s", e.StatusCode, e.Message)
}
