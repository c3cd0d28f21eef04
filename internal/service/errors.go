package service

// ValidationError marks failures caused by the caller's input rather than the
// backend. Handlers translate it into a 400 response with the reason.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalid(reason string) error {
	return &ValidationError{Reason: reason}
}
