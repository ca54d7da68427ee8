package organizer

import "github.com/rohmanhakim/docsmith/pkg/failure"

type OrganizerError struct {
	Message string
	Cause   error
}

func (e *OrganizerError) Error() string {
	return e.Message
}

func (e *OrganizerError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

func (e *OrganizerError) Unwrap() error {
	return e.Cause
}
