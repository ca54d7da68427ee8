package selector

import "github.com/rohmanhakim/docsmith/pkg/failure"

type SelectorError struct {
	Message string
	Cause   error
}

func (e *SelectorError) Error() string {
	return e.Message
}

func (e *SelectorError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

func (e *SelectorError) Unwrap() error {
	return e.Cause
}
