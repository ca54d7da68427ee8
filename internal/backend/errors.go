package backend

import "github.com/rohmanhakim/docsmith/pkg/failure"

type FetchError struct {
	Message   string
	Retryable bool
	Cause     error
}

func (e *FetchError) Error() string {
	return e.Message
}

func (e *FetchError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *FetchError) IsRetryable() bool {
	return e.Retryable
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}
