package content

import (
	"errors"

	"github.com/rohmanhakim/docsmith/internal/metadata"
	"github.com/rohmanhakim/docsmith/pkg/failure"
)

var (
	ErrCauseContentTooLarge = errors.New("content exceeds maximum length")
	ErrCauseContentTooSmall = errors.New("content below minimum length")
	ErrCauseParseFailure    = errors.New("content could not be parsed")
	ErrCauseNoHandler       = errors.New("no handler for format")
)

type ContentError struct {
	Message   string
	Retryable bool
	Cause     error
}

func (e *ContentError) Error() string {
	return e.Message
}

func (e *ContentError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *ContentError) Unwrap() error {
	return e.Cause
}

func mapContentErrorToMetadataCause(err ContentError) metadata.ErrorCause {
	switch {
	case errors.Is(err.Cause, ErrCauseContentTooLarge),
		errors.Is(err.Cause, ErrCauseContentTooSmall),
		errors.Is(err.Cause, ErrCauseParseFailure),
		errors.Is(err.Cause, ErrCauseNoHandler):
		return metadata.CauseContentInvalid
	}
	return metadata.CauseUnknown
}
