package failure

// Severity drives engine control flow: fatal errors abort the crawl,
// recoverable ones are recorded and the crawl continues.
type Severity int

const (
	SeverityFatal Severity = iota
	SeverityRecoverable
)

// ClassifiedError is the error contract every pipeline stage returns.
// Stages classify failures; they never decide retry, continuation, or abort.
type ClassifiedError interface {
	error
	Severity() Severity
}
