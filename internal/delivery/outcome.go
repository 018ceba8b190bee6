package delivery

import "fmt"

// Kind is the fate of a delivery attempt. Retriable outcomes preserve the
// batch file for a later attempt; terminal outcomes drop it after logging.
type Kind int

const (
	// KindSuccess means the batch was acknowledged; remove the file.
	KindSuccess Kind = iota

	// KindRetriable means the attempt failed in a way worth repeating.
	KindRetriable

	// KindTerminal means the payload will never be accepted; drop it.
	KindTerminal
)

// Reason refines a failure classification.
type Reason int

const (
	// ReasonNone accompanies success.
	ReasonNone Reason = iota

	// ReasonUnknown is a transport-level failure with no status code.
	ReasonUnknown

	// ReasonUnexpectedCode covers redirects and a 400 rejection.
	ReasonUnexpectedCode

	// ReasonServerLimited is a 429 rate limit.
	ReasonServerLimited

	// ReasonServerRejected is any other non-retriable status.
	ReasonServerRejected
)

// String returns the reason's log-friendly name.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonUnknown:
		return "unknown"
	case ReasonUnexpectedCode:
		return "unexpected_code"
	case ReasonServerLimited:
		return "server_limited"
	case ReasonServerRejected:
		return "server_rejected"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Outcome is the classification of one delivery attempt. It is immutable
// once produced and consumed exactly once by the caller of the upload.
type Outcome struct {
	Kind   Kind
	Reason Reason

	// Status is the HTTP status code, 0 when the transport failed.
	Status int

	// Err is the raw transport error, nil when a status was received.
	Err error
}

// Success reports whether the batch was acknowledged.
func (o Outcome) Success() bool { return o.Kind == KindSuccess }

// Retriable reports whether the batch file should be retained for retry.
func (o Outcome) Retriable() bool { return o.Kind == KindRetriable }

// Classify maps an HTTP or transport result to an outcome. Rules, in
// priority order: transport error is retriable; 1-299 succeeds; 300-399 is
// retriable; 429 is retriable rate limiting; 400 is terminal (the payload
// is presumed malformed, resending it forever helps nobody); anything else
// is a terminal rejection.
func Classify(status int, err error) Outcome {
	switch {
	case err != nil:
		return Outcome{Kind: KindRetriable, Reason: ReasonUnknown, Err: err}
	case status >= 1 && status < 300:
		return Outcome{Kind: KindSuccess, Reason: ReasonNone, Status: status}
	case status >= 300 && status < 400:
		return Outcome{Kind: KindRetriable, Reason: ReasonUnexpectedCode, Status: status}
	case status == 429:
		return Outcome{Kind: KindRetriable, Reason: ReasonServerLimited, Status: status}
	case status == 400:
		return Outcome{Kind: KindTerminal, Reason: ReasonUnexpectedCode, Status: status}
	default:
		return Outcome{Kind: KindTerminal, Reason: ReasonServerRejected, Status: status}
	}
}
