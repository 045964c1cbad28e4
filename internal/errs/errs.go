// Package errs classifies every error the sync core can produce so the
// Dispatcher's retry decision is a switch over an error kind rather than
// a caught exception or a string match.
package errs

import "errors"

// Kind discriminates the error families described in the error handling
// design: each maps to exactly one Dispatcher/Webhook Applier outcome.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfigDisabled
	KindNotSyncable
	KindExtractionFailure
	KindTransformationFailure
	KindTransportFailure
	KindSemanticRejection
	KindRetriesExhausted
	KindWebhookInvalid
	KindWebhookGuarded
	KindWebhookApplyFailure
)

func (k Kind) String() string {
	switch k {
	case KindConfigDisabled:
		return "ConfigDisabled"
	case KindNotSyncable:
		return "NotSyncable"
	case KindExtractionFailure:
		return "ExtractionFailure"
	case KindTransformationFailure:
		return "TransformationFailure"
	case KindTransportFailure:
		return "TransportFailure"
	case KindSemanticRejection:
		return "SemanticRejection"
	case KindRetriesExhausted:
		return "RetriesExhausted"
	case KindWebhookInvalid:
		return "WebhookInvalid"
	case KindWebhookGuarded:
		return "WebhookGuarded"
	case KindWebhookApplyFailure:
		return "WebhookApplyFailure"
	default:
		return "Unknown"
	}
}

// Error is a typed, wrapped error carrying a Kind so callers can recover
// classification with errors.As without parsing messages.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a classified error around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// As is a convenience wrapper around errors.As for *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else KindUnknown.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// Retryable reports whether the Dispatcher should schedule a retry for
// this error kind rather than treat the job as a terminal failure or a
// skip. Per the current (undecided, see DESIGN.md) policy both transient
// transport failures and semantic ERP rejections are retried the same
// way; the kinds are still distinguished so a future installation policy
// can diverge without touching call sites.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindExtractionFailure, KindTransportFailure, KindSemanticRejection:
		return true
	default:
		return false
	}
}

// Skip reports whether this error kind should resolve the job as a
// completed skip (ItemSyncStatus = SKIPPED) rather than as a failure.
func Skip(err error) bool {
	return KindOf(err) == KindNotSyncable
}
