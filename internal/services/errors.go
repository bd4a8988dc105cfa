package services

import (
	"errors"
	"strings"
)

// Kind tags an error with the failure class the workflow folds into job state.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindCorruptedInput   Kind = "corrupted_input"
	KindNoValidInput     Kind = "no_valid_input"
	KindTransfer         Kind = "transfer"
	KindAutomation       Kind = "automation"
	KindVerification     Kind = "verification"
	KindCallbackDelivery Kind = "callback_delivery"
	KindMalformed        Kind = "malformed"
	KindInternal         Kind = "internal"
)

// Markers usable as errors.Is targets. They match any *Error of the same kind.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrCorruptedInput   = &Error{Kind: KindCorruptedInput}
	ErrNoValidInput     = &Error{Kind: KindNoValidInput}
	ErrTransfer         = &Error{Kind: KindTransfer}
	ErrAutomation       = &Error{Kind: KindAutomation}
	ErrVerification     = &Error{Kind: KindVerification}
	ErrCallbackDelivery = &Error{Kind: KindCallbackDelivery}
	ErrMalformed        = &Error{Kind: KindMalformed}
	ErrInternal         = &Error{Kind: KindInternal}
)

// Error is a kind-tagged failure carrying stage and operation context.
type Error struct {
	Kind    Kind
	Stage   string
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Stage, e.Op, e.Message)
	if e.Err != nil {
		return string(e.Kind) + ": " + detail + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + detail
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the bare marker for this error's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Kind != e.Kind {
		return false
	}
	return t.Stage == "" && t.Op == "" && t.Message == "" && t.Err == nil
}

// Wrap builds a kind-tagged error that includes stage context. A blank kind is
// treated as internal.
func Wrap(kind Kind, stage, operation, message string, err error) error {
	if kind == "" {
		kind = KindInternal
	}
	return &Error{
		Kind:    kind,
		Stage:   strings.TrimSpace(stage),
		Op:      strings.TrimSpace(operation),
		Message: strings.TrimSpace(message),
		Err:     err,
	}
}

// KindOf returns the kind of the first *Error in err's chain. Untagged errors
// report KindInternal and nil reports an empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return KindInternal
}

// MessageOf returns the human message of the first *Error in err's chain, or
// err.Error() when untagged.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var tagged *Error
	if errors.As(err, &tagged) && tagged.Message != "" {
		return tagged.Message
	}
	return err.Error()
}

// Retryable reports whether a fresh submission could plausibly succeed.
func Retryable(kind Kind) bool {
	switch kind {
	case KindValidation, KindTransfer:
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
