package types

import (
	"errors"
	"fmt"
)

// Kind classifies an error for clients and operators. Kinds are stable wire
// values; the wrapped message carries the human-readable detail.
type Kind string

const (
	KindConfigInvalid    Kind = "config_invalid"
	KindConfigMissingEnv Kind = "config_missing_env"
	KindASRUnavailable   Kind = "asr_unavailable"
	KindLLMUnavailable   Kind = "llm_unavailable"
	KindTTSUnavailable   Kind = "tts_unavailable"
	KindDecodeFailed     Kind = "decode_failed"
	KindTurnTimeout      Kind = "turn_timeout"
	KindInterrupted      Kind = "interrupted"
	KindHandlerFailed    Kind = "handler_failed"
)

// Error is an error carrying a [Kind]. Use [E] or [Wrap] to construct one
// and [KindOf] to recover the kind from a wrapped chain.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// E returns a new kinded error with a formatted message.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a kinded error wrapping err. The message defaults to the
// kind when msg is empty.
func Wrap(kind Kind, msg string, err error) *Error {
	if msg == "" {
		msg = string(kind)
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap supports errors.Is / errors.As over the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the [Kind] of the first *Error in err's chain, or "" when
// the chain carries no kinded error.
func KindOf(err error) Kind {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return ""
}

// IsKind reports whether err's chain contains a kinded error of kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}
