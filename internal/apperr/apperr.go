// Package apperr defines the error taxonomy shared across the service. Every
// failure that crosses the orchestrator boundary carries a Kind so the HTTP
// layer can map it to a status without string matching.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindNotConfigured: the AI provider credential is missing or a placeholder.
	KindNotConfigured
	// KindServiceUnavailable: transport or provider-side failure. Never retried.
	KindServiceUnavailable
	// KindMalformedAIOutput: the model returned something no parser could recover.
	KindMalformedAIOutput
	KindAccessDenied
	KindNotFound
	// KindNoReadableContent: file extraction produced nothing usable.
	KindNoReadableContent
	// KindNoValidContent: every note was filtered out or empty.
	KindNoValidContent
	KindInvalidInput
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the Kind carried by err, or KindUnknown if err is not an
// *Error anywhere in its chain.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool { return KindOf(err) == kind }
