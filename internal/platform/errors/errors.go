package errors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfig              Kind = "config"
	KindInput               Kind = "input"
	KindUpload              Kind = "upload"
	KindAnalysisTransport   Kind = "analysis_transport"
	KindAnalysisApplication Kind = "analysis_application"
	KindExport              Kind = "export"
	KindStorage             Kind = "storage"
	KindUnknown             Kind = "unknown"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Wrap returns nil for a nil err. An error that already carries a Kind is
// returned unchanged so the innermost classification wins.
func Wrap(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return err
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// IsKind checks whether any error in the chain matches the provided kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the kind of the first typed error in the chain.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindUnknown
}

// Retriable reports whether the whole analysis attempt may be re-run.
func Retriable(err error) bool {
	switch KindOf(err) {
	case KindUpload, KindAnalysisTransport, KindAnalysisApplication:
		return true
	}
	return false
}

// UserMessage returns the message meant for people, falling back to the
// full error text for untyped errors.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var target *Error
	if errors.As(err, &target) {
		if target.Kind == KindAnalysisApplication || target.Cause == nil {
			return target.Message
		}
		return fmt.Sprintf("%s: %v", target.Message, target.Cause)
	}
	return err.Error()
}
