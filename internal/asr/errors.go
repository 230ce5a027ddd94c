package asr

import (
	"errors"
	"fmt"
)

// Kind classifies request failures so the HTTP layer can pick a status code.
type Kind int

const (
	KindUnknown Kind = iota
	KindMissingFile
	KindInvalidRequest
	KindTranscriptionFailure
)

func (k Kind) String() string {
	switch k {
	case KindMissingFile:
		return "missing_file"
	case KindInvalidRequest:
		return "invalid_request"
	case KindTranscriptionFailure:
		return "transcription_failure"
	default:
		return "unknown"
	}
}

// FallbackMessage is reported when a failure carries no message of its own.
const FallbackMessage = "asr failed"

var ErrMissingFile = &Error{Kind: KindMissingFile, Msg: "file missing"}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return FallbackMessage
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so errors.Is(err, ErrMissingFile) works for any missing-file error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func InvalidRequest(msg string) error {
	return &Error{Kind: KindInvalidRequest, Msg: msg}
}

// TranscriptionFailure wraps an engine or model-construction error. A nil err
// yields a failure carrying only the fallback message.
func TranscriptionFailure(err error) error {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindTranscriptionFailure {
		return err
	}
	return &Error{Kind: KindTranscriptionFailure, Err: err}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// PublicMessage is the short message safe to hand to a client.
func PublicMessage(err error) string {
	if err == nil {
		return FallbackMessage
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return FallbackMessage
}
