package pipeline

import (
	"context"
	"errors"
	"net/http"
)

type Stage string

const (
	StageSTT       Stage = "stt"
	StageTranslate Stage = "translate"
	StageTTS       Stage = "tts"
)

type Kind string

const (
	KindClientInput     Kind = "client_input"
	KindPayloadTooLarge Kind = "payload_too_large"
	KindNoSpeech        Kind = "no_speech"
	KindUpstream        Kind = "upstream"
	KindUnavailable     Kind = "unavailable"
)

// StageError records which stage of a run failed and how. Its message is
// safe to return to callers.
type StageError struct {
	Stage  Stage
	Kind   Kind
	Detail string
	Err    error
}

func (e *StageError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	switch e.Kind {
	case KindNoSpeech:
		return "No speech detected"
	case KindUnavailable:
		return string(e.Stage) + " provider unavailable"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Stage) + " failed"
}

func (e *StageError) Unwrap() error { return e.Err }

// Status maps the failure kind to an HTTP status code.
func (e *StageError) Status() int {
	switch e.Kind {
	case KindClientInput, KindNoSpeech:
		return http.StatusBadRequest
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func upstream(stage Stage, err error) *StageError {
	se := &StageError{Stage: stage, Kind: KindUpstream, Err: err}
	if errors.Is(err, context.DeadlineExceeded) {
		se.Detail = "timeout"
	}
	return se
}
