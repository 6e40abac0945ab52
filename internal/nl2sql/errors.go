package nl2sql

import (
	"errors"
	"fmt"
)

// ErrMalformedOutput is returned when the model's structured reply cannot be
// read as a QueryOutput.
var ErrMalformedOutput = errors.New("malformed model output")

const (
	StageWriteQuery     = "write_query"
	StageGenerateAnswer = "generate_answer"
)

// SynthesisError wraps any failure of a model-backed stage. The pipeline
// aborts on it.
type SynthesisError struct {
	Stage string
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

func synthesisError(stage string, err error) error {
	return &SynthesisError{Stage: stage, Err: err}
}
