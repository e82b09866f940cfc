package qagen

import (
	"errors"
	"fmt"
)

// Attempt stages.
const (
	StageRetrieve = "retrieve"
	StageGenerate = "generate"
	StageParse    = "parse"
)

// ErrNoQuestion means a reply parsed to an item without question text.
var ErrNoQuestion = errors.New("no question in reply")

// AttemptError is a failure confined to one generation attempt. The engine
// logs it and moves on to the next attempt.
type AttemptError struct {
	Attempt int
	Stage   string
	Err     error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("attempt %d: %s: %v", e.Attempt, e.Stage, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }
