package orchestrator

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest marks a request rejected before any work was done.
var ErrInvalidRequest = errors.New("invalid generation request")

// Generation stages that can fail.
const (
	StagePolicy   = "policy"
	StageProvider = "provider"
	StageLedger   = "ledger"
)

// StageError reports which step of a generation failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("generate: %s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }
