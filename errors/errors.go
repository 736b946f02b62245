// Package errors defines all exported error sentinels for the linesort library.
//
// This is the single source of truth for error values. Both the top-level
// linesort package and its internal packages import from here, ensuring
// errors.Is checks work across package boundaries.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Input errors
var (
	ErrEmptyPath      = errors.New("linesort: source path is empty")
	ErrSourceNotFound = errors.New("linesort: source file not found")
	ErrSourceIsDir    = errors.New("linesort: source path is a directory")
)

// Configuration errors
var (
	ErrInvalidChunkSize      = errors.New("linesort: chunk size must be positive")
	ErrInvalidMemoryBudget   = errors.New("linesort: merge memory budget must be positive")
	ErrInvalidRecordEstimate = errors.New("linesort: record size and overhead factor must be positive")
	ErrInvalidWorkers        = errors.New("linesort: worker count must not be negative")
)

// Run errors
var (
	ErrSorterUsed     = errors.New("linesort: sorter has already run")
	ErrRecordMismatch = errors.New("linesort: merged records do not match source records")
	ErrUnsortedOutput = errors.New("linesort: output is not sorted")
)

// Stage names the pipeline step an error was raised in.
type Stage string

const (
	StageValidate Stage = "validate"
	StageSplit    Stage = "split"
	StageSort     Stage = "sort"
	StageMerge    Stage = "merge"
)

// Kind classifies a failure for diagnosis. Recovery is identical for every
// kind: the run is failed and must be restarted.
type Kind int

const (
	// KindInput is a missing or unusable source path, reported before any stage.
	KindInput Kind = iota
	// KindIO is a read or write failure on an open file.
	KindIO
	// KindResource is a failure to open or create a file handle, or to map
	// or reserve space for one.
	KindResource
	// KindCanceled means the run's context was canceled.
	KindCanceled
	// KindIntegrity means verification found lost, duplicated or
	// misordered records in the output.
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindIO:
		return "io"
	case KindResource:
		return "resource"
	case KindCanceled:
		return "canceled"
	case KindIntegrity:
		return "integrity"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// StageError is returned for every failed run. Path is the file being
// processed when the failure happened and may be empty.
type StageError struct {
	Stage Stage
	Kind  Kind
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("linesort: %s failed (%s): %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("linesort: %s failed (%s) on %s: %v", e.Stage, e.Kind, e.Path, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err for stage. A canceled context overrides kind so
// callers can tell interruption from real I/O trouble.
func NewStageError(stage Stage, kind Kind, path string, err error) *StageError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = KindCanceled
	}
	return &StageError{Stage: stage, Kind: kind, Path: path, Err: err}
}
