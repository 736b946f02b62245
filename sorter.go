package linesort

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	sorterrors "github.com/tamirms/linesort/errors"
	"github.com/tamirms/linesort/internal/logging"
)

// contextCheckInterval is how often, in records, long loops check for
// context cancellation.
const contextCheckInterval = 10000

// State is a step of the sort pipeline.
type State int32

const (
	StateIdle State = iota
	StateSplitting
	StateSortingChunks
	StateMerging
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSplitting:
		return "splitting"
	case StateSortingChunks:
		return "sorting_chunks"
	case StateMerging:
		return "merging"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Result describes a completed sort.
type Result struct {
	RunID    string // matches the "run" attribute of the run's log records
	Path     string // the sorted file
	Records  uint64
	Bytes    int64
	Chunks   int
	Checksum uint64 // xxHash64 of the sorted file
	Duration time.Duration
}

// Sorter drives one external sort of a line-oriented text file:
//
//	Idle → Splitting → SortingChunks → Merging → Completed
//
// with Failed reachable from every working state. A Sorter runs once; a
// failed sort is retried with a new Sorter.
//
// Usage:
//
//	sorter, err := linesort.NewSorter(ctx, "data.txt", linesort.WithWorkers(4))
//	if err != nil { return err }
//	res, err := sorter.Sort()
//	if err != nil { return err }
//	fmt.Println(res.Path) // data_Sorted.txt
//
// State may be called from any goroutine while Sort runs.
type Sorter struct {
	ctx        context.Context
	cfg        *sortConfig
	source     string
	resultPath string
	runID      string
	logger     *slog.Logger

	state   atomic.Int32
	started atomic.Bool
	workDir string
}

// NewSorter validates the options and returns an idle Sorter for source.
// The source itself is checked when Sort runs, so a missing file is
// reported as a failed run.
//
// ctx is checked between chunks and periodically within stages; canceling
// it fails the run.
func NewSorter(ctx context.Context, source string, opts ...SortOption) (*Sorter, error) {
	cfg := defaultSortConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.chunkSize <= 0 {
		return nil, sorterrors.ErrInvalidChunkSize
	}
	if cfg.memoryBudget <= 0 {
		return nil, sorterrors.ErrInvalidMemoryBudget
	}
	if cfg.recordSize <= 0 || cfg.recordOverhead <= 0 {
		return nil, sorterrors.ErrInvalidRecordEstimate
	}
	if cfg.workers < 0 {
		return nil, sorterrors.ErrInvalidWorkers
	}
	if cfg.workers == 0 {
		cfg.workers = 1
	}
	if cfg.ioBufferSize <= 0 {
		cfg.ioBufferSize = defaultIOBufferSize
	}

	resultPath := cfg.resultPath
	if resultPath == "" && source != "" {
		resultPath = ResultPath(source)
	}

	runID := uuid.Must(uuid.NewV7()).String()
	logger := logging.Default(cfg.logger).With("component", "linesort", "run", runID, "source", source)

	return &Sorter{
		ctx:        ctx,
		cfg:        cfg,
		source:     source,
		resultPath: resultPath,
		runID:      runID,
		logger:     logger,
	}, nil
}

// SortFile sorts source with a new Sorter and returns the result.
func SortFile(ctx context.Context, source string, opts ...SortOption) (*Result, error) {
	s, err := NewSorter(ctx, source, opts...)
	if err != nil {
		return nil, err
	}
	return s.Sort()
}

// State returns the current pipeline state.
func (s *Sorter) State() State {
	return State(s.state.Load())
}

// RunID returns the identifier attached to every log record of this run.
func (s *Sorter) RunID() string {
	return s.runID
}

// ResultPath returns where the sorted file is written.
func (s *Sorter) ResultPath() string {
	return s.resultPath
}

// Sort runs the pipeline to completion. On failure the error is a
// *errors.StageError naming the stage, the failure kind and the file, no
// result file exists and chunk files are removed on a best-effort basis.
func (s *Sorter) Sort() (*Result, error) {
	if !s.started.CompareAndSwap(false, true) {
		return nil, sorterrors.ErrSorterUsed
	}
	start := time.Now()
	s.logger.Info("sort started", "result", s.resultPath)

	if err := s.validateSource(); err != nil {
		return nil, s.fail(err)
	}

	s.setState(StateSplitting)
	sp, err := s.split()
	if err != nil {
		return nil, s.fail(err)
	}

	s.setState(StateSortingChunks)
	stageStart := time.Now()
	if err := s.sortChunks(sp.chunks); err != nil {
		return nil, s.fail(err)
	}
	s.logger.Info("chunks sorted",
		"chunks", len(sp.chunks),
		"workers", s.cfg.workers,
		"duration", time.Since(stageStart))

	s.setState(StateMerging)
	stageStart = time.Now()
	mr, err := s.merge(sp.chunks, sp.digest, sp.bytes)
	if err != nil {
		return nil, s.fail(err)
	}
	s.logger.Info("chunks merged",
		"records", mr.records,
		"bytes", mr.bytes,
		"duration", time.Since(stageStart))

	// The directory is empty by now; every chunk was deleted by its stage.
	if err := os.Remove(s.workDir); err != nil {
		s.logger.Warn("remove work directory", "dir", s.workDir, "error", err)
	}

	s.setState(StateCompleted)
	res := &Result{
		RunID:    s.runID,
		Path:     s.resultPath,
		Records:  mr.records,
		Bytes:    mr.bytes,
		Chunks:   len(sp.chunks),
		Checksum: mr.checksum,
		Duration: time.Since(start),
	}
	s.logger.Info("sort completed",
		"result", res.Path,
		"records", res.Records,
		"chunks", res.Chunks,
		"duration", res.Duration)
	return res, nil
}

// validateSource reports input errors before any stage starts.
func (s *Sorter) validateSource() error {
	if s.source == "" {
		return sorterrors.NewStageError(sorterrors.StageValidate, sorterrors.KindInput, "", sorterrors.ErrEmptyPath)
	}
	info, err := os.Stat(s.source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %w", sorterrors.ErrSourceNotFound, err)
		}
		return sorterrors.NewStageError(sorterrors.StageValidate, sorterrors.KindInput, s.source, err)
	}
	if info.IsDir() {
		return sorterrors.NewStageError(sorterrors.StageValidate, sorterrors.KindInput, s.source, sorterrors.ErrSourceIsDir)
	}
	return nil
}

// split creates the work directory and cuts the source into raw chunks.
func (s *Sorter) split() (*splitter, error) {
	stageStart := time.Now()

	tempDir := s.cfg.tempDir
	if tempDir == "" {
		tempDir = filepath.Dir(s.source)
	}
	dir, err := os.MkdirTemp(tempDir, workDirPattern)
	if err != nil {
		return nil, sorterrors.NewStageError(sorterrors.StageSplit, sorterrors.KindResource, tempDir,
			fmt.Errorf("create work directory: %w", err))
	}
	s.workDir = dir

	src, err := os.Open(s.source)
	if err != nil {
		return nil, sorterrors.NewStageError(sorterrors.StageSplit, sorterrors.KindResource, s.source,
			fmt.Errorf("open source: %w", err))
	}
	defer src.Close()
	fadviseSequential(int(src.Fd()))

	sp := newSplitter(dir, s.cfg.chunkSize, s.cfg.ioBufferSize)
	if err := sp.run(s.ctx, s.source, src); err != nil {
		return nil, err
	}
	s.logger.Info("source split",
		"chunks", len(sp.chunks),
		"records", sp.records,
		"bytes", sp.bytes,
		"work_dir", dir,
		"duration", time.Since(stageStart))
	return sp, nil
}

func (s *Sorter) setState(state State) {
	prev := State(s.state.Swap(int32(state)))
	s.logger.Debug("state changed", "from", prev, "to", state)
}

// fail moves the Sorter to Failed, removes intermediate files and logs
// the diagnostic.
func (s *Sorter) fail(err error) error {
	failedIn := s.State()
	s.setState(StateFailed)

	attrs := []any{"state", failedIn, "error", err}
	var se *sorterrors.StageError
	if errors.As(err, &se) {
		attrs = append(attrs, "stage", se.Stage, "kind", se.Kind, "path", se.Path)
	}
	s.logger.Error("sort failed", attrs...)

	if s.workDir != "" {
		if rmErr := os.RemoveAll(s.workDir); rmErr != nil {
			s.logger.Warn("remove work directory", "dir", s.workDir, "error", rmErr)
		}
	}
	return err
}
