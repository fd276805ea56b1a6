// Package pipeline runs inbound messages through an ordered sequence of
// processing stages: classification, extraction, address cleaning,
// geocoding, and persistence.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Stage names, also used as keys in the context's bookkeeping.
const (
	StageClassify      = "classification"
	StageExtract       = "extraction"
	StageClean         = "address_cleaning"
	StageGeocode       = "geocoding"
	StagePersistStore  = "persist_store"
	StagePersistExport = "persist_export"
)

// Stage execution order. Gaps are deliberate so stages can be inserted
// without renumbering.
const (
	seqClassify      = 10
	seqExtract       = 20
	seqClean         = 30
	seqGeocode       = 40
	seqPersistStore  = 50
	seqPersistExport = 60
)

// Stage is one step of message processing. Critical stages abort the run on
// failure; non-critical failures are recorded and processing continues.
type Stage interface {
	Name() string
	Sequence() int
	Critical() bool
	// ShouldRun decides from prior stage results whether this stage applies.
	ShouldRun(pc *Context) bool
	Run(ctx context.Context, pc *Context) error
}

// ExecutionError is returned when a critical stage fails. It carries the
// context so callers can inspect what completed before the abort.
type ExecutionError struct {
	Stage string
	Ctx   *Context
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("pipeline: critical stage %s failed: %v", e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Pipeline executes stages in sequence order.
type Pipeline struct {
	stages []Stage
}

// New builds a pipeline from the given stages. Stages are sorted by
// sequence; duplicate sequence numbers are a construction error since
// execution order would be ambiguous.
func New(stages ...Stage) (*Pipeline, error) {
	sorted := make([]Stage, len(stages))
	copy(sorted, stages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Sequence() < sorted[j].Sequence() })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Sequence() == sorted[i-1].Sequence() {
			return nil, eris.Errorf("pipeline: stages %s and %s share sequence %d",
				sorted[i-1].Name(), sorted[i].Name(), sorted[i].Sequence())
		}
	}

	return &Pipeline{stages: sorted}, nil
}

// Execute runs the message through all applicable stages. A critical stage
// failure returns an *ExecutionError and stops processing; non-critical
// failures are recorded on the context and execution continues. The context
// is returned in both cases.
func (p *Pipeline) Execute(ctx context.Context, pc *Context) (*Context, error) {
	log := zap.L().With(zap.String("message_id", pc.Message.ID))
	log.Info("pipeline: processing message", zap.String("subject", pc.Message.Subject))

	for _, stage := range p.stages {
		if !stage.ShouldRun(pc) {
			log.Debug("pipeline: stage skipped", zap.String("stage", stage.Name()))
			continue
		}

		start := time.Now()
		err := runStage(ctx, stage, pc)
		duration := time.Since(start).Milliseconds()

		if err != nil {
			pc.MarkFailed(stage.Name(), err)
			if stage.Critical() {
				log.Error("pipeline: critical stage failed",
					zap.String("stage", stage.Name()),
					zap.Int64("duration_ms", duration),
					zap.Error(err),
				)
				return pc, &ExecutionError{Stage: stage.Name(), Ctx: pc, Err: err}
			}
			log.Warn("pipeline: stage failed, continuing",
				zap.String("stage", stage.Name()),
				zap.Int64("duration_ms", duration),
				zap.Error(err),
			)
			continue
		}

		pc.MarkCompleted(stage.Name())
		log.Debug("pipeline: stage complete",
			zap.String("stage", stage.Name()),
			zap.Int64("duration_ms", duration),
		)
	}

	return pc, nil
}

// runStage invokes the stage, converting a panic into a stage failure so
// one malformed message cannot take down the whole run.
func runStage(ctx context.Context, stage Stage, pc *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("pipeline: stage %s panicked: %v", stage.Name(), r)
		}
	}()
	return stage.Run(ctx, pc)
}
