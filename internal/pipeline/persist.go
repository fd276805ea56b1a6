package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/atlasfleet/dispatch-cli/internal/model"
)

// Sink accepts a finished order draft for durable storage. Persisting the
// same message id twice must be a no-op.
type Sink interface {
	Persist(ctx context.Context, draft *model.OrderDraft) error
}

type persistStage struct {
	name string
	seq  int
	sink Sink
}

// NewStorePersistStage creates the primary persistence stage writing to the
// relational order store. The sync engine treats its completion as the
// terminal condition for order messages.
func NewStorePersistStage(sink Sink) Stage {
	return &persistStage{name: StagePersistStore, seq: seqPersistStore, sink: sink}
}

// NewExportPersistStage creates the secondary persistence stage appending to
// the XLSX workbook. Best effort: a workbook failure never blocks the
// message from being marked processed.
func NewExportPersistStage(sink Sink) Stage {
	return &persistStage{name: StagePersistExport, seq: seqPersistExport, sink: sink}
}

func (s *persistStage) Name() string   { return s.name }
func (s *persistStage) Sequence() int  { return s.seq }
func (s *persistStage) Critical() bool { return false }

func (s *persistStage) ShouldRun(pc *Context) bool {
	return pc.IsOrder() && pc.Draft != nil
}

func (s *persistStage) Run(ctx context.Context, pc *Context) error {
	if err := s.sink.Persist(ctx, pc.Draft); err != nil {
		return eris.Wrapf(err, "%s stage", s.name)
	}
	return nil
}
