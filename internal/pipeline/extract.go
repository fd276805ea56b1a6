package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/atlasfleet/dispatch-cli/internal/model"
)

// Extractor builds a structured order draft from a message.
type Extractor interface {
	Extract(ctx context.Context, msg model.Message) (*model.OrderDraft, error)
}

type extractStage struct {
	svc Extractor
}

// NewExtractStage creates the order extraction stage. Runs only for
// messages classified as orders.
func NewExtractStage(svc Extractor) Stage {
	return &extractStage{svc: svc}
}

func (s *extractStage) Name() string   { return StageExtract }
func (s *extractStage) Sequence() int  { return seqExtract }
func (s *extractStage) Critical() bool { return false }

func (s *extractStage) ShouldRun(pc *Context) bool { return pc.IsOrder() }

func (s *extractStage) Run(ctx context.Context, pc *Context) error {
	draft, err := s.svc.Extract(ctx, pc.Message)
	if err != nil {
		return eris.Wrap(err, "extract stage")
	}
	draft.FillProvenance(pc.Message, pc.StartedAt)
	pc.Draft = draft
	return nil
}
