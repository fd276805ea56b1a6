package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/atlasfleet/dispatch-cli/internal/model"
)

// Classifier categorizes an inbound message.
type Classifier interface {
	Classify(ctx context.Context, msg model.Message) (model.Classification, error)
}

type classifyStage struct {
	svc Classifier
}

// NewClassifyStage creates the classification stage. It is the only
// critical stage: without a category no later decision is sound, so a
// failure here aborts the message and leaves it eligible for retry.
func NewClassifyStage(svc Classifier) Stage {
	return &classifyStage{svc: svc}
}

func (s *classifyStage) Name() string            { return StageClassify }
func (s *classifyStage) Sequence() int           { return seqClassify }
func (s *classifyStage) Critical() bool          { return true }
func (s *classifyStage) ShouldRun(*Context) bool { return true }

func (s *classifyStage) Run(ctx context.Context, pc *Context) error {
	cls, err := s.svc.Classify(ctx, pc.Message)
	pc.Classification = cls
	if err != nil {
		return eris.Wrap(err, "classify stage")
	}
	return nil
}
