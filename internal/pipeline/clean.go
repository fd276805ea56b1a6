package pipeline

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
)

// Context value keys written by the cleaning stage and read by geocoding.
const (
	ValueCleanedLoading   = "cleaned_loading_address"
	ValueCleanedUnloading = "cleaned_unloading_address"
)

// AddressCleaner normalizes a raw address before geocoding.
type AddressCleaner interface {
	Clean(ctx context.Context, raw string) (string, error)
}

type cleanStage struct {
	svc AddressCleaner
}

// NewCleanStage creates the address cleaning stage. Cleaned addresses land
// in the context value side-channel, never on the draft: the draft keeps
// the addresses exactly as the sender wrote them.
func NewCleanStage(svc AddressCleaner) Stage {
	return &cleanStage{svc: svc}
}

func (s *cleanStage) Name() string   { return StageClean }
func (s *cleanStage) Sequence() int  { return seqClean }
func (s *cleanStage) Critical() bool { return false }

func (s *cleanStage) ShouldRun(pc *Context) bool {
	return pc.IsOrder() && pc.Draft != nil
}

func (s *cleanStage) Run(ctx context.Context, pc *Context) error {
	var errs []error

	if pc.Draft.LoadingAddress != "" {
		if cleaned, err := s.svc.Clean(ctx, pc.Draft.LoadingAddress); err != nil {
			errs = append(errs, eris.Wrap(err, "clean stage: loading address"))
		} else {
			pc.SetValue(ValueCleanedLoading, cleaned)
		}
	}

	if pc.Draft.UnloadingAddress != "" {
		if cleaned, err := s.svc.Clean(ctx, pc.Draft.UnloadingAddress); err != nil {
			errs = append(errs, eris.Wrap(err, "clean stage: unloading address"))
		} else {
			pc.SetValue(ValueCleanedUnloading, cleaned)
		}
	}

	return errors.Join(errs...)
}
