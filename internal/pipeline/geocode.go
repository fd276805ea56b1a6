package pipeline

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/atlasfleet/dispatch-cli/internal/model"
)

// Resolver resolves a free-text address to coordinates, or nil when no
// acceptable match exists.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (*model.Coordinates, error)
}

type geocodeStage struct {
	svc Resolver
}

// NewGeocodeStage creates the coordinate resolution stage. It prefers the
// cleaned address from the cleaning stage when present and falls back to
// the raw extracted address otherwise. An address that already carries
// coordinates is left untouched.
func NewGeocodeStage(svc Resolver) Stage {
	return &geocodeStage{svc: svc}
}

func (s *geocodeStage) Name() string   { return StageGeocode }
func (s *geocodeStage) Sequence() int  { return seqGeocode }
func (s *geocodeStage) Critical() bool { return false }

func (s *geocodeStage) ShouldRun(pc *Context) bool {
	if !pc.IsOrder() || pc.Draft == nil {
		return false
	}
	return pc.Draft.LoadingCoordinates == nil || pc.Draft.UnloadingCoordinates == nil
}

func (s *geocodeStage) Run(ctx context.Context, pc *Context) error {
	var errs []error

	if pc.Draft.LoadingCoordinates == nil {
		if addr := pickAddress(pc, ValueCleanedLoading, pc.Draft.LoadingAddress); addr != "" {
			coords, err := s.svc.Resolve(ctx, addr)
			if err != nil {
				errs = append(errs, eris.Wrap(err, "geocode stage: loading address"))
			} else {
				pc.Draft.LoadingCoordinates = coords
			}
		}
	}

	if pc.Draft.UnloadingCoordinates == nil {
		if addr := pickAddress(pc, ValueCleanedUnloading, pc.Draft.UnloadingAddress); addr != "" {
			coords, err := s.svc.Resolve(ctx, addr)
			if err != nil {
				errs = append(errs, eris.Wrap(err, "geocode stage: unloading address"))
			} else {
				pc.Draft.UnloadingCoordinates = coords
			}
		}
	}

	return errors.Join(errs...)
}

func pickAddress(pc *Context, cleanedKey, raw string) string {
	if cleaned := pc.StringValue(cleanedKey); cleaned != "" {
		return cleaned
	}
	return raw
}
