package resolve

import (
	"context"

	"go.uber.org/zap"

	"github.com/atlasfleet/dispatch-cli/internal/model"
	"github.com/atlasfleet/dispatch-cli/pkg/geocode"
)

// Resolver converts a raw address into coordinates via a four-tier
// waterfall, short-circuiting on the first acceptable tier:
//
//  1. raw address, rooftop precision, not a partial match
//  2. raw address, rooftop precision, partial match
//  3. simplified address at rooftop/range precision, accepted only when
//     StrictMatch confirms the formatted result
//  4. raw address at geometric-center precision, as a last resort
//
// When every tier misses, Resolve returns nil. The caller must leave the
// coordinate field absent rather than synthesize a placeholder.
type Resolver struct {
	gc geocode.Client
}

// NewResolver creates a Resolver over the given geocoding client.
func NewResolver(gc geocode.Client) *Resolver {
	return &Resolver{gc: gc}
}

// Resolve geocodes a raw address. A nil result with nil error means no
// tier produced an acceptable match.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*model.Coordinates, error) {
	if raw == "" {
		return nil, nil
	}
	log := zap.L().With(zap.String("address", raw))

	orig, err := r.gc.Geocode(ctx, raw)
	if err != nil {
		return nil, err
	}

	if orig != nil && orig.Matched && orig.Quality == geocode.QualityRooftop {
		if !orig.PartialMatch {
			log.Debug("resolve: accepted exact rooftop match")
		} else {
			log.Debug("resolve: accepted partial rooftop match")
		}
		return model.NewCoordinates(orig.Latitude, orig.Longitude)
	}

	simplified := Simplify(raw)
	simp, err := r.gc.Geocode(ctx, simplified)
	if err != nil {
		return nil, err
	}

	if simp != nil && simp.Matched &&
		(simp.Quality == geocode.QualityRooftop || simp.Quality == geocode.QualityRange) &&
		StrictMatch(simplified, simp.FormattedAddress) {
		log.Debug("resolve: accepted validated simplified match",
			zap.String("simplified", simplified),
			zap.String("formatted", simp.FormattedAddress),
		)
		return model.NewCoordinates(simp.Latitude, simp.Longitude)
	}

	if orig != nil && orig.Matched && orig.Quality == geocode.QualityCentroid {
		log.Debug("resolve: accepted geometric-center fallback")
		return model.NewCoordinates(orig.Latitude, orig.Longitude)
	}

	log.Warn("resolve: all geocoding tiers missed")
	return nil, nil
}
