package resolve

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasfleet/dispatch-cli/pkg/geocode"
)

// fakeGeocoder returns canned results per address and records calls.
type fakeGeocoder struct {
	results map[string]*geocode.Result
	err     error
	calls   []string
}

func (f *fakeGeocoder) Geocode(_ context.Context, address string) (*geocode.Result, error) {
	f.calls = append(f.calls, address)
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[address]; ok {
		return r, nil
	}
	return &geocode.Result{Matched: false}, nil
}

func TestResolve_ExactRooftop(t *testing.T) {
	gc := &fakeGeocoder{results: map[string]*geocode.Result{
		"Havnegade 12, 9340 Asaa, Denmark": {
			Latitude: 57.14, Longitude: 10.4,
			Quality: geocode.QualityRooftop, Matched: true,
		},
	}}

	coords, err := NewResolver(gc).Resolve(context.Background(), "Havnegade 12, 9340 Asaa, Denmark")
	require.NoError(t, err)
	require.NotNil(t, coords)
	assert.Equal(t, 57.14, coords.Lat)
	// Exact rooftop short-circuits: the simplified form is never queried.
	assert.Len(t, gc.calls, 1)
}

func TestResolve_PartialRooftopAccepted(t *testing.T) {
	gc := &fakeGeocoder{results: map[string]*geocode.Result{
		"Havnegade 12, 9340 Asaa, Denmark": {
			Latitude: 57.14, Longitude: 10.4,
			Quality: geocode.QualityRooftop, PartialMatch: true, Matched: true,
		},
	}}

	coords, err := NewResolver(gc).Resolve(context.Background(), "Havnegade 12, 9340 Asaa, Denmark")
	require.NoError(t, err)
	require.NotNil(t, coords)
	assert.Len(t, gc.calls, 1)
}

func TestResolve_SimplifiedStrictMatch(t *testing.T) {
	raw := "Acme Corp Ltd: Warehouse B, 123 Main St, 10001 New York, US"
	simplified := "Acme, 123 Main St, 10001 New York, US"

	gc := &fakeGeocoder{results: map[string]*geocode.Result{
		raw: {
			Latitude: 40.0, Longitude: -74.0,
			Quality: geocode.QualityApproximate, Matched: true,
		},
		simplified: {
			Latitude: 40.748, Longitude: -73.985,
			FormattedAddress: "123 Main St, New York, NY 10001, USA",
			Quality:          geocode.QualityRooftop, Matched: true,
		},
	}}

	coords, err := NewResolver(gc).Resolve(context.Background(), raw)
	require.NoError(t, err)
	require.NotNil(t, coords)
	assert.Equal(t, 40.748, coords.Lat)
	assert.Equal(t, []string{raw, simplified}, gc.calls)
}

func TestResolve_SimplifiedRejectedByStrictMatch(t *testing.T) {
	raw := "Acme Corp Ltd: Warehouse B, 123 Main St, 10001 New York, US"
	simplified := "Acme, 123 Main St, 10001 New York, US"

	gc := &fakeGeocoder{results: map[string]*geocode.Result{
		// A city-centroid answer dressed up as rooftop must not pass the
		// containment check.
		simplified: {
			Latitude: 40.71, Longitude: -74.0,
			FormattedAddress: "New York, NY, USA",
			Quality:          geocode.QualityRooftop, Matched: true,
		},
	}}

	coords, err := NewResolver(gc).Resolve(context.Background(), raw)
	require.NoError(t, err)
	assert.Nil(t, coords)
}

func TestResolve_CentroidFallback(t *testing.T) {
	raw := "Somewhere vague, Hamburg"

	gc := &fakeGeocoder{results: map[string]*geocode.Result{
		raw: {
			Latitude: 53.55, Longitude: 9.99,
			Quality: geocode.QualityCentroid, Matched: true,
		},
	}}

	coords, err := NewResolver(gc).Resolve(context.Background(), raw)
	require.NoError(t, err)
	require.NotNil(t, coords)
	assert.Equal(t, 53.55, coords.Lat)
}

func TestResolve_AllTiersMiss(t *testing.T) {
	gc := &fakeGeocoder{}
	coords, err := NewResolver(gc).Resolve(context.Background(), "complete nonsense")
	require.NoError(t, err)
	assert.Nil(t, coords)
}

func TestResolve_EmptyAddress(t *testing.T) {
	gc := &fakeGeocoder{}
	coords, err := NewResolver(gc).Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, coords)
	assert.Empty(t, gc.calls)
}

func TestResolve_GeocoderError(t *testing.T) {
	gc := &fakeGeocoder{err: eris.New("quota exhausted")}
	_, err := NewResolver(gc).Resolve(context.Background(), "Havnegade 12")
	assert.Error(t, err)
}
