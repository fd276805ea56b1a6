package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimplify_ColonClauseAndSuffix(t *testing.T) {
	got := Simplify("Acme Corp Ltd: Warehouse B, 123 Main St, 10001 New York, US")
	assert.Equal(t, "Acme, 123 Main St, 10001 New York, US", got)
}

func TestSimplify_CountryPostalCity(t *testing.T) {
	// Cyrillic company suffix and a country-code postal block.
	got := Simplify("Дунарит АД, бул. Трети март 1, BG 7000 Русе")
	assert.Contains(t, got, "BG 7000 Русе")
	assert.NotContains(t, got, "АД")
}

func TestSimplify_PostalCityCountry(t *testing.T) {
	got := Simplify("Nordjysk Fisk A/S, Havnegade 12, 9340 Asaa, Denmark")
	assert.Contains(t, got, "9340 Asaa")
	assert.Contains(t, got, "Denmark")
	assert.NotContains(t, got, "A/S")
}

func TestSimplify_FallbackTwoSegments(t *testing.T) {
	// No postal block anywhere: keep the first two segments only.
	got := Simplify("Main Depot, Industrial Zone East, behind the old silo, ask for Pete")
	assert.Equal(t, "Main Depot, Industrial Zone East", got)
}

func TestSimplify_Empty(t *testing.T) {
	assert.Equal(t, "", Simplify(""))
}

func TestSimplify_ShortAddressUnchanged(t *testing.T) {
	assert.Equal(t, "Hamburg", Simplify("Hamburg"))
}

func TestStripCompanySuffixes(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Acme Corp Ltd", "Acme"},
		{"Nordjysk Fisk A/S, Havnegade 12", "Nordjysk Fisk, Havnegade 12"},
		{"Muller GmbH", "Muller"},
		{"Дунарит АД", "Дунарит"},
		{"No Suffix Here", "No Suffix Here"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripCompanySuffixes(tt.in), tt.in)
	}
}

func TestStrictMatch_PostalAndStreet(t *testing.T) {
	ok := StrictMatch(
		"Acme, 123 Main St, 10001 New York, US",
		"123 Main St, New York, NY 10001, USA",
	)
	assert.True(t, ok)
}

func TestStrictMatch_CityOnlyResultRejected(t *testing.T) {
	// Geocoder fell back to a city centroid: postal matches nothing and no
	// street segment is contained.
	ok := StrictMatch(
		"Acme, 123 Main St, 10001 New York, US",
		"New York, NY, USA",
	)
	assert.False(t, ok)
}

func TestStrictMatch_Empty(t *testing.T) {
	assert.False(t, StrictMatch("", "anything"))
	assert.False(t, StrictMatch("anything", ""))
}

func TestStrictMatch_CaseAndWhitespaceInsensitive(t *testing.T) {
	ok := StrictMatch(
		"Havnegade 12, 9340 Asaa, Denmark",
		"HAVNEGADE 12,  9340  ASAA, DENMARK",
	)
	assert.True(t, ok)
}
