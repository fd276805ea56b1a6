package model

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Coordinates is a validated latitude/longitude pair. The zero value is
// not meaningful; absent coordinates are represented by a nil pointer.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewCoordinates validates the pair and returns it, or an error when
// either component is outside the WGS84 range.
func NewCoordinates(lat, lng float64) (*Coordinates, error) {
	if lat < -90 || lat > 90 {
		return nil, eris.Errorf("model: latitude %v out of range", lat)
	}
	if lng < -180 || lng > 180 {
		return nil, eris.Errorf("model: longitude %v out of range", lng)
	}
	return &Coordinates{Lat: lat, Lng: lng}, nil
}

// String renders the pair in the "lat, lng" wire form used by sinks. A nil
// receiver renders as the empty string so absent coordinates stay blank.
func (c *Coordinates) String() string {
	if c == nil {
		return ""
	}
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + ", " + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

// ParseCoordinates parses the "lat, lng" wire form. An empty string yields
// (nil, nil) so sink rows with blank coordinate cells round-trip cleanly.
func ParseCoordinates(s string) (*Coordinates, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return nil, eris.Errorf("model: malformed coordinates %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, eris.Wrapf(err, "model: parse latitude in %q", s)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, eris.Wrapf(err, "model: parse longitude in %q", s)
	}
	return NewCoordinates(lat, lng)
}
