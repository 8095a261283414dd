package gpx

import (
	"errors"
	"fmt"
	"io"

	"backend-contravento/internal/shared/geo"

	gpxgo "github.com/tkrajina/gpxgo/gpx"
)

var (
	// ErrMalformedInput marks GPX documents that cannot be parsed or
	// contain invalid trackpoints. Nothing downstream can proceed.
	ErrMalformedInput = errors.New("malformed gpx input")

	// ErrEmptyTrack marks documents that parse but contain zero
	// trackpoints.
	ErrEmptyTrack = errors.New("gpx document contains no trackpoints")
)

// Parse parses raw GPX bytes into a Track. All track segments of all
// tracks in the document are flattened into one continuous ordered
// sequence; segment boundaries are not modeled.
func Parse(raw []byte) (*Track, error) {
	doc, err := gpxgo.ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return fromDocument(doc)
}

// ParseReader parses GPX from an io.Reader.
func ParseReader(r io.Reader) (*Track, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return Parse(raw)
}

func fromDocument(doc *gpxgo.GPX) (*Track, error) {
	track := &Track{HasTimestamps: true}

	for _, trk := range doc.Tracks {
		if track.Name == "" {
			track.Name = trk.Name
		}
		for _, seg := range trk.Segments {
			for i := range seg.Points {
				p := &seg.Points[i]

				if p.Latitude < -90 || p.Latitude > 90 {
					return nil, fmt.Errorf("%w: trackpoint %d: latitude %v out of range",
						ErrMalformedInput, len(track.Points), p.Latitude)
				}
				if p.Longitude < -180 || p.Longitude > 180 {
					return nil, fmt.Errorf("%w: trackpoint %d: longitude %v out of range",
						ErrMalformedInput, len(track.Points), p.Longitude)
				}

				point := Trackpoint{
					Latitude:  geo.Round6(p.Latitude),
					Longitude: geo.Round6(p.Longitude),
					Sequence:  len(track.Points),
				}
				if p.Elevation.NotNull() {
					ele := p.Elevation.Value()
					point.Elevation = &ele
				}
				if !p.Timestamp.IsZero() {
					point.Timestamp = p.Timestamp.UTC()
				} else {
					track.HasTimestamps = false
				}

				track.Points = append(track.Points, point)
			}
		}
	}

	if len(track.Points) == 0 {
		return nil, ErrEmptyTrack
	}
	return track, nil
}
