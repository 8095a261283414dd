package gpx

import "time"

// Trackpoint is a single GPS fix. Latitude and longitude are stored
// rounded to 6 decimal places. Elevation is nil when the source point
// carried no <ele> element; Timestamp is the zero time when the point
// carried no <time> element.
type Trackpoint struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Elevation *float64  `json:"elevation_m,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Sequence is the zero-based position in original recording order.
	Sequence int `json:"sequence"`
}

// HasElevation reports whether the point carried an elevation reading.
func (p Trackpoint) HasElevation() bool {
	return p.Elevation != nil
}

// HasTimestamp reports whether the point carried a timestamp.
func (p Trackpoint) HasTimestamp() bool {
	return !p.Timestamp.IsZero()
}

// Track is the ordered trackpoint sequence produced by parsing one GPX
// document. It is created once at parse time and never mutated;
// simplification and statistics both read it and produce new derived
// artifacts.
type Track struct {
	Name   string       `json:"name,omitempty"`
	Points []Trackpoint `json:"points"`

	// HasTimestamps is true iff every trackpoint has a timestamp. It
	// gates whether time-based statistics may be computed at all.
	HasTimestamps bool `json:"has_timestamps"`
}
