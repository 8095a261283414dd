package segment

// Classification labels a segment's motion state. STOP is a refinement
// of SLOW: a segment that is both slow and long enough counts as a
// stop, not as slow movement.
type Classification string

const (
	Moving Classification = "MOVING"
	Slow   Classification = "SLOW"
	Stop   Classification = "STOP"
)

// Segment is the interval between two temporally adjacent trackpoints
// of the original, unsimplified track. DistanceM is the horizontal 2D
// great-circle distance; gradients and speeds derive from it, never
// from the 3D slope distance.
type Segment struct {
	StartSequence int `json:"start_sequence"`
	EndSequence   int `json:"end_sequence"`

	DistanceM float64 `json:"distance_m"`
	DurationS float64 `json:"duration_s"`
	SpeedKmh  float64 `json:"speed_kmh"`

	// ElevationDeltaM is nil when either endpoint lacks elevation.
	ElevationDeltaM *float64 `json:"elevation_delta_m,omitempty"`
	GradientPct     float64  `json:"gradient_pct"`

	Classification Classification `json:"classification"`

	// GPSError marks segments whose implied speed exceeds the
	// configured ceiling. They stay in the list but are excluded from
	// speed aggregation.
	GPSError bool `json:"gps_error,omitempty"`
}

// Options holds the classification thresholds. Values are always
// passed explicitly so the same track can be reprocessed
// deterministically with different tuning.
type Options struct {
	SlowSpeedThresholdKmh   float64
	StopDurationThresholdS  float64
	GPSErrorSpeedCeilingKmh float64
}

// DefaultOptions returns the cycling-context defaults.
func DefaultOptions() Options {
	return Options{
		SlowSpeedThresholdKmh:   3.0,
		StopDurationThresholdS:  120,
		GPSErrorSpeedCeilingKmh: 120,
	}
}
