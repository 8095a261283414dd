package stats

import (
	"errors"
	"fmt"
	"sort"

	"backend-contravento/internal/climb"
	"backend-contravento/internal/gpx"
	"backend-contravento/internal/segment"
)

// ErrInconsistentStatistics marks an aggregate that violates the time
// invariant. It indicates an algorithm defect; the record must never
// be persisted.
var ErrInconsistentStatistics = errors.New("inconsistent route statistics")

// RouteStatistics is the single aggregate record for a track. It is
// entirely absent, never zero-filled, for tracks without timestamps.
type RouteStatistics struct {
	AvgSpeedKmh    float64       `json:"avg_speed_kmh"`
	MaxSpeedKmh    float64       `json:"max_speed_kmh"`
	TotalTimeS     float64       `json:"total_time_s"`
	MovingTimeS    float64       `json:"moving_time_s"`
	StoppedTimeS   float64       `json:"stopped_time_s"`
	AvgGradientPct float64       `json:"avg_gradient_pct"`
	MaxGradientPct float64       `json:"max_gradient_pct"`
	TopClimbs      []climb.Climb `json:"top_climbs"`

	// GPSErrorSegments counts segments excluded from the speed
	// aggregates as sensor noise. Kept for observability; the
	// exclusion itself is silent.
	GPSErrorSegments int `json:"gps_error_segments"`

	// GradientSuspect is raised when MaxGradientPct falls outside the
	// sanity bound for terrestrial cycling. A value far outside the
	// bound usually means a distance computation picked up the
	// elevation term.
	GradientSuspect bool `json:"gradient_suspect,omitempty"`
}

// Options aggregates the tuning of every stage plus the aggregator's
// own knobs.
type Options struct {
	Segment segment.Options
	Climb   climb.Options

	MaxTopClimbs         int
	MaxGradientSanityPct float64
}

// DefaultOptions returns the production tuning for all stages.
func DefaultOptions() Options {
	return Options{
		Segment:              segment.DefaultOptions(),
		Climb:                climb.DefaultOptions(),
		MaxTopClimbs:         5,
		MaxGradientSanityPct: 40,
	}
}

// Compute aggregates a track into one RouteStatistics record. It
// returns (nil, nil) when the track lacks timestamps: callers must
// treat nil as "not computable", never substitute zeros. Statistics
// always derive from the original, unsimplified track.
func Compute(track *gpx.Track, opts Options) (*RouteStatistics, error) {
	segments, ok := segment.Classify(track, opts.Segment)
	if !ok {
		return nil, nil
	}
	return Aggregate(segments, climb.Detect(segments, opts.Climb), opts)
}

// Aggregate rolls an already-classified segment list and its climbs
// into one record, enforcing the time invariant.
func Aggregate(segments []segment.Segment, climbs []climb.Climb, opts Options) (*RouteStatistics, error) {
	rs := &RouteStatistics{}

	var speedDistM, speedDurS float64
	var gradDistM, gradGainM float64
	hasGradient := false

	for _, seg := range segments {
		rs.TotalTimeS += seg.DurationS
		if seg.Classification == segment.Moving {
			rs.MovingTimeS += seg.DurationS
		}

		if seg.GPSError {
			rs.GPSErrorSegments++
		} else {
			speedDistM += seg.DistanceM
			speedDurS += seg.DurationS
			if seg.SpeedKmh > rs.MaxSpeedKmh {
				rs.MaxSpeedKmh = seg.SpeedKmh
			}
		}

		if seg.ElevationDeltaM != nil && seg.DistanceM > 0 {
			gradDistM += seg.DistanceM
			gradGainM += *seg.ElevationDeltaM
			if !hasGradient || seg.GradientPct > rs.MaxGradientPct {
				rs.MaxGradientPct = seg.GradientPct
			}
			hasGradient = true
		}
	}

	rs.StoppedTimeS = rs.TotalTimeS - rs.MovingTimeS

	if rs.MovingTimeS > rs.TotalTimeS || rs.TotalTimeS < 0 || rs.MovingTimeS < 0 {
		return nil, fmt.Errorf("%w: moving %.1fs exceeds total %.1fs",
			ErrInconsistentStatistics, rs.MovingTimeS, rs.TotalTimeS)
	}

	if speedDurS > 0 {
		rs.AvgSpeedKmh = speedDistM / speedDurS * 3.6
	}
	if gradDistM > 0 {
		rs.AvgGradientPct = gradGainM / gradDistM * 100
	}

	if rs.MaxGradientPct > opts.MaxGradientSanityPct {
		rs.GradientSuspect = true
	}

	rs.TopClimbs = topClimbs(climbs, opts.MaxTopClimbs)
	return rs, nil
}

// topClimbs returns the n biggest climbs by elevation gain, descending.
func topClimbs(climbs []climb.Climb, n int) []climb.Climb {
	sorted := make([]climb.Climb, len(climbs))
	copy(sorted, climbs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ElevationGainM > sorted[j].ElevationGainM
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
