package segment

import (
	"backend-contravento/internal/gpx"
	"backend-contravento/internal/shared/geo"
)

// Classify computes one Segment per consecutive trackpoint pair of the
// original track and labels its motion state. It reports ok=false when
// the track lacks timestamps, since every per-segment speed would be
// undefined; callers must treat that as "not computable", not as an
// empty list.
func Classify(track *gpx.Track, opts Options) (segments []Segment, ok bool) {
	if !track.HasTimestamps || len(track.Points) < 2 {
		return nil, false
	}

	segments = make([]Segment, 0, len(track.Points)-1)
	for i := 1; i < len(track.Points); i++ {
		prev, curr := track.Points[i-1], track.Points[i]

		seg := Segment{
			StartSequence: prev.Sequence,
			EndSequence:   curr.Sequence,
			DistanceM:     geo.HaversineM(prev.Latitude, prev.Longitude, curr.Latitude, curr.Longitude),
			DurationS:     curr.Timestamp.Sub(prev.Timestamp).Seconds(),
		}

		if seg.DurationS > 0 {
			seg.SpeedKmh = seg.DistanceM / seg.DurationS * 3.6
		}

		if prev.HasElevation() && curr.HasElevation() {
			delta := *curr.Elevation - *prev.Elevation
			seg.ElevationDeltaM = &delta
			if seg.DistanceM > 0 {
				seg.GradientPct = delta / seg.DistanceM * 100
			}
		}

		seg.Classification = classify(seg, opts)
		seg.GPSError = seg.SpeedKmh > opts.GPSErrorSpeedCeilingKmh

		segments = append(segments, seg)
	}
	return segments, true
}

func classify(seg Segment, opts Options) Classification {
	if seg.SpeedKmh >= opts.SlowSpeedThresholdKmh {
		return Moving
	}
	if seg.DurationS > opts.StopDurationThresholdS {
		return Stop
	}
	return Slow
}
