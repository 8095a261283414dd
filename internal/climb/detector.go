package climb

import (
	"fmt"

	"backend-contravento/internal/segment"
)

// Climb is a contiguous ascending run of segments that cleared the
// minimum gain and distance thresholds.
type Climb struct {
	StartSequence  int     `json:"start_sequence"`
	EndSequence    int     `json:"end_sequence"`
	DistanceM      float64 `json:"distance_m"`
	ElevationGainM float64 `json:"elevation_gain_m"`
	AvgGradientPct float64 `json:"avg_gradient_pct"`
	Description    string  `json:"description"`
}

// Options holds the climb detection thresholds.
type Options struct {
	// MinGainM and MinDistanceM discard sub-threshold candidates.
	MinGainM     float64
	MinDistanceM float64

	// DipToleranceM is how much elevation loss a climb may absorb
	// between ascending segments before the run is cut. Tolerates
	// barometric noise without fragmenting a genuine climb.
	DipToleranceM float64
}

// DefaultOptions returns the production thresholds.
func DefaultOptions() Options {
	return Options{
		MinGainM:      50,
		MinDistanceM:  200,
		DipToleranceM: 2,
	}
}

// Detect merges consecutive ascending MOVING/SLOW segments into Climb
// records. STOP segments, segments without elevation, and dips losing
// more than the tolerance all cut the current run. Trailing dip
// segments never count toward a climb; they only bridge it when the
// ascent resumes.
func Detect(segments []segment.Segment, opts Options) []Climb {
	var climbs []Climb

	var run []segment.Segment
	var pending []segment.Segment // dip segments awaiting resumed ascent
	var dipLoss float64

	flush := func() {
		if c, ok := finalize(run, opts); ok {
			climbs = append(climbs, c)
		}
		run = nil
		pending = nil
		dipLoss = 0
	}

	for _, seg := range segments {
		ascending := seg.ElevationDeltaM != nil && *seg.ElevationDeltaM > 0 &&
			seg.Classification != segment.Stop

		if ascending {
			run = append(run, pending...)
			run = append(run, seg)
			pending = nil
			dipLoss = 0
			continue
		}

		if len(run) == 0 {
			continue
		}

		if seg.ElevationDeltaM == nil || seg.Classification == segment.Stop {
			flush()
			continue
		}

		dipLoss += -*seg.ElevationDeltaM
		if dipLoss > opts.DipToleranceM {
			flush()
			continue
		}
		pending = append(pending, seg)
	}
	flush()

	return climbs
}

func finalize(run []segment.Segment, opts Options) (Climb, bool) {
	if len(run) == 0 {
		return Climb{}, false
	}

	c := Climb{
		StartSequence: run[0].StartSequence,
		EndSequence:   run[len(run)-1].EndSequence,
	}
	for _, seg := range run {
		c.DistanceM += seg.DistanceM
		c.ElevationGainM += *seg.ElevationDeltaM
	}

	if c.ElevationGainM < opts.MinGainM || c.DistanceM < opts.MinDistanceM {
		return Climb{}, false
	}

	// Average gradient over the horizontal distance, consistent with
	// per-segment gradients.
	c.AvgGradientPct = c.ElevationGainM / c.DistanceM * 100
	c.Description = fmt.Sprintf("%.0f m over %.1f km at %.1f%%",
		c.ElevationGainM, c.DistanceM/1000, c.AvgGradientPct)

	return c, true
}
