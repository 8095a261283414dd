package simplify

import (
	"errors"
	"fmt"

	"backend-contravento/internal/gpx"
	"backend-contravento/internal/shared/geo"
)

// ErrInvalidTolerance marks a non-positive epsilon. This is a caller
// configuration error, not a data problem.
var ErrInvalidTolerance = errors.New("simplification tolerance must be positive")

// DefaultEpsilonDeg is roughly 11 m at the equator.
const DefaultEpsilonDeg = 0.0001

// Options controls the simplifier. EpsilonDeg is the Douglas-Peucker
// tolerance in degrees. PreFilterDistanceM, when positive, merges
// trackpoints closer than that many meters before the main pass;
// near-duplicate points add quadratic cost without adding shape.
type Options struct {
	EpsilonDeg         float64
	PreFilterDistanceM float64
}

// DefaultOptions returns the production tuning: default tolerance, no
// pre-filter.
func DefaultOptions() Options {
	return Options{EpsilonDeg: DefaultEpsilonDeg}
}

// SimplifiedTrack is a reduced ordered subsequence of the original
// track's points. It always contains the original first and last
// point. It is a derived view for storage and rendering only; route
// statistics are computed from the original track.
type SimplifiedTrack struct {
	Points        []gpx.Trackpoint `json:"points"`
	OriginalCount int              `json:"original_count"`
}

// Simplify reduces the track's point count with the Douglas-Peucker
// algorithm, preserving shape within opts.EpsilonDeg. The input track
// is not modified.
func Simplify(track *gpx.Track, opts Options) (*SimplifiedTrack, error) {
	if opts.EpsilonDeg <= 0 {
		return nil, fmt.Errorf("%w: epsilon %v", ErrInvalidTolerance, opts.EpsilonDeg)
	}

	points := track.Points
	if opts.PreFilterDistanceM > 0 {
		points = preFilter(points, opts.PreFilterDistanceM)
	}

	kept := douglasPeucker(points, opts.EpsilonDeg)

	out := make([]gpx.Trackpoint, len(kept))
	copy(out, kept)
	return &SimplifiedTrack{Points: out, OriginalCount: len(track.Points)}, nil
}

// preFilter drops points closer than minDistanceM to the previously
// kept point. Endpoints are always kept.
func preFilter(points []gpx.Trackpoint, minDistanceM float64) []gpx.Trackpoint {
	if len(points) <= 2 {
		return points
	}

	kept := make([]gpx.Trackpoint, 0, len(points))
	kept = append(kept, points[0])
	anchor := points[0]

	for i := 1; i < len(points)-1; i++ {
		d := geo.HaversineM(anchor.Latitude, anchor.Longitude, points[i].Latitude, points[i].Longitude)
		if d >= minDistanceM {
			kept = append(kept, points[i])
			anchor = points[i]
		}
	}

	return append(kept, points[len(points)-1])
}

// douglasPeucker runs RDP with an explicit work stack of index ranges
// instead of recursion, so pathologically long tracks cannot exhaust
// the call stack. Worst case remains O(n^2): each span may re-scan
// most of its points, and curvy tracks split far more often than
// straight ones.
func douglasPeucker(points []gpx.Trackpoint, epsilonDeg float64) []gpx.Trackpoint {
	n := len(points)
	if n <= 2 {
		return points
	}

	keep := make([]bool, n)
	keep[0], keep[n-1] = true, true

	type span struct{ first, last int }
	stack := []span{{0, n - 1}}

	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if s.last-s.first < 2 {
			continue
		}

		a, b := points[s.first], points[s.last]
		maxDist := 0.0
		maxIdx := -1
		for i := s.first + 1; i < s.last; i++ {
			d := geo.PerpendicularDistanceDeg(
				points[i].Latitude, points[i].Longitude,
				a.Latitude, a.Longitude,
				b.Latitude, b.Longitude)
			if d > maxDist {
				maxDist = d
				maxIdx = i
			}
		}

		// Everything in the span is within tolerance of the chord;
		// the span collapses to its endpoints.
		if maxDist <= epsilonDeg {
			continue
		}

		keep[maxIdx] = true
		stack = append(stack, span{s.first, maxIdx}, span{maxIdx, s.last})
	}

	kept := make([]gpx.Trackpoint, 0, n)
	for i, k := range keep {
		if k {
			kept = append(kept, points[i])
		}
	}
	return kept
}
