package geo

import "math"

const earthRadiusM = 6371000.0

// HaversineKm returns the great-circle distance between two
// coordinates in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	return HaversineM(lat1, lon1, lat2, lon2) / 1000
}

// HaversineM returns the horizontal (2D) great-circle distance in
// meters. Elevation is deliberately not part of this computation;
// gradient and speed math must use this function, not SlopeDistanceM.
func HaversineM(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// SlopeDistanceM returns the 3D distance in meters: the horizontal
// great-circle distance combined with the elevation change. Kept as a
// separate, explicitly named function so callers cannot pick up the
// elevation term by accident.
func SlopeDistanceM(lat1, lon1, ele1, lat2, lon2, ele2 float64) float64 {
	run := HaversineM(lat1, lon1, lat2, lon2)
	rise := ele2 - ele1
	return math.Sqrt(run*run + rise*rise)
}

// PerpendicularDistanceDeg returns the perpendicular distance, in
// degrees, from point (lat, lon) to the straight line through
// (lat1, lon1) and (lat2, lon2) in plain lat/lon space. This is the
// metric the simplifier uses; its epsilon is expressed in the same
// units.
func PerpendicularDistanceDeg(lat, lon, lat1, lon1, lat2, lon2 float64) float64 {
	dLat := lat2 - lat1
	dLon := lon2 - lon1

	norm := math.Sqrt(dLat*dLat + dLon*dLon)
	if norm == 0 {
		// Degenerate line: both anchors coincide.
		return math.Sqrt((lat-lat1)*(lat-lat1) + (lon-lon1)*(lon-lon1))
	}

	return math.Abs(dLon*(lat1-lat)-dLat*(lon1-lon)) / norm
}

// Round6 rounds a coordinate to 6 decimal places (~0.11 m at the
// equator), the storage precision for all latitudes and longitudes.
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
