package route

import (
	"strconv"
	"strings"
	"time"

	"backend-contravento/internal/gpx"
	"backend-contravento/internal/shared/geo"
)

// Route is the stored record for one uploaded GPX track. The geometry
// column holds the simplified polyline; the original trackpoints stay
// in the raw gpx payload so statistics can be recomputed later.
type Route struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	Name                 string    `json:"name"`
	PointCount           int       `json:"point_count"`
	SimplifiedPointCount int       `json:"simplified_point_count"`
	TotalDistanceM       float64   `json:"total_distance_m"`
	TotalElevationGainM  float64   `json:"total_elevation_gain_m"`
	GeometryWKT          string    `json:"geometry"`
	Revision             int       `json:"revision"`
	CreatedAt            time.Time `json:"created_at"`
}

// wktLineString renders points as a WKT LINESTRING in lon-lat order
// for PostGIS. A single-point track is rendered with the point
// repeated, since LINESTRING requires at least two positions.
func wktLineString(points []gpx.Trackpoint) string {
	if len(points) == 0 {
		return "LINESTRING EMPTY"
	}

	var b strings.Builder
	b.WriteString("LINESTRING(")
	writePoint := func(p gpx.Trackpoint) {
		b.WriteString(strconv.FormatFloat(p.Longitude, 'f', -1, 64))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(p.Latitude, 'f', -1, 64))
	}
	writePoint(points[0])
	if len(points) == 1 {
		b.WriteByte(',')
		writePoint(points[0])
	}
	for _, p := range points[1:] {
		b.WriteByte(',')
		writePoint(p)
	}
	b.WriteByte(')')
	return b.String()
}

// totalDistanceM sums the haversine distance over consecutive points.
func totalDistanceM(points []gpx.Trackpoint) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += geo.HaversineM(
			points[i-1].Latitude, points[i-1].Longitude,
			points[i].Latitude, points[i].Longitude)
	}
	return total
}

// totalElevationGainM sums positive elevation deltas between
// consecutive points that both carry elevation.
func totalElevationGainM(points []gpx.Trackpoint) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		if !points[i-1].HasElevation() || !points[i].HasElevation() {
			continue
		}
		if delta := *points[i].Elevation - *points[i-1].Elevation; delta > 0 {
			total += delta
		}
	}
	return total
}
