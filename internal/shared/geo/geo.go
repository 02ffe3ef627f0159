package geo

import (
	"math"
	"strconv"
	"strings"
)

const (
	earthRadiusMiles = 3959
	// Assumed average riding speed used for duration estimates. Policy
	// constant; changing it changes every persisted estimate.
	averageSpeedMph = 10
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Stats summarizes a path: distance in statute miles rounded to one decimal,
// estimated duration in whole minutes.
type Stats struct {
	Distance float64 `json:"distance"`
	Duration int     `json:"time"`
}

// HaversineMiles returns the great-circle distance between two points.
func HaversineMiles(from, to Point) float64 {
	dLat := (to.Lat - from.Lat) * math.Pi / 180
	dLng := (to.Lng - from.Lng) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(from.Lat*math.Pi/180)*math.Cos(to.Lat*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c
}

// PathStats computes distance and duration over consecutive pairs. Fewer
// than two points is a zero-valued path, not an error. Duration is estimated
// from the unrounded total, matching what riders see in the builder.
func PathStats(points []Point) Stats {
	if len(points) < 2 {
		return Stats{}
	}

	total := 0.0
	for i := 0; i < len(points)-1; i++ {
		total += HaversineMiles(points[i], points[i+1])
	}

	return Stats{
		Distance: math.Round(total*10) / 10,
		Duration: int(math.Round(total / averageSpeedMph * 60)),
	}
}

// DirectionsURL builds a turn-by-turn Google Maps link: first point is the
// origin, last the destination, interior points become intermediate stops.
// Returns "" for fewer than two points; callers treat that as an incomplete
// route.
func DirectionsURL(points []Point) string {
	if len(points) < 2 {
		return ""
	}

	var b strings.Builder
	b.WriteString("https://www.google.com/maps/dir/?api=1&origin=")
	b.WriteString(formatPoint(points[0]))
	b.WriteString("&destination=")
	b.WriteString(formatPoint(points[len(points)-1]))
	b.WriteString("&travelmode=bicycling")

	if len(points) > 2 {
		stops := make([]string, 0, len(points)-2)
		for _, p := range points[1 : len(points)-1] {
			stops = append(stops, formatPoint(p))
		}
		b.WriteString("&waypoints=")
		b.WriteString(strings.Join(stops, "|"))
	}
	return b.String()
}

func formatPoint(p Point) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}
