// Package geo holds the pure coordinate math used by rendering and map
// snapshots: canvas projection, bounding regions, and haversine distance.
package geo

import (
	"math"
	"time"

	"github.com/mfolsom/drivelog/internal/models"
)

const (
	// canvasMargin is the padding in pixels around the projected route.
	canvasMargin = 60.0
	// minDegreeDelta floors the bounding-box span so a stationary session
	// doesn't divide by near-zero.
	minDegreeDelta = 0.0001

	// regionPadding widens the snapshot region beyond the raw bounding box.
	regionPadding = 1.3
	// minRegionSpan is the smallest span requested from a snapshot provider.
	minRegionSpan = 0.002

	earthRadiusMeters = 6371000.0
)

// Point is a projected canvas coordinate.
type Point struct {
	X float64
	Y float64
}

// Region is a geographic center plus span, used to request map snapshots.
type Region struct {
	CenterLat float64
	CenterLon float64
	LatSpan   float64
	LonSpan   float64
}

// Project maps route samples onto a width×height canvas. Latitude grows
// upward geographically but canvas y grows downward, so y is flipped.
// Returns one point and one time offset (seconds since the first sample)
// per input sample; both slices are empty for an empty input.
func Project(samples []models.RouteSample, width, height float64) ([]Point, []float64) {
	if len(samples) == 0 {
		return nil, nil
	}

	minLat, maxLat, minLon, maxLon := bounds(samples)

	drawableW := math.Max(width-canvasMargin*2, 10)
	drawableH := math.Max(height-canvasMargin*2, 10)
	latDelta := math.Max(maxLat-minLat, minDegreeDelta)
	lonDelta := math.Max(maxLon-minLon, minDegreeDelta)

	start := samples[0].Timestamp

	points := make([]Point, len(samples))
	offsets := make([]float64, len(samples))
	for i, s := range samples {
		nx := (s.Longitude - minLon) / lonDelta
		ny := (s.Latitude - minLat) / latDelta
		points[i] = Point{
			X: canvasMargin + nx*drawableW,
			Y: canvasMargin + (1-ny)*drawableH,
		}
		offsets[i] = s.Timestamp.Sub(start).Seconds()
	}
	return points, offsets
}

// SnapshotRegion computes the padded region covering all samples, suitable
// for a static map request. Uses the same padding rule as the renderer.
func SnapshotRegion(samples []models.RouteSample) Region {
	if len(samples) == 0 {
		return Region{LatSpan: 0.05, LonSpan: 0.05}
	}

	minLat, maxLat, minLon, maxLon := bounds(samples)

	return Region{
		CenterLat: (maxLat + minLat) / 2,
		CenterLon: (maxLon + minLon) / 2,
		LatSpan:   math.Max((maxLat-minLat)*regionPadding, minRegionSpan),
		LonSpan:   math.Max((maxLon-minLon)*regionPadding, minRegionSpan),
	}
}

// Distance returns the haversine distance in meters between two fixes.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// TotalDistance sums the leg distances over an ordered sample sequence.
func TotalDistance(samples []models.RouteSample) float64 {
	var total float64
	for i := 1; i < len(samples); i++ {
		p, c := samples[i-1], samples[i]
		total += Distance(p.Latitude, p.Longitude, c.Latitude, c.Longitude)
	}
	return total
}

// ElapsedBetween returns the seconds between two sample timestamps,
// clamped at zero for malformed ordering.
func ElapsedBetween(a, b time.Time) float64 {
	d := b.Sub(a).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

func bounds(samples []models.RouteSample) (minLat, maxLat, minLon, maxLon float64) {
	minLat, maxLat = samples[0].Latitude, samples[0].Latitude
	minLon, maxLon = samples[0].Longitude, samples[0].Longitude
	for _, s := range samples[1:] {
		minLat = math.Min(minLat, s.Latitude)
		maxLat = math.Max(maxLat, s.Latitude)
		minLon = math.Min(minLon, s.Longitude)
		maxLon = math.Max(maxLon, s.Longitude)
	}
	return minLat, maxLat, minLon, maxLon
}
