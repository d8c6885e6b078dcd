package session

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mfolsom/drivelog/internal/models"
)

const (
	// waypointMinSpacing is the minimum offset gap between emitted waypoints.
	waypointMinSpacing = 30.0
	// waypointTailGap forces a final waypoint when the route tail would
	// otherwise be unrepresented by more than this many seconds.
	waypointTailGap = 10.0
	// waypointCap is the hard upper bound on waypoints per session.
	waypointCap = 20
)

// SynthesizeWaypoints compresses a raw position stream into at most
// waypointCap markers, time-anchored to the audio track. Samples that
// precede the audio start are discarded; without an audio anchor the result
// is empty.
func SynthesizeWaypoints(sessionID string, samples []models.RouteSample, audioStart *time.Time) []models.Waypoint {
	if audioStart == nil || len(samples) == 0 {
		return nil
	}
	start := *audioStart

	sorted := append([]models.RouteSample(nil), samples...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var waypoints []models.Waypoint
	lastOffset := math.Inf(-1)

	for _, s := range sorted {
		if s.Timestamp.Before(start) {
			continue
		}
		offset := s.Timestamp.Sub(start).Seconds()
		if len(waypoints) > 0 && offset-lastOffset < waypointMinSpacing {
			continue
		}
		waypoints = append(waypoints, waypointFrom(sessionID, s, offset))
		lastOffset = offset
	}

	// Represent the route tail when it trails the last marker.
	if last := sorted[len(sorted)-1]; !last.Timestamp.Before(start) {
		finalOffset := last.Timestamp.Sub(start).Seconds()
		if finalOffset-lastOffset > waypointTailGap {
			waypoints = append(waypoints, waypointFrom(sessionID, last, finalOffset))
		}
	}

	if len(waypoints) > waypointCap {
		waypoints = downsampleByStride(waypoints, waypointCap)
	}
	return waypoints
}

// downsampleByStride picks cap evenly spaced waypoints, always keeping the
// first and last. Rounded stride indices can collide for counts just above
// the cap; duplicates are skipped rather than repeated.
func downsampleByStride(waypoints []models.Waypoint, cap int) []models.Waypoint {
	step := float64(len(waypoints)-1) / float64(cap-1)
	out := make([]models.Waypoint, 0, cap)
	lastIndex := -1
	for i := 0; i < cap; i++ {
		idx := int(math.Round(float64(i) * step))
		if idx >= len(waypoints) {
			idx = len(waypoints) - 1
		}
		if idx == lastIndex {
			continue
		}
		out = append(out, waypoints[idx])
		lastIndex = idx
	}
	return out
}

func waypointFrom(sessionID string, s models.RouteSample, offset float64) models.Waypoint {
	return models.Waypoint{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Timestamp:  s.Timestamp,
		TimeOffset: offset,
		Latitude:   s.Latitude,
		Longitude:  s.Longitude,
	}
}
