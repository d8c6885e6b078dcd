package session

import (
	"time"

	"github.com/mfolsom/drivelog/internal/geo"
	"github.com/mfolsom/drivelog/internal/models"
)

// DetectStops finds periods where consecutive samples cluster within
// radiusMeters of the cluster's first fix for at least minDuration. Stops
// are derived annotations only; they never alter the sample sequence.
func DetectStops(sessionID string, samples []models.RouteSample, radiusMeters float64, minDuration time.Duration) []models.Stop {
	if len(samples) < 2 || radiusMeters <= 0 || minDuration <= 0 {
		return nil
	}

	var stops []models.Stop
	anchor := 0

	flush := func(last int) {
		first := samples[anchor]
		end := samples[last]
		if end.Timestamp.Sub(first.Timestamp) < minDuration {
			return
		}
		var lat, lon float64
		for _, s := range samples[anchor : last+1] {
			lat += s.Latitude
			lon += s.Longitude
		}
		n := float64(last - anchor + 1)
		stops = append(stops, models.Stop{
			SessionID: sessionID,
			StartedAt: first.Timestamp,
			EndedAt:   end.Timestamp,
			Latitude:  lat / n,
			Longitude: lon / n,
		})
	}

	for i := 1; i < len(samples); i++ {
		a := samples[anchor]
		s := samples[i]
		if geo.Distance(a.Latitude, a.Longitude, s.Latitude, s.Longitude) <= radiusMeters {
			continue
		}
		flush(i - 1)
		anchor = i
	}
	flush(len(samples) - 1)

	return stops
}
