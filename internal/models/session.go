package models

import (
	"fmt"
	"time"
)

// Session is one recorded practice run, from start to finish.
type Session struct {
	ID             string `gorm:"primaryKey;size:36"`
	SequenceNumber int    `gorm:"not null;index"`
	StartedAt      time.Time
	EndedAt        *time.Time
	RouteTracking  bool
	AudioEnabled   bool
	AudioFileRef   string `gorm:"size:512"`
	AudioStartedAt *time.Time
	AmountPaid     *float64
	NoteRef        string `gorm:"size:36"`
	CustomTitle    string `gorm:"size:128"`
	TranscriptText string `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	RouteSamples       []RouteSample       `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	Waypoints          []Waypoint          `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	TranscriptSegments []TranscriptSegment `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	Stops              []Stop              `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// IsActive reports whether the session is still being captured.
func (s *Session) IsActive() bool {
	return s.EndedAt == nil
}

// Duration returns the elapsed capture time. For an active session this is
// the time since start; for a finished one the start-to-end span.
func (s *Session) Duration() time.Duration {
	if s.EndedAt == nil {
		return time.Since(s.StartedAt)
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Title returns the custom title if set, else a sequence-based fallback.
func (s *Session) Title() string {
	if s.CustomTitle != "" {
		return s.CustomTitle
	}
	return fmt.Sprintf("Session %d", s.SequenceNumber)
}

// Clone returns a deep copy so readers never alias ledger-owned state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	if s.AudioStartedAt != nil {
		t := *s.AudioStartedAt
		out.AudioStartedAt = &t
	}
	if s.AmountPaid != nil {
		v := *s.AmountPaid
		out.AmountPaid = &v
	}
	out.RouteSamples = append([]RouteSample(nil), s.RouteSamples...)
	out.Waypoints = append([]Waypoint(nil), s.Waypoints...)
	out.TranscriptSegments = append([]TranscriptSegment(nil), s.TranscriptSegments...)
	out.Stops = append([]Stop(nil), s.Stops...)
	return &out
}

// RouteSample is a single timestamped GPS fix. Samples are append-only and
// the producer guarantees non-decreasing timestamps.
type RouteSample struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"size:36;index"`
	Seq       int
	Timestamp time.Time
	Latitude  float64
	Longitude float64
}

// Waypoint is a downsampled marker derived from route samples, anchored to
// the audio track rather than the GPS clock. Immutable once synthesized.
type Waypoint struct {
	ID         string `gorm:"primaryKey;size:36"`
	SessionID  string `gorm:"size:36;index"`
	Timestamp  time.Time
	TimeOffset float64 // seconds since audio start
	Latitude   float64
	Longitude  float64
}

// Stop is a derived annotation for a period where consecutive samples
// clustered in place. Never authoritative over RouteSamples.
type Stop struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"size:36;index"`
	StartedAt time.Time
	EndedAt   time.Time
	Latitude  float64
	Longitude float64
}
