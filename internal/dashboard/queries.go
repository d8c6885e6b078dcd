package dashboard

import (
	"time"

	"gorm.io/gorm"

	"github.com/mfolsom/drivelog/internal/geo"
	"github.com/mfolsom/drivelog/internal/models"
)

// SessionRow holds session data for the list endpoint.
type SessionRow struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	SequenceNumber int        `json:"sequence_number"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	DurationSecs   float64    `json:"duration_secs"`
	SampleCount    int        `json:"sample_count"`
	DistanceMeters float64    `json:"distance_meters"`
	HasAudio       bool       `json:"has_audio"`
	HasTranscript  bool       `json:"has_transcript"`
}

// SessionDetail extends the row with per-session collections.
type SessionDetail struct {
	SessionRow
	AmountPaid     *float64                   `json:"amount_paid,omitempty"`
	TranscriptText string                     `json:"transcript_text,omitempty"`
	Waypoints      []models.Waypoint          `json:"waypoints"`
	Stops          []models.Stop              `json:"stops"`
	Segments       []models.TranscriptSegment `json:"segments"`
}

func rowFor(s *models.Session) SessionRow {
	return SessionRow{
		ID:             s.ID,
		Title:          s.Title(),
		SequenceNumber: s.SequenceNumber,
		StartedAt:      s.StartedAt,
		EndedAt:        s.EndedAt,
		DurationSecs:   s.Duration().Seconds(),
		SampleCount:    len(s.RouteSamples),
		DistanceMeters: geo.TotalDistance(s.RouteSamples),
		HasAudio:       s.AudioFileRef != "",
		HasTranscript:  s.TranscriptText != "",
	}
}

// SessionSummary returns all sessions, newest first.
func SessionSummary(db *gorm.DB) ([]SessionRow, error) {
	var sessions []models.Session
	if err := db.Preload("RouteSamples", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("seq ASC")
	}).Order("started_at DESC").Find(&sessions).Error; err != nil {
		return nil, err
	}

	rows := make([]SessionRow, len(sessions))
	for i := range sessions {
		rows[i] = rowFor(&sessions[i])
	}
	return rows, nil
}

// sessionModel loads the raw session row with its route for the export
// pipeline, or gorm.ErrRecordNotFound.
func sessionModel(db *gorm.DB, id string) (*models.Session, error) {
	var s models.Session
	err := db.
		Preload("RouteSamples", func(tx *gorm.DB) *gorm.DB { return tx.Order("seq ASC") }).
		Preload("TranscriptSegments", func(tx *gorm.DB) *gorm.DB { return tx.Order("start_offset ASC") }).
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SessionByID returns the full detail for one session, or
// gorm.ErrRecordNotFound.
func SessionByID(db *gorm.DB, id string) (*SessionDetail, error) {
	var s models.Session
	err := db.
		Preload("RouteSamples", func(tx *gorm.DB) *gorm.DB { return tx.Order("seq ASC") }).
		Preload("Waypoints", func(tx *gorm.DB) *gorm.DB { return tx.Order("time_offset ASC") }).
		Preload("Stops", func(tx *gorm.DB) *gorm.DB { return tx.Order("started_at ASC") }).
		Preload("TranscriptSegments", func(tx *gorm.DB) *gorm.DB { return tx.Order("start_offset ASC") }).
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return &SessionDetail{
		SessionRow:     rowFor(&s),
		AmountPaid:     s.AmountPaid,
		TranscriptText: s.TranscriptText,
		Waypoints:      s.Waypoints,
		Stops:          s.Stops,
		Segments:       s.TranscriptSegments,
	}, nil
}
