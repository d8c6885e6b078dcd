// Package session implements the ledger that owns the single mutable active
// session, plus the derivations (waypoints, stops) run when it is finished.
package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mfolsom/drivelog/internal/config"
	"github.com/mfolsom/drivelog/internal/models"
	"gorm.io/gorm"
)

// Ledger is the single source of truth for "is a session running" and the
// only writer of route/audio fields while one is. All sensor callbacks
// serialize through its mutex; readers receive deep-copied snapshots.
// Finished sessions live in the gorm history store.
type Ledger struct {
	mu      sync.Mutex
	gdb     *gorm.DB
	capture config.CaptureConfig
	active  *models.Session
}

// NewLedger creates a Ledger backed by the given store. An in-flight
// session left behind by a previous process is restored into the active
// slot, so capture survives restarts and separate CLI invocations.
func NewLedger(gdb *gorm.DB, capture config.CaptureConfig) (*Ledger, error) {
	if gdb == nil {
		return nil, fmt.Errorf("session: db is required")
	}
	l := &Ledger{gdb: gdb, capture: capture}

	var active models.Session
	err := gdb.
		Preload("RouteSamples", func(gdb *gorm.DB) *gorm.DB { return gdb.Order("seq ASC") }).
		Where("ended_at IS NULL").Order("started_at DESC").First(&active).Error
	switch {
	case err == nil:
		l.active = &active
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("session: restore active: %w", err)
	}
	return l, nil
}

// Start allocates a new active session. A guarded no-op when one is already
// running; returns whether a session was started.
func (l *Ledger) Start(routeTracking, recordAudio bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active != nil {
		return false
	}

	var count int64
	if err := l.gdb.Model(&models.Session{}).Count(&count).Error; err != nil {
		log.Printf("session: count history: %v", err)
	}

	s := &models.Session{
		ID:             uuid.NewString(),
		SequenceNumber: int(count) + 1,
		StartedAt:      time.Now(),
		RouteTracking:  routeTracking,
		AudioEnabled:   recordAudio,
	}
	if err := l.gdb.Create(s).Error; err != nil {
		log.Printf("session: persist new session: %v", err)
	}
	l.active = s
	return true
}

// AppendRouteSample appends a fix to the active session. A no-op when no
// session is active or route tracking is off. The producer contract
// guarantees monotone timestamps; a sample that violates it is dropped with
// a diagnostic rather than corrupting the sequence.
func (l *Ledger) AppendRouteSample(sample models.RouteSample) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active == nil || !l.active.RouteTracking {
		return
	}

	if n := len(l.active.RouteSamples); n > 0 {
		last := l.active.RouteSamples[n-1].Timestamp
		if sample.Timestamp.Before(last) {
			log.Printf("session: dropped out-of-order sample (ts=%s, last=%s)",
				sample.Timestamp.Format(time.RFC3339Nano), last.Format(time.RFC3339Nano))
			return
		}
	}

	sample.SessionID = l.active.ID
	sample.Seq = len(l.active.RouteSamples)
	if err := l.gdb.Create(&sample).Error; err != nil {
		log.Printf("session: persist sample: %v", err)
	}
	l.active.RouteSamples = append(l.active.RouteSamples, sample)
}

// MarkAudioStarted records the audio anchor timestamp on the active session.
func (l *Ledger) MarkAudioStarted(at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active == nil {
		return
	}
	t := at
	l.active.AudioStartedAt = &t
	l.updateActiveColumn("audio_started_at", &t)
}

// SetAudioFileRef updates the active session's audio file reference.
func (l *Ledger) SetAudioFileRef(ref string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active == nil {
		return
	}
	l.active.AudioFileRef = ref
	l.updateActiveColumn("audio_file_ref", ref)
}

// MarkEnded stamps EndedAt on the active session. The session stays in the
// active slot until Finish completes, so callers can still inspect it
// mid-completion-flow.
func (l *Ledger) MarkEnded() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active == nil {
		return
	}
	now := time.Now()
	l.active.EndedAt = &now
	l.updateActiveColumn("ended_at", &now)
}

// updateActiveColumn writes one field of the active session through to the
// store. Callers hold the mutex.
func (l *Ledger) updateActiveColumn(column string, value interface{}) {
	if err := l.gdb.Model(&models.Session{}).Where("id = ?", l.active.ID).
		Update(column, value).Error; err != nil {
		log.Printf("session: update %s: %v", column, err)
	}
}

// Finish attaches metadata, derives waypoints and stops, persists the
// session to history, and clears the active slot. Returns the finalized
// session, or false when nothing is active.
func (l *Ledger) Finish(amountPaid *float64, noteRef, audioFileRef string) (*models.Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active == nil {
		return nil, false
	}

	s := l.active
	if s.EndedAt == nil {
		now := time.Now()
		s.EndedAt = &now
	}
	s.AmountPaid = amountPaid
	s.NoteRef = noteRef
	if s.AudioEnabled {
		if audioFileRef != "" {
			s.AudioFileRef = audioFileRef
		}
		s.Waypoints = SynthesizeWaypoints(s.ID, s.RouteSamples, s.AudioStartedAt)
	}
	s.Stops = DetectStops(s.ID, s.RouteSamples, l.capture.StopRadiusMeters,
		time.Duration(l.capture.StopMinDurationSecs*float64(time.Second)))

	// The session row and its samples were written as capture went along;
	// finalize the metadata and the derived children here.
	err := l.gdb.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"ended_at":       s.EndedAt,
			"amount_paid":    s.AmountPaid,
			"note_ref":       s.NoteRef,
			"audio_file_ref": s.AudioFileRef,
		}
		if err := tx.Model(&models.Session{}).Where("id = ?", s.ID).
			Updates(updates).Error; err != nil {
			return err
		}
		if len(s.Waypoints) > 0 {
			if err := tx.Create(&s.Waypoints).Error; err != nil {
				return err
			}
		}
		if len(s.Stops) > 0 {
			if err := tx.Create(&s.Stops).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("session: persist %s: %v", s.ID, err)
	}

	l.active = nil
	return s.Clone(), true
}

// Active returns a snapshot of the active session, or nil.
func (l *Ledger) Active() *models.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active.Clone()
}

// Sessions lists all sessions in sequence order, without their heavy child
// rows. An in-flight session appears with a nil EndedAt.
func (l *Ledger) Sessions() ([]models.Session, error) {
	var sessions []models.Session
	if err := l.gdb.Order("sequence_number ASC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	return sessions, nil
}

// Get loads one finished session with all child rows.
func (l *Ledger) Get(id string) (*models.Session, error) {
	var s models.Session
	err := l.gdb.
		Preload("RouteSamples", func(gdb *gorm.DB) *gorm.DB { return gdb.Order("seq ASC") }).
		Preload("Waypoints", func(gdb *gorm.DB) *gorm.DB { return gdb.Order("time_offset ASC") }).
		Preload("TranscriptSegments", func(gdb *gorm.DB) *gorm.DB { return gdb.Order("start_offset ASC") }).
		Preload("Stops").
		Where("id = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("session: not found: %s", id)
		}
		return nil, fmt.Errorf("session: get %s: %w", id, err)
	}
	return &s, nil
}

// Rename sets the custom title on a finished session. Metadata-only.
func (l *Ledger) Rename(id, title string) error {
	result := l.gdb.Model(&models.Session{}).Where("id = ?", id).Update("custom_title", title)
	if result.Error != nil {
		return fmt.Errorf("session: rename %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session: not found: %s", id)
	}
	return nil
}

// Delete removes a session and returns the removed value so the caller can
// clean up associated media files. Returns false when the id is unknown
// (including a second delete of the same id). Deleting the session held in
// the active slot clears the slot, so later appends don't resurrect it.
func (l *Ledger) Delete(id string) (*models.Session, bool) {
	s, err := l.Get(id)
	if err != nil {
		return nil, false
	}

	err = l.gdb.Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{
			&models.RouteSample{}, &models.Waypoint{},
			&models.TranscriptSegment{}, &models.Stop{},
		} {
			if err := tx.Where("session_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Session{}, "id = ?", id).Error
	})
	if err != nil {
		log.Printf("session: delete %s: %v", id, err)
		return nil, false
	}

	l.mu.Lock()
	if l.active != nil && l.active.ID == id {
		l.active = nil
	}
	l.mu.Unlock()
	return s, true
}

// AttachTranscript stores recognizer output on a finished session.
func (l *Ledger) AttachTranscript(id, fullText string, segments []models.TranscriptSegment) error {
	if _, err := l.Get(id); err != nil {
		return err
	}
	return l.gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Session{}).Where("id = ?", id).
			Update("transcript_text", fullText).Error; err != nil {
			return fmt.Errorf("session: attach transcript %s: %w", id, err)
		}
		if err := tx.Where("session_id = ?", id).Delete(&models.TranscriptSegment{}).Error; err != nil {
			return err
		}
		for i := range segments {
			segments[i].ID = 0
			segments[i].SessionID = id
		}
		if len(segments) == 0 {
			return nil
		}
		return tx.Create(&segments).Error
	})
}
