package models

// TranscriptSegment is one recognized span of speech. StartOffset and
// Duration are seconds relative to the start of the audio track. Duration
// may be zero; segments are treated as a sorted-by-start sequence for
// lookup and are not guaranteed non-overlapping by the recognizer.
type TranscriptSegment struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	SessionID   string `gorm:"size:36;index"`
	StartOffset float64
	Duration    float64
	Text        string `gorm:"type:text"`
}
