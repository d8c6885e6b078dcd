package export

import (
	"errors"
	"fmt"
)

// Reason classifies a failed or aborted export.
type Reason string

const (
	ReasonUnsupportedPlatform Reason = "unsupported_platform" // ffmpeg not available
	ReasonMissingRouteData    Reason = "missing_route_data"   // fewer than two samples
	ReasonWriterCreate        Reason = "writer_create_failed"
	ReasonAudioFileMissing    Reason = "audio_file_missing"
	ReasonCancelled           Reason = "cancelled"
	ReasonComposition         Reason = "composition_failed" // audio/video mux failed
)

// Error carries the failure reason alongside the underlying cause, so
// callers can branch on Reason without string matching.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("export: %s", e.Reason)
	}
	return fmt.Sprintf("export: %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonOf extracts the export reason from err, or "" when err is not an
// export error.
func ReasonOf(err error) Reason {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Reason
	}
	return ""
}

func fail(reason Reason, err error) *Error {
	return &Error{Reason: reason, Err: err}
}
