// Package export drives the session video pipeline: render frames, feed
// them through a bounded media writer into an H.264 encoder, then mux the
// session audio when present. One Exporter handles one export run.
package export

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/mfolsom/drivelog/internal/models"
	"github.com/mfolsom/drivelog/internal/render"
)

// State tracks where an export run is in its lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateWriting   State = "writing"
	StateMuxing    State = "muxing"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// minFPS is the floor applied to the configured frame rate.
const minFPS = 24

// Options configures a single export run.
type Options struct {
	OutDir       string      // destination directory for the finished MP4
	Width        int         // canvas width, default 1080
	Height       int         // canvas height, default 1920
	FPS          int         // floored at 24
	FFmpegBinary string      // default "ffmpeg"
	Background   image.Image // optional map snapshot raster
	AudioPath    string      // resolved audio file path; empty skips muxing
	OnProgress   func(float64)
}

type writerFactory func(ctx context.Context, binary, dst string, width, height, fps int) (MediaWriter, error)
type muxFunc func(ctx context.Context, binary, videoPath, audioPath, dst string) error

// Exporter runs the pipeline for one session. State and Progress are safe
// to read from other goroutines while Run is in flight.
type Exporter struct {
	opts      Options
	newWriter writerFactory
	mux       muxFunc

	mu       sync.Mutex
	state    State
	progress float64
}

// New builds an Exporter with defaults applied.
func New(opts Options) *Exporter {
	if opts.Width <= 0 {
		opts.Width = 1080
	}
	if opts.Height <= 0 {
		opts.Height = 1920
	}
	if opts.FPS < minFPS {
		opts.FPS = minFPS
	}
	if opts.FFmpegBinary == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	return &Exporter{
		opts:      opts,
		newWriter: newFFmpegWriter,
		mux:       muxAudio,
		state:     StateIdle,
	}
}

// State returns the current lifecycle state.
func (e *Exporter) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Progress returns the last reported fraction in [0, 1].
func (e *Exporter) Progress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress
}

func (e *Exporter) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Exporter) report(p float64) {
	e.mu.Lock()
	e.progress = p
	fn := e.opts.OnProgress
	e.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// Run exports the session and returns the path of the finished MP4. On any
// non-success exit the in-progress temp file is removed and the returned
// error carries an export Reason.
func (e *Exporter) Run(ctx context.Context, s *models.Session) (string, error) {
	if _, err := exec.LookPath(e.opts.FFmpegBinary); err != nil {
		return "", e.failed(ReasonUnsupportedPlatform, err)
	}
	if len(s.RouteSamples) < 2 {
		return "", e.failed(ReasonMissingRouteData, fmt.Errorf("%d route samples", len(s.RouteSamples)))
	}

	withAudio := e.opts.AudioPath != ""
	if withAudio {
		if _, err := os.Stat(e.opts.AudioPath); err != nil {
			return "", e.failed(ReasonAudioFileMissing, err)
		}
	}

	r := render.New(s, e.opts.Width, e.opts.Height, e.opts.Background)

	duration := s.Duration().Seconds()
	if duration < 1 {
		duration = 1
	}
	total := frameCount(duration, e.opts.FPS)

	outPath := filepath.Join(e.opts.OutDir, "session-video-"+uuid.NewString()+".mp4")
	if err := os.Remove(outPath); err != nil && !os.IsNotExist(err) {
		return "", e.failed(ReasonWriterCreate, err)
	}
	videoPath := outPath + ".tmp.mp4"

	writer, err := e.newWriter(ctx, e.opts.FFmpegBinary, videoPath, e.opts.Width, e.opts.Height, e.opts.FPS)
	if err != nil {
		return "", e.failed(ReasonWriterCreate, err)
	}

	e.setState(StateWriting)
	e.report(0)

	// Frame progress fills [0, 0.5] when a mux step follows, [0, 0.95]
	// otherwise.
	frameSpan := 0.95
	if withAudio {
		frameSpan = 0.5
	}

	for i := 0; i < total; i++ {
		select {
		case <-ctx.Done():
			writer.Abort()
			os.Remove(videoPath)
			return "", e.cancelled(ctx.Err())
		default:
		}

		if !writer.Ready() {
			writer.Abort()
			os.Remove(videoPath)
			return "", e.failed(ReasonComposition, fmt.Errorf("encoder stopped accepting frames"))
		}

		t := math.Min(float64(i)/float64(e.opts.FPS), duration)
		if err := writer.WriteFrame(ctx, r.Frame(t)); err != nil {
			writer.Abort()
			os.Remove(videoPath)
			if ctx.Err() != nil {
				return "", e.cancelled(ctx.Err())
			}
			return "", e.failed(ReasonComposition, err)
		}

		e.report(float64(i+1) / float64(total) * frameSpan)
	}

	if err := ctx.Err(); err != nil {
		writer.Abort()
		os.Remove(videoPath)
		return "", e.cancelled(err)
	}

	if err := writer.Finalize(ctx); err != nil {
		os.Remove(videoPath)
		if ctx.Err() != nil {
			return "", e.cancelled(ctx.Err())
		}
		return "", e.failed(ReasonComposition, err)
	}

	if !withAudio {
		if err := os.Rename(videoPath, outPath); err != nil {
			os.Remove(videoPath)
			return "", e.failed(ReasonComposition, err)
		}
		e.report(0.95)
		e.setState(StateCompleted)
		e.report(1)
		return outPath, nil
	}

	e.setState(StateMuxing)
	e.report(0.6)

	if err := e.mux(ctx, e.opts.FFmpegBinary, videoPath, e.opts.AudioPath, outPath); err != nil {
		os.Remove(videoPath)
		os.Remove(outPath)
		if ctx.Err() != nil {
			return "", e.cancelled(ctx.Err())
		}
		return "", e.failed(ReasonComposition, err)
	}
	os.Remove(videoPath)
	e.report(0.95)

	e.setState(StateCompleted)
	e.report(1)
	return outPath, nil
}

func (e *Exporter) failed(reason Reason, err error) error {
	e.setState(StateFailed)
	return fail(reason, err)
}

func (e *Exporter) cancelled(err error) error {
	e.setState(StateCancelled)
	return fail(ReasonCancelled, err)
}

// frameCount derives the number of frames for a run: every second of the
// session at the target rate, and never less than one full second of video.
func frameCount(duration float64, fps int) int {
	n := int(math.Ceil(duration * float64(fps)))
	if n < fps {
		n = fps
	}
	return n
}
