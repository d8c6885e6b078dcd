// Package audio captures session voice notes. The ffmpeg implementation
// records from a system audio device into an AAC file; the ledger moves the
// finished file into the media tree.
package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// Recorder captures audio for the duration of a session.
type Recorder interface {
	// Start begins capture and returns the path of the file being written.
	Start(ctx context.Context) (string, error)
	// Stop ends capture gracefully and returns the finished file path.
	Stop() (string, error)
	// Cancel aborts capture and removes the partial file.
	Cancel()
}

// FFmpeg records through an ffmpeg subprocess. One recorder handles one
// capture at a time.
type FFmpeg struct {
	binary string
	format string // input format, e.g. "pulse" or "alsa"
	device string
	dir    string // directory for in-progress captures

	mu     sync.Mutex
	cancel context.CancelFunc
	waitCh chan error
	path   string
}

// NewFFmpeg builds a recorder. Empty arguments fall back to the ffmpeg
// binary on PATH, the pulse default device, and the system temp dir.
func NewFFmpeg(binary, format, device, dir string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	if format == "" {
		format = "pulse"
	}
	if device == "" {
		device = "default"
	}
	if dir == "" {
		dir = os.TempDir()
	}
	return &FFmpeg{binary: binary, format: format, device: device, dir: dir}
}

// Start spawns the capture subprocess. The file is not complete until Stop
// returns.
func (r *FFmpeg) Start(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return "", fmt.Errorf("audio: capture already running")
	}

	path := filepath.Join(r.dir, "capture-"+uuid.NewString()+".m4a")

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, r.binary,
		"-y",
		"-f", r.format,
		"-i", r.device,
		"-c:a", "aac",
		path,
	)
	// SIGINT makes ffmpeg finalize the container instead of truncating it.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGINT)
	}
	cmd.WaitDelay = 10 * time.Second

	if err := cmd.Start(); err != nil {
		cancel()
		return "", fmt.Errorf("audio: start capture: %w", err)
	}

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	r.cancel = cancel
	r.waitCh = waitCh
	r.path = path
	return path, nil
}

// Stop signals the subprocess to finish and waits for the file to close.
// The subprocess's exit status is ignored as long as a non-empty file was
// produced, since ffmpeg reports a non-zero status when interrupted.
func (r *FFmpeg) Stop() (string, error) {
	r.mu.Lock()
	cancel, waitCh, path := r.cancel, r.waitCh, r.path
	r.cancel, r.waitCh, r.path = nil, nil, ""
	r.mu.Unlock()

	if cancel == nil {
		return "", fmt.Errorf("audio: no capture running")
	}

	cancel()
	waitErr := <-waitCh

	info, statErr := os.Stat(path)
	if statErr != nil || info.Size() == 0 {
		os.Remove(path)
		if waitErr != nil {
			return "", fmt.Errorf("audio: capture produced no data: %w", waitErr)
		}
		return "", fmt.Errorf("audio: capture produced no data")
	}
	return path, nil
}

// Cancel aborts the capture and discards the partial file. Safe to call
// when nothing is running.
func (r *FFmpeg) Cancel() {
	r.mu.Lock()
	cancel, waitCh, path := r.cancel, r.waitCh, r.path
	r.cancel, r.waitCh, r.path = nil, nil, ""
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-waitCh
	os.Remove(path)
}
