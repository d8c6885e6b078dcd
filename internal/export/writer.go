package export

import (
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// MediaWriter accepts rendered frames and produces an encoded video file.
// WriteFrame applies backpressure: it blocks while the writer's buffer is
// full, so frames are never queued without bound.
type MediaWriter interface {
	// Ready reports whether the writer is still accepting frames. It turns
	// false once the encoder has failed or shut down, so the frame loop can
	// stop rendering instead of learning from the next WriteFrame error.
	Ready() bool
	WriteFrame(ctx context.Context, frame *image.RGBA) error
	// Finalize flushes pending frames and waits for the encoder to close
	// the output file.
	Finalize(ctx context.Context) error
	// Abort stops the encoder immediately, leaving the output unusable.
	Abort()
}

// frameBufferDepth bounds in-flight frames between the render loop and the
// encoder's stdin.
const frameBufferDepth = 8

// ffmpegWriter pipes raw RGBA frames into an ffmpeg subprocess encoding
// H.264. A single goroutine drains the frame channel into stdin so the
// render loop never touches the pipe directly.
type ffmpegWriter struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdin  io.WriteCloser

	frames chan []byte
	pumpCh chan error // buffered(1), pump goroutine exit result
	waitCh chan error // buffered(1), ffmpeg exit result

	mu       sync.Mutex
	finished bool
}

// newFFmpegWriter spawns ffmpeg reading rawvideo from stdin and writing an
// MP4 to dst. The subprocess is terminated with SIGTERM on context cancel
// and force-killed after a grace period.
func newFFmpegWriter(ctx context.Context, binary, dst string, width, height, fps int) (MediaWriter, error) {
	ctx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(ctx, binary,
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", strconv.Itoa(fps),
		"-i", "-",
		"-c:v", "libx264",
		"-preset", "medium",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		dst,
	)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 10 * time.Second

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("export: open encoder stdin: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("export: start encoder: %w", err)
	}

	w := &ffmpegWriter{
		cmd:    cmd,
		cancel: cancel,
		stdin:  stdin,
		frames: make(chan []byte, frameBufferDepth),
		pumpCh: make(chan error, 1),
		waitCh: make(chan error, 1),
	}

	go w.pump()
	go func() {
		w.waitCh <- cmd.Wait()
	}()

	return w, nil
}

// pump drains the frame channel into the encoder's stdin and closes the
// pipe when the channel is closed, signalling EOF to ffmpeg.
func (w *ffmpegWriter) pump() {
	for buf := range w.frames {
		if _, err := w.stdin.Write(buf); err != nil {
			// Drain remaining frames so WriteFrame never blocks forever
			// on a dead encoder.
			for range w.frames {
			}
			w.stdin.Close()
			w.pumpCh <- fmt.Errorf("export: write frame: %w", err)
			return
		}
	}
	w.pumpCh <- w.stdin.Close()
}

func (w *ffmpegWriter) Ready() bool {
	w.mu.Lock()
	finished := w.finished
	w.mu.Unlock()
	if finished {
		return false
	}

	// A pump exit before Finalize means the encoder died mid-stream.
	select {
	case err := <-w.pumpCh:
		w.pumpCh <- err
		return false
	default:
		return true
	}
}

// WriteFrame hands the frame's pixels to the pump goroutine, blocking while
// the buffer is full. The pixel slice is copied because the renderer reuses
// nothing but callers may.
func (w *ffmpegWriter) WriteFrame(ctx context.Context, frame *image.RGBA) error {
	buf := make([]byte, len(frame.Pix))
	copy(buf, frame.Pix)

	select {
	case w.frames <- buf:
		return nil
	case err := <-w.pumpCh:
		w.pumpCh <- err
		if err == nil {
			err = fmt.Errorf("export: encoder input closed")
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finalize closes the frame channel, waits for the pump to flush, then
// waits for ffmpeg to finish writing the container.
func (w *ffmpegWriter) Finalize(ctx context.Context) error {
	w.mu.Lock()
	if w.finished {
		w.mu.Unlock()
		return nil
	}
	w.finished = true
	close(w.frames)
	w.mu.Unlock()

	select {
	case err := <-w.pumpCh:
		if err != nil {
			w.cancel()
			<-w.waitCh
			return err
		}
	case <-ctx.Done():
		w.cancel()
		<-w.waitCh
		return ctx.Err()
	}

	select {
	case err := <-w.waitCh:
		if err != nil {
			return fmt.Errorf("export: encoder exit: %w", err)
		}
		return nil
	case <-ctx.Done():
		w.cancel()
		<-w.waitCh
		return ctx.Err()
	}
}

// Abort tears the encoder down without flushing and waits for the
// subprocess to be reaped. Callers use either Finalize or Abort, not both.
func (w *ffmpegWriter) Abort() {
	w.mu.Lock()
	if w.finished {
		w.mu.Unlock()
		return
	}
	w.finished = true
	close(w.frames)
	w.mu.Unlock()

	w.cancel()
	<-w.waitCh
}
