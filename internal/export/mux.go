package export

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// muxAudio combines the video-only file with the session's audio track into
// dst. -shortest trims to whichever track ends first, so a recording that
// ran past the route (or stopped early) never desyncs the output.
func muxAudio(ctx context.Context, binary, videoPath, audioPath, dst string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary,
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		"-movflags", "+faststart",
		dst,
	)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 10 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("export: mux audio: %w: %s", err, lastLine(stderr.Bytes()))
	}
	return nil
}

// lastLine extracts the trailing non-empty line of ffmpeg's stderr, which
// carries the actual error message.
func lastLine(out []byte) string {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	if len(lines) == 0 {
		return ""
	}
	return string(bytes.TrimSpace(lines[len(lines)-1]))
}
