package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mfolsom/drivelog/internal/config"
	"github.com/mfolsom/drivelog/internal/models"
)

func TestCaptureLifecycle(t *testing.T) {
	cfgPath := writeTestConfig(t)
	initStore(t, cfgPath)

	out, err := runCLI(t, "start", "-c", cfgPath)
	if err != nil {
		t.Fatalf("start failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Started Session 1") {
		t.Errorf("start output = %s", out)
	}

	// Second start refuses while one is active.
	if _, err := runCLI(t, "start", "-c", cfgPath); err == nil {
		t.Error("second start should fail")
	}

	// Each sample is a fresh process in real use; each runCLI call builds
	// its own ledger, so this exercises the restore path too.
	base := time.Now().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i*10) * time.Second).Format(time.RFC3339)
		out, err = runCLI(t, "sample", "-c", cfgPath,
			fmt.Sprintf("%.4f", 52.5+float64(i)*0.01), "13.4", "--at", ts)
		if err != nil {
			t.Fatalf("sample %d failed: %v\n%s", i, err, out)
		}
	}
	if !strings.Contains(out, "Recorded fix 3") {
		t.Errorf("sample output = %s", out)
	}

	out, err = runCLI(t, "status", "-c", cfgPath)
	if err != nil {
		t.Fatalf("status failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Fixes:    3") {
		t.Errorf("status output = %s", out)
	}

	out, err = runCLI(t, "finish", "-c", cfgPath, "--paid", "60")
	if err != nil {
		t.Fatalf("finish failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Finished Session 1") || !strings.Contains(out, "3 fixes") {
		t.Errorf("finish output = %s", out)
	}

	// Nothing active afterwards.
	out, _ = runCLI(t, "status", "-c", cfgPath)
	if !strings.Contains(out, "No active session") {
		t.Errorf("status after finish = %s", out)
	}
}

func TestSample_NoActiveSession(t *testing.T) {
	cfgPath := writeTestConfig(t)
	initStore(t, cfgPath)

	if _, err := runCLI(t, "sample", "-c", cfgPath, "52.5", "13.4"); err == nil {
		t.Error("sample without an active session should fail")
	}
}

func TestSample_RejectsBadCoordinates(t *testing.T) {
	cfgPath := writeTestConfig(t)
	initStore(t, cfgPath)
	runCLI(t, "start", "-c", cfgPath)

	if _, err := runCLI(t, "sample", "-c", cfgPath, "not-a-number", "13.4"); err == nil {
		t.Error("bad latitude should fail")
	}
	if _, err := runCLI(t, "sample", "-c", cfgPath, "52.5", "13.4", "--at", "yesterday"); err == nil {
		t.Error("bad timestamp should fail")
	}
}

func TestStart_NoRoute(t *testing.T) {
	cfgPath := writeTestConfig(t)
	initStore(t, cfgPath)

	out, err := runCLI(t, "start", "-c", cfgPath, "--no-route")
	if err != nil {
		t.Fatalf("start failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Route tracking is off") {
		t.Errorf("start output = %s", out)
	}
}

func TestTrack_ReplaysWithThrottle(t *testing.T) {
	cfgPath := writeTestConfig(t)
	initStore(t, cfgPath)
	runCLI(t, "start", "-c", cfgPath)

	// Fixes 1s apart and ~1m apart: below both thresholds, so only the
	// first of each tight cluster survives.
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf("%s,%.6f,13.400000",
			base.Add(time.Duration(i)*time.Second).Format(time.RFC3339),
			52.5+float64(i)*0.00001))
	}
	// One far fix that clears the distance threshold immediately.
	lines = append(lines, fmt.Sprintf("%s,52.600000,13.400000",
		base.Add(11*time.Second).Format(time.RFC3339)))

	trackFile := filepath.Join(t.TempDir(), "track.csv")
	if err := os.WriteFile(trackFile, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "track", "-c", cfgPath, "-f", trackFile)
	if err != nil {
		t.Fatalf("track failed: %v\n%s", err, out)
	}
	// First fix + the 5s-interval fixes (t=5s) + the far fix.
	if !strings.Contains(out, "Replayed 11 fixes (3 emitted") {
		t.Errorf("track output = %s", out)
	}
}

func TestTrack_BadLineReported(t *testing.T) {
	cfgPath := writeTestConfig(t)
	initStore(t, cfgPath)
	runCLI(t, "start", "-c", cfgPath)

	trackFile := filepath.Join(t.TempDir(), "track.csv")
	os.WriteFile(trackFile, []byte("not,enough\n"), 0644)

	if _, err := runCLI(t, "track", "-c", cfgPath, "-f", trackFile); err == nil {
		t.Error("malformed line should fail")
	}
}

func TestShouldEmit(t *testing.T) {
	capture := config.CaptureConfig{MinSampleDistanceMeters: 8, MinSampleIntervalSecs: 5}
	base := time.Now()
	at := func(secs float64, lat float64) *models.RouteSample {
		return &models.RouteSample{
			Timestamp: base.Add(time.Duration(secs * float64(time.Second))),
			Latitude:  lat, Longitude: 13.4,
		}
	}

	if !shouldEmit(nil, at(0, 52.5), capture) {
		t.Error("first fix should always emit")
	}
	if shouldEmit(at(0, 52.5), at(1, 52.50001), capture) {
		t.Error("near fix within interval should be throttled")
	}
	if !shouldEmit(at(0, 52.5), at(6, 52.50001), capture) {
		t.Error("stale fix should emit on interval")
	}
	if !shouldEmit(at(0, 52.5), at(1, 52.51), capture) {
		t.Error("far fix should emit on distance")
	}
}

func TestFinish_AttachesAudioFile(t *testing.T) {
	cfgPath := writeTestConfig(t)
	initStore(t, cfgPath)
	runCLI(t, "start", "-c", cfgPath, "--audio")

	recording := filepath.Join(t.TempDir(), "rec.m4a")
	if err := os.WriteFile(recording, []byte("audio-bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "finish", "-c", cfgPath, "--audio-file", recording)
	if err != nil {
		t.Fatalf("finish failed: %v\n%s", err, out)
	}

	// The recording was moved into the media tree.
	if _, err := os.Stat(recording); !os.IsNotExist(err) {
		t.Error("source recording should have been moved")
	}

	listOut, _ := runCLI(t, "list", "-c", cfgPath)
	if !strings.Contains(listOut, "yes") {
		t.Errorf("list should show audio session: %s", listOut)
	}
}

func TestFinish_NoActiveSession(t *testing.T) {
	cfgPath := writeTestConfig(t)
	initStore(t, cfgPath)

	if _, err := runCLI(t, "finish", "-c", cfgPath); err == nil {
		t.Error("finish without an active session should fail")
	}
}
