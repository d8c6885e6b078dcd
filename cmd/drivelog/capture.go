package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfolsom/drivelog/internal/config"
	"github.com/mfolsom/drivelog/internal/geo"
	"github.com/mfolsom/drivelog/internal/models"
	"github.com/mfolsom/drivelog/internal/notify"
	"github.com/mfolsom/drivelog/internal/storage"
)

func newStartCmd() *cobra.Command {
	var (
		configPath string
		noRoute    bool
		audio      bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new practice session",
		Long:  "Starts a new session. Route tracking is on by default; --audio marks the session for voice capture so waypoints are derived on finish.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, configPath, !noRoute, audio)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().BoolVar(&noRoute, "no-route", false, "disable route tracking for this session")
	cmd.Flags().BoolVar(&audio, "audio", false, "session has an audio recording")
	return cmd
}

func runStart(cmd *cobra.Command, configPath string, routeTracking, audio bool) error {
	_, ledger, err := ledgerFromConfig(configPath)
	if err != nil {
		return err
	}

	if !ledger.Start(routeTracking, audio) {
		active := ledger.Active()
		return fmt.Errorf("session %q is already running — finish it first", active.Title())
	}
	if audio {
		ledger.MarkAudioStarted(time.Now())
	}

	s := ledger.Active()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Started %s (%s)\n", s.Title(), s.ID)
	if !routeTracking {
		fmt.Fprintln(out, "Route tracking is off for this session.")
	}
	return nil
}

func newSampleCmd() *cobra.Command {
	var (
		configPath string
		at         string
	)

	cmd := &cobra.Command{
		Use:   "sample <lat> <lon>",
		Short: "Append a single location fix to the active session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSample(cmd, configPath, args[0], args[1], at)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&at, "at", "", "fix timestamp (RFC3339, default now)")
	return cmd
}

func runSample(cmd *cobra.Command, configPath, latArg, lonArg, at string) error {
	lat, err := strconv.ParseFloat(latArg, 64)
	if err != nil {
		return fmt.Errorf("parse latitude %q: %w", latArg, err)
	}
	lon, err := strconv.ParseFloat(lonArg, 64)
	if err != nil {
		return fmt.Errorf("parse longitude %q: %w", lonArg, err)
	}

	ts := time.Now()
	if at != "" {
		ts, err = time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", at, err)
		}
	}

	_, ledger, err := ledgerFromConfig(configPath)
	if err != nil {
		return err
	}
	if ledger.Active() == nil {
		return fmt.Errorf("no active session — run \"drivelog start\" first")
	}

	ledger.AppendRouteSample(models.RouteSample{Timestamp: ts, Latitude: lat, Longitude: lon})
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded fix %d\n", len(ledger.Active().RouteSamples))
	return nil
}

func newTrackCmd() *cobra.Command {
	var (
		configPath string
		file       string
	)

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Replay a CSV of location fixes into the active session",
		Long: `Reads "timestamp,lat,lon" lines (RFC3339 timestamps) and appends them to
the active session. Fixes are throttled producer-side: a fix is emitted only
once it is far enough (distance) or late enough (interval) past the previous
emitted fix.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrack(cmd, configPath, file)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file of fixes (required)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func runTrack(cmd *cobra.Command, configPath, file string) error {
	cfg, ledger, err := ledgerFromConfig(configPath)
	if err != nil {
		return err
	}
	if ledger.Active() == nil {
		return fmt.Errorf("no active session — run \"drivelog start\" first")
	}

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open track file: %w", err)
	}
	defer f.Close()

	read, emitted := 0, 0
	var last *models.RouteSample

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		sample, err := parseTrackLine(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", read+1, err)
		}
		read++

		if !shouldEmit(last, &sample, cfg.Capture) {
			continue
		}
		ledger.AppendRouteSample(sample)
		s := sample
		last = &s
		emitted++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read track file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Replayed %d fixes (%d emitted after throttling)\n", read, emitted)
	return nil
}

// parseTrackLine parses one "timestamp,lat,lon" CSV line.
func parseTrackLine(line string) (models.RouteSample, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return models.RouteSample{}, fmt.Errorf("want timestamp,lat,lon, got %d fields", len(parts))
	}

	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[0]))
	if err != nil {
		return models.RouteSample{}, fmt.Errorf("parse timestamp: %w", err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.RouteSample{}, fmt.Errorf("parse latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return models.RouteSample{}, fmt.Errorf("parse longitude: %w", err)
	}
	return models.RouteSample{Timestamp: ts, Latitude: lat, Longitude: lon}, nil
}

// shouldEmit applies the producer-side throttle: the first fix always goes
// through, later ones once they are far enough or late enough past the last
// emitted fix.
func shouldEmit(last, next *models.RouteSample, capture config.CaptureConfig) bool {
	if last == nil {
		return true
	}
	if geo.Distance(last.Latitude, last.Longitude, next.Latitude, next.Longitude) >= capture.MinSampleDistanceMeters {
		return true
	}
	return next.Timestamp.Sub(last.Timestamp).Seconds() >= capture.MinSampleIntervalSecs
}

func newStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runStatus(cmd *cobra.Command, configPath string) error {
	_, ledger, err := ledgerFromConfig(configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	s := ledger.Active()
	if s == nil {
		fmt.Fprintln(out, "No active session.")
		return nil
	}

	fmt.Fprintf(out, "%s (%s)\n", s.Title(), s.ID)
	fmt.Fprintf(out, "Started:  %s\n", s.StartedAt.Format(time.RFC1123))
	fmt.Fprintf(out, "Elapsed:  %s\n", formatDuration(time.Since(s.StartedAt)))
	fmt.Fprintf(out, "Fixes:    %d (%s)\n", len(s.RouteSamples), formatDistance(geo.TotalDistance(s.RouteSamples)))
	fmt.Fprintf(out, "Audio:    %s\n", yesNo(s.AudioEnabled))
	return nil
}

func newFinishCmd() *cobra.Command {
	var (
		configPath string
		paid       float64
		note       string
		audioFile  string
	)

	cmd := &cobra.Command{
		Use:   "finish",
		Short: "Finish the active session",
		Long:  "Ends the active session, derives waypoints and stops, and writes it to history. --audio-file moves a recording into the media tree and attaches it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var paidPtr *float64
			if cmd.Flags().Changed("paid") {
				paidPtr = &paid
			}
			return runFinish(cmd, configPath, paidPtr, note, audioFile)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().Float64Var(&paid, "paid", 0, "amount paid for the session")
	cmd.Flags().StringVar(&note, "note", "", "note reference to attach")
	cmd.Flags().StringVar(&audioFile, "audio-file", "", "path to the session's audio recording")
	return cmd
}

func runFinish(cmd *cobra.Command, configPath string, paid *float64, note, audioFile string) error {
	cfg, ledger, err := ledgerFromConfig(configPath)
	if err != nil {
		return err
	}

	audioRef := ""
	if audioFile != "" {
		media, err := mediaFromConfig(cfg)
		if err != nil {
			return err
		}
		audioRef, err = media.Place(storage.DirAudio, audioFile, "")
		if err != nil {
			return err
		}
	}

	s, ok := ledger.Finish(paid, note, audioRef)
	if !ok {
		return fmt.Errorf("no active session to finish")
	}

	out := cmd.OutOrStdout()
	distance := geo.TotalDistance(s.RouteSamples)
	fmt.Fprintf(out, "Finished %s: %s, %s, %d fixes\n",
		s.Title(), formatDuration(s.Duration()), formatDistance(distance), len(s.RouteSamples))
	if len(s.Waypoints) > 0 {
		fmt.Fprintf(out, "Waypoints: %d\n", len(s.Waypoints))
	}
	if len(s.Stops) > 0 {
		fmt.Fprintf(out, "Stops: %d\n", len(s.Stops))
	}

	if n := notifierFromConfig(cfg); n != nil {
		ctx := context.Background()
		if err := n.Connect(ctx); err == nil {
			n.Send(ctx, notify.SessionFinished(s, distance))
		}
		n.Close()
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
