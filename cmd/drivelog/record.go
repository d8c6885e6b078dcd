package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfolsom/drivelog/internal/audio"
	"github.com/mfolsom/drivelog/internal/config"
	"github.com/mfolsom/drivelog/internal/storage"
)

func newRecordCmd() *cobra.Command {
	var (
		configPath string
		format     string
		device     string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Capture audio for the active session until interrupted",
		Long: `Records from a system audio device into the active session. The session
must have been started with --audio. Recording runs until Ctrl-C, then the
finished file is moved into the media tree and attached to the session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runRecord(ctx, cmd, configPath, func(cfg *config.Config) audio.Recorder {
				return audio.NewFFmpeg(cfg.Export.FFmpegBinary, format, device, "")
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&format, "format", "", "capture input format (default pulse)")
	cmd.Flags().StringVar(&device, "device", "", "capture device (default the system default)")
	return cmd
}

func runRecord(ctx context.Context, cmd *cobra.Command, configPath string, newRecorder func(*config.Config) audio.Recorder) error {
	cfg, ledger, err := ledgerFromConfig(configPath)
	if err != nil {
		return err
	}

	active := ledger.Active()
	if active == nil {
		return fmt.Errorf("no active session — run \"drivelog start --audio\" first")
	}
	if !active.AudioEnabled {
		return fmt.Errorf("%s was started without --audio", active.Title())
	}
	if active.AudioFileRef != "" {
		return fmt.Errorf("%s already has a recording (%s)", active.Title(), active.AudioFileRef)
	}

	media, err := mediaFromConfig(cfg)
	if err != nil {
		return err
	}

	rec := newRecorder(cfg)
	if _, err := rec.Start(ctx); err != nil {
		return err
	}
	if active.AudioStartedAt == nil {
		ledger.MarkAudioStarted(time.Now())
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Recording for %s... press Ctrl-C to stop.\n", active.Title())
	<-ctx.Done()

	path, err := rec.Stop()
	if err != nil {
		return err
	}

	ref, err := media.Place(storage.DirAudio, path, ".m4a")
	if err != nil {
		return fmt.Errorf("keep %s and attach it with finish --audio-file: %w", path, err)
	}
	ledger.SetAudioFileRef(ref)

	fmt.Fprintf(out, "Saved recording as %s\n", ref)
	return nil
}
