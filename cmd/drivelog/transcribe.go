package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfolsom/drivelog/internal/transcribe"
)

func newTranscribeCmd() *cobra.Command {
	var (
		configPath string
		language   string
	)

	cmd := &cobra.Command{
		Use:   "transcribe <session-id>",
		Short: "Transcribe a session's audio recording",
		Long:  "Sends the session's audio through the speech recognizer and attaches the transcript. Requires the API key env var named in the config.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscribe(cmd, configPath, args[0], language)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVarP(&language, "language", "l", "", "override the configured transcript language")
	return cmd
}

func runTranscribe(cmd *cobra.Command, configPath, id, language string) error {
	cfg, ledger, err := ledgerFromConfig(configPath)
	if err != nil {
		return err
	}

	s, err := ledger.Get(id)
	if err != nil {
		return err
	}
	if s.AudioFileRef == "" {
		return fmt.Errorf("%s has no audio recording", s.Title())
	}

	media, err := mediaFromConfig(cfg)
	if err != nil {
		return err
	}

	recognizer, err := transcribe.NewWhisper(os.Getenv(cfg.Transcribe.APIKeyEnv))
	if err != nil {
		return fmt.Errorf("recognizer: %w (set %s)", err, cfg.Transcribe.APIKeyEnv)
	}

	if language == "" {
		language = cfg.Transcribe.Language
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Transcribing %s (%s)...\n", s.Title(), language)

	result, err := recognizer.Transcribe(ctx, media.Resolve(s.AudioFileRef), language)
	if err != nil {
		return err
	}

	if err := ledger.AttachTranscript(s.ID, result.Text, result.Segments); err != nil {
		return err
	}

	fmt.Fprintf(out, "Attached %d segments.\n", len(result.Segments))
	if result.Text != "" {
		fmt.Fprintln(out, truncate(result.Text, 200))
	}
	return nil
}
