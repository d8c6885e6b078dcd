package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfolsom/drivelog/internal/config"
	"github.com/mfolsom/drivelog/internal/dashboard"
	"github.com/mfolsom/drivelog/internal/export"
	"github.com/mfolsom/drivelog/internal/janitor"
	"github.com/mfolsom/drivelog/internal/models"
	"github.com/mfolsom/drivelog/internal/storage"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local dashboard",
		Long:  "Serves the session dashboard over HTTP and runs the scheduled media sweep until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gdb, err := openFromConfig(configPath)
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Dashboard.Port
	}

	media, err := mediaFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	j, err := janitor.New(media, gdb, cfg.Janitor.Schedule,
		time.Duration(cfg.Janitor.MaxTempAgeHr)*time.Hour)
	if err != nil {
		return err
	}
	go j.Run(ctx)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Dashboard listening on http://localhost:%d\n", port)

	hub := dashboard.NewHub()
	return dashboard.Start(ctx, dashboard.StartOpts{
		DB:      gdb,
		Hub:     hub,
		Exports: dashboard.NewRunner(hub, exportFunc(cfg, media)),
		Port:    port,
		Out:     out,
	})
}

// exportFunc adapts the export pipeline for dashboard-triggered runs,
// forwarding the exporter's state and progress to the hub.
func exportFunc(cfg *config.Config, media *storage.Media) dashboard.ExportFunc {
	return func(ctx context.Context, s *models.Session, onUpdate func(string, float64)) (string, error) {
		audioPath := ""
		if s.AudioFileRef != "" {
			audioPath = media.Resolve(s.AudioFileRef)
		}

		var e *export.Exporter
		e = export.New(export.Options{
			OutDir:       media.Dir(storage.DirExports),
			Width:        cfg.Export.Width,
			Height:       cfg.Export.Height,
			FPS:          cfg.Export.FPS,
			FFmpegBinary: cfg.Export.FFmpegBinary,
			AudioPath:    audioPath,
			OnProgress: func(p float64) {
				onUpdate(string(e.State()), p)
			},
		})
		return e.Run(ctx, s)
	}
}
