package main

import (
	"context"
	"fmt"
	"image"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfolsom/drivelog/internal/export"
	"github.com/mfolsom/drivelog/internal/geo"
	"github.com/mfolsom/drivelog/internal/mapsnap"
	"github.com/mfolsom/drivelog/internal/notify"
	"github.com/mfolsom/drivelog/internal/storage"
)

func newExportCmd() *cobra.Command {
	var (
		configPath string
		mapURL     string
		noAudio    bool
	)

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Render a session into a shareable route video",
		Long: `Renders the session's route into an MP4 under the media tree's Exports
directory. When the session has an audio recording it is muxed in unless
--no-audio is set. --map-url points at a static-map service used for the
background raster; without it the background is a plain canvas.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, configPath, args[0], mapURL, noAudio)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&mapURL, "map-url", "", "static-map service base URL for the background")
	cmd.Flags().BoolVar(&noAudio, "no-audio", false, "skip audio muxing even when a recording exists")
	return cmd
}

func runExport(cmd *cobra.Command, configPath, id, mapURL string, noAudio bool) error {
	cfg, ledger, err := ledgerFromConfig(configPath)
	if err != nil {
		return err
	}

	s, err := ledger.Get(id)
	if err != nil {
		return err
	}

	media, err := mediaFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var background image.Image
	if mapURL != "" && len(s.RouteSamples) > 0 {
		provider := mapsnap.NewHTTP(mapURL)
		background = provider.Snapshot(ctx, geo.SnapshotRegion(s.RouteSamples),
			cfg.Export.Width, cfg.Export.Height)
	}

	audioPath := ""
	if !noAudio && s.AudioFileRef != "" {
		audioPath = media.Resolve(s.AudioFileRef)
	}

	out := cmd.OutOrStdout()
	exporter := export.New(export.Options{
		OutDir:       media.Dir(storage.DirExports),
		Width:        cfg.Export.Width,
		Height:       cfg.Export.Height,
		FPS:          cfg.Export.FPS,
		FFmpegBinary: cfg.Export.FFmpegBinary,
		Background:   background,
		AudioPath:    audioPath,
		OnProgress: func(p float64) {
			fmt.Fprintf(out, "\r%3.0f%%", p*100)
		},
	})

	fmt.Fprintf(out, "Exporting %s...\n", s.Title())
	outPath, err := exporter.Run(ctx, s)
	fmt.Fprintln(out)
	if err != nil {
		if n := notifierFromConfig(cfg); n != nil {
			nctx := context.Background()
			if cerr := n.Connect(nctx); cerr == nil {
				n.Send(nctx, notify.ExportFailed(s, err))
			}
			n.Close()
		}
		return err
	}

	fmt.Fprintf(out, "Wrote %s\n", outPath)
	if n := notifierFromConfig(cfg); n != nil {
		nctx := context.Background()
		if cerr := n.Connect(nctx); cerr == nil {
			n.Send(nctx, notify.ExportCompleted(s, outPath))
		}
		n.Close()
	}
	return nil
}
