package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfolsom/drivelog/internal/geo"
)

func newListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runList(cmd *cobra.Command, configPath string) error {
	_, ledger, err := ledgerFromConfig(configPath)
	if err != nil {
		return err
	}

	sessions, err := ledger.Sessions()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTITLE\tSTARTED\tDURATION\tAUDIO\tID")
	for _, s := range sessions {
		duration := formatDuration(s.Duration())
		if s.IsActive() {
			duration = "active"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			s.SequenceNumber,
			truncate(s.Title(), 30),
			s.StartedAt.Format("2006-01-02 15:04"),
			duration,
			yesNo(s.AudioEnabled),
			s.ID,
		)
	}
	return w.Flush()
}

func newShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runShow(cmd *cobra.Command, configPath, id string) error {
	_, ledger, err := ledgerFromConfig(configPath)
	if err != nil {
		return err
	}

	s, err := ledger.Get(id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", s.Title(), s.ID)
	fmt.Fprintf(out, "Started:   %s\n", s.StartedAt.Format(time.RFC1123))
	if s.EndedAt != nil {
		fmt.Fprintf(out, "Ended:     %s\n", s.EndedAt.Format(time.RFC1123))
	}
	fmt.Fprintf(out, "Duration:  %s\n", formatDuration(s.Duration()))
	fmt.Fprintf(out, "Route:     %d fixes, %s\n",
		len(s.RouteSamples), formatDistance(geo.TotalDistance(s.RouteSamples)))
	if s.AmountPaid != nil {
		fmt.Fprintf(out, "Paid:      %.2f\n", *s.AmountPaid)
	}
	if s.NoteRef != "" {
		fmt.Fprintf(out, "Note:      %s\n", s.NoteRef)
	}
	if s.AudioFileRef != "" {
		fmt.Fprintf(out, "Audio:     %s\n", s.AudioFileRef)
	}
	if len(s.Waypoints) > 0 {
		fmt.Fprintf(out, "Waypoints: %d\n", len(s.Waypoints))
	}
	if len(s.Stops) > 0 {
		fmt.Fprintf(out, "Stops:     %d\n", len(s.Stops))
		for _, stop := range s.Stops {
			fmt.Fprintf(out, "  %s for %s at (%.5f, %.5f)\n",
				stop.StartedAt.Format("15:04:05"),
				formatDuration(stop.EndedAt.Sub(stop.StartedAt)),
				stop.Latitude, stop.Longitude)
		}
	}
	if s.TranscriptText != "" {
		fmt.Fprintf(out, "Transcript: %s\n", truncate(s.TranscriptText, 200))
	}
	return nil
}

func newRenameCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rename <session-id> <title>",
		Short: "Set a session's custom title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRename(cmd, configPath, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runRename(cmd *cobra.Command, configPath, id, title string) error {
	_, ledger, err := ledgerFromConfig(configPath)
	if err != nil {
		return err
	}
	if err := ledger.Rename(id, title); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", id, title)
	return nil
}

func newDeleteCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its media",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, configPath, args[0], yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDelete(cmd *cobra.Command, configPath, id string, skipConfirm bool) error {
	cfg, ledger, err := ledgerFromConfig(configPath)
	if err != nil {
		return err
	}

	s, err := ledger.Get(id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !skipConfirm {
		if !confirm(cmd, fmt.Sprintf("This will permanently delete %s and its media.", s.Title())) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	removed, ok := ledger.Delete(id)
	if !ok {
		return fmt.Errorf("delete %s failed", id)
	}

	if removed.AudioFileRef != "" {
		media, err := mediaFromConfig(cfg)
		if err == nil {
			if err := media.Remove(removed.AudioFileRef); err != nil {
				fmt.Fprintf(out, "Warning: could not remove %s: %v\n", removed.AudioFileRef, err)
			}
		}
	}

	fmt.Fprintf(out, "Deleted %s\n", removed.Title())
	return nil
}
