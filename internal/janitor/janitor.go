// Package janitor removes leftovers from interrupted work on a cron
// schedule: temp files from aborted exports and audio captures no session
// references anymore.
package janitor

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/mfolsom/drivelog/internal/models"
	"github.com/mfolsom/drivelog/internal/storage"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Janitor sweeps the media tree on a schedule.
type Janitor struct {
	media  *storage.Media
	gdb    *gorm.DB
	sched  cron.Schedule
	maxAge time.Duration
}

// New validates the cron expression and builds a janitor. maxAge is how old
// a temp or orphaned file must be before it is removed.
func New(media *storage.Media, gdb *gorm.DB, schedule string, maxAge time.Duration) (*Janitor, error) {
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("janitor: parse schedule %q: %w", schedule, err)
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("janitor: max age must be positive")
	}
	return &Janitor{media: media, gdb: gdb, sched: sched, maxAge: maxAge}, nil
}

// Run sweeps at every scheduled fire time until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	for {
		next := j.sched.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			removed, err := j.Sweep(time.Now())
			if err != nil {
				log.Printf("janitor: sweep: %v", err)
			} else if removed > 0 {
				log.Printf("janitor: removed %d stale files", removed)
			}
		}
	}
}

// Sweep removes stale export temp files and orphaned audio, returning how
// many files were deleted. now is injectable so cutoffs are testable.
func (j *Janitor) Sweep(now time.Time) (int, error) {
	cutoff := now.Add(-j.maxAge)

	removed, err := j.sweepExportTemps(cutoff)
	if err != nil {
		return removed, err
	}

	n, err := j.sweepOrphanedAudio(cutoff)
	removed += n
	return removed, err
}

// sweepExportTemps deletes intermediate export files (".tmp" in the name)
// older than the cutoff.
func (j *Janitor) sweepExportTemps(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(j.media.Dir(storage.DirExports))
	if err != nil {
		return 0, fmt.Errorf("janitor: read exports dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), ".tmp") {
			continue
		}
		if j.removeOlder(filepath.Join(storage.DirExports, entry.Name()), entry, cutoff) {
			removed++
		}
	}
	return removed, nil
}

// sweepOrphanedAudio deletes audio files no session references, once they
// are older than the cutoff.
func (j *Janitor) sweepOrphanedAudio(cutoff time.Time) (int, error) {
	var refs []string
	if err := j.gdb.Model(&models.Session{}).
		Where("audio_file_ref <> ''").
		Pluck("audio_file_ref", &refs).Error; err != nil {
		return 0, fmt.Errorf("janitor: load audio refs: %w", err)
	}

	referenced := make(map[string]bool, len(refs))
	for _, ref := range refs {
		referenced[filepath.Base(ref)] = true
	}

	entries, err := os.ReadDir(j.media.Dir(storage.DirAudio))
	if err != nil {
		return 0, fmt.Errorf("janitor: read audio dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || referenced[entry.Name()] {
			continue
		}
		if j.removeOlder(filepath.Join(storage.DirAudio, entry.Name()), entry, cutoff) {
			removed++
		}
	}
	return removed, nil
}

// removeOlder deletes the ref when its modification time precedes cutoff.
func (j *Janitor) removeOlder(ref string, entry os.DirEntry, cutoff time.Time) bool {
	info, err := entry.Info()
	if err != nil || !info.ModTime().Before(cutoff) {
		return false
	}
	if err := j.media.Remove(ref); err != nil {
		log.Printf("janitor: %v", err)
		return false
	}
	log.Printf("janitor: removed %s", ref)
	return true
}
