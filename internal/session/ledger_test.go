package session

import (
	"testing"
	"time"

	"github.com/mfolsom/drivelog/internal/config"
	"github.com/mfolsom/drivelog/internal/db"
	"github.com/mfolsom/drivelog/internal/models"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	gdb, err := db.ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	l, err := NewLedger(gdb, config.CaptureConfig{
		StopRadiusMeters:    25,
		StopMinDurationSecs: 120,
	})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return l
}

func fix(ts time.Time, lat, lon float64) models.RouteSample {
	return models.RouteSample{Timestamp: ts, Latitude: lat, Longitude: lon}
}

func TestNewLedger_NilDB(t *testing.T) {
	if _, err := NewLedger(nil, config.CaptureConfig{}); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestStart_OnlyOneActive(t *testing.T) {
	l := testLedger(t)

	if !l.Start(true, false) {
		t.Fatal("first Start should succeed")
	}
	if l.Start(true, false) {
		t.Error("second Start should be a no-op")
	}

	active := l.Active()
	if active == nil || active.SequenceNumber != 1 {
		t.Fatalf("active = %+v", active)
	}
	if !active.IsActive() {
		t.Error("active session should have nil EndedAt")
	}
}

func TestSequenceNumber_CountsHistory(t *testing.T) {
	l := testLedger(t)

	l.Start(true, false)
	l.Finish(nil, "", "")

	l.Start(true, false)
	s, ok := l.Finish(nil, "", "")
	if !ok || s.SequenceNumber != 2 {
		t.Errorf("second session sequence = %d, want 2", s.SequenceNumber)
	}
}

func TestAppendRouteSample_IdentityProperty(t *testing.T) {
	l := testLedger(t)
	l.Start(true, false)

	base := time.Now()
	want := make([]models.RouteSample, 0, 10)
	for i := 0; i < 10; i++ {
		s := fix(base.Add(time.Duration(i)*time.Second), 52.5+float64(i)*0.001, 13.4)
		want = append(want, s)
		l.AppendRouteSample(s)
	}

	got := l.Active().RouteSamples
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range got {
		if !got[i].Timestamp.Equal(want[i].Timestamp) || got[i].Latitude != want[i].Latitude {
			t.Errorf("sample %d = %+v, want %+v", i, got[i], want[i])
		}
		if got[i].Seq != i {
			t.Errorf("sample %d Seq = %d", i, got[i].Seq)
		}
	}
}

func TestAppendRouteSample_RejectsBackwardsTimestamp(t *testing.T) {
	l := testLedger(t)
	l.Start(true, false)

	base := time.Now()
	l.AppendRouteSample(fix(base, 52.5, 13.4))
	l.AppendRouteSample(fix(base.Add(10*time.Second), 52.6, 13.4))
	l.AppendRouteSample(fix(base.Add(5*time.Second), 52.7, 13.4)) // out of order

	got := l.Active().RouteSamples
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (backwards sample dropped)", len(got))
	}

	// Equal timestamps are tolerated (non-decreasing contract).
	l.AppendRouteSample(fix(base.Add(10*time.Second), 52.8, 13.4))
	if got := l.Active().RouteSamples; len(got) != 3 {
		t.Errorf("len = %d, want 3 (duplicate timestamp kept)", len(got))
	}
}

func TestAppendRouteSample_Guards(t *testing.T) {
	l := testLedger(t)

	// No active session: silent no-op, never a panic.
	l.AppendRouteSample(fix(time.Now(), 52.5, 13.4))

	// Route tracking disabled.
	l.Start(false, true)
	l.AppendRouteSample(fix(time.Now(), 52.5, 13.4))
	if got := l.Active().RouteSamples; len(got) != 0 {
		t.Errorf("samples appended with tracking disabled: %d", len(got))
	}
}

func TestAudioMutators_NoActiveSession(t *testing.T) {
	l := testLedger(t)
	l.MarkAudioStarted(time.Now())
	l.SetAudioFileRef("Audio/x.m4a")
	l.MarkEnded()
	if l.Active() != nil {
		t.Error("no session should exist")
	}
}

func TestMarkEnded_KeepsActiveSlot(t *testing.T) {
	l := testLedger(t)
	l.Start(true, false)
	l.MarkEnded()

	active := l.Active()
	if active == nil {
		t.Fatal("session should remain in active slot until Finish")
	}
	if active.EndedAt == nil {
		t.Error("EndedAt should be set")
	}
}

func TestFinish_NoActiveSession(t *testing.T) {
	l := testLedger(t)

	if _, ok := l.Finish(nil, "", ""); ok {
		t.Error("Finish with no active session should return false")
	}
	sessions, err := l.Sessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Error("history should be unchanged")
	}
}

func TestFinish_PersistsAndClears(t *testing.T) {
	l := testLedger(t)
	l.Start(true, true)

	base := time.Now()
	l.MarkAudioStarted(base)
	for i := 0; i < 5; i++ {
		l.AppendRouteSample(fix(base.Add(time.Duration(i*40)*time.Second), 52.5+float64(i)*0.01, 13.4))
	}

	paid := 55.0
	s, ok := l.Finish(&paid, "note-1", "Audio/rec.m4a")
	if !ok {
		t.Fatal("Finish should succeed")
	}
	if l.Active() != nil {
		t.Error("active slot should be cleared")
	}
	if s.AudioFileRef != "Audio/rec.m4a" || s.NoteRef != "note-1" || *s.AmountPaid != 55.0 {
		t.Errorf("metadata not attached: %+v", s)
	}
	if len(s.Waypoints) == 0 {
		t.Error("waypoints should be synthesized for audio sessions")
	}

	loaded, err := l.Get(s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(loaded.RouteSamples) != 5 {
		t.Errorf("persisted samples = %d, want 5", len(loaded.RouteSamples))
	}
	if len(loaded.Waypoints) != len(s.Waypoints) {
		t.Errorf("persisted waypoints = %d, want %d", len(loaded.Waypoints), len(s.Waypoints))
	}
}

func TestFinish_NoAudioNoWaypoints(t *testing.T) {
	l := testLedger(t)
	l.Start(true, false)
	base := time.Now()
	for i := 0; i < 5; i++ {
		l.AppendRouteSample(fix(base.Add(time.Duration(i*40)*time.Second), 52.5, 13.4))
	}

	s, ok := l.Finish(nil, "", "")
	if !ok {
		t.Fatal("Finish should succeed")
	}
	if len(s.Waypoints) != 0 {
		t.Errorf("waypoints = %d, want 0 without audio", len(s.Waypoints))
	}
}

func TestRename(t *testing.T) {
	l := testLedger(t)
	l.Start(true, false)
	s, _ := l.Finish(nil, "", "")

	if err := l.Rename(s.ID, "Night drive"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	loaded, err := l.Get(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.CustomTitle != "Night drive" {
		t.Errorf("CustomTitle = %q", loaded.CustomTitle)
	}

	if err := l.Rename("no-such-id", "x"); err == nil {
		t.Error("rename of unknown id should fail")
	}
}

func TestDelete_ReturnsRemovedValueOnce(t *testing.T) {
	l := testLedger(t)
	l.Start(true, false)
	l.AppendRouteSample(fix(time.Now(), 52.5, 13.4))
	s, _ := l.Finish(nil, "", "")

	removed, ok := l.Delete(s.ID)
	if !ok || removed == nil {
		t.Fatal("first delete should return the removed session")
	}
	if len(removed.RouteSamples) != 1 {
		t.Errorf("removed value samples = %d, want 1", len(removed.RouteSamples))
	}

	sessions, err := l.Sessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Error("deleted session still in history")
	}

	if _, ok := l.Delete(s.ID); ok {
		t.Error("second delete of the same id should return false")
	}
}

func TestDelete_ActiveSessionClearsSlot(t *testing.T) {
	l := testLedger(t)
	l.Start(true, false)
	id := l.Active().ID

	if _, ok := l.Delete(id); !ok {
		t.Fatal("delete of the active session should succeed")
	}
	if l.Active() != nil {
		t.Error("active slot should be cleared")
	}

	// Appends after the delete are no-ops and persist nothing.
	l.AppendRouteSample(fix(time.Now(), 52.5, 13.4))
	var count int64
	if err := l.gdb.Model(&models.RouteSample{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("samples persisted for deleted session: %d", count)
	}

	// A fresh start works normally.
	if !l.Start(true, false) {
		t.Error("Start should succeed after the active session was deleted")
	}
}

func TestActive_SnapshotDoesNotAlias(t *testing.T) {
	l := testLedger(t)
	l.Start(true, false)
	l.AppendRouteSample(fix(time.Now(), 52.5, 13.4))

	snap := l.Active()
	snap.RouteSamples[0].Latitude = 0

	if l.Active().RouteSamples[0].Latitude != 52.5 {
		t.Error("snapshot mutation leaked into ledger state")
	}
}

func TestLedger_RestoresActiveAcrossInstances(t *testing.T) {
	l := testLedger(t)
	l.Start(true, true)

	base := time.Now()
	l.MarkAudioStarted(base)
	l.AppendRouteSample(fix(base, 52.5, 13.4))
	l.AppendRouteSample(fix(base.Add(10*time.Second), 52.51, 13.4))

	// A second ledger over the same store picks up the in-flight session,
	// the way a fresh CLI invocation does.
	l2, err := NewLedger(l.gdb, l.capture)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	active := l2.Active()
	if active == nil {
		t.Fatal("active session not restored")
	}
	if len(active.RouteSamples) != 2 {
		t.Fatalf("restored samples = %d, want 2", len(active.RouteSamples))
	}
	if active.AudioStartedAt == nil {
		t.Error("audio anchor not restored")
	}
	if l2.Start(true, false) {
		t.Error("Start should refuse while a restored session is active")
	}

	// Appending through the restored ledger continues the Seq chain.
	l2.AppendRouteSample(fix(base.Add(20*time.Second), 52.52, 13.4))
	if got := l2.Active().RouteSamples; got[2].Seq != 2 {
		t.Errorf("restored append Seq = %d, want 2", got[2].Seq)
	}

	s, ok := l2.Finish(nil, "", "")
	if !ok {
		t.Fatal("Finish via restored ledger should succeed")
	}
	loaded, err := l2.Get(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.RouteSamples) != 3 {
		t.Errorf("persisted samples = %d, want 3", len(loaded.RouteSamples))
	}
	if loaded.EndedAt == nil {
		t.Error("EndedAt not persisted")
	}
}

func TestAttachTranscript(t *testing.T) {
	l := testLedger(t)
	l.Start(true, true)
	l.MarkAudioStarted(time.Now())
	s, _ := l.Finish(nil, "", "")

	segments := []models.TranscriptSegment{
		{StartOffset: 0, Duration: 2.5, Text: "check mirrors"},
		{StartOffset: 4, Duration: 1.5, Text: "signal left"},
	}
	if err := l.AttachTranscript(s.ID, "check mirrors signal left", segments); err != nil {
		t.Fatalf("attach: %v", err)
	}

	loaded, err := l.Get(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.TranscriptText != "check mirrors signal left" {
		t.Errorf("TranscriptText = %q", loaded.TranscriptText)
	}
	if len(loaded.TranscriptSegments) != 2 {
		t.Errorf("segments = %d, want 2", len(loaded.TranscriptSegments))
	}

	if err := l.AttachTranscript("no-such-id", "x", nil); err == nil {
		t.Error("attach to unknown id should fail")
	}
}
