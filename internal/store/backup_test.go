package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T, keep, keepRun int) (*BackupManager, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "backups")
	m := NewBackupManager(dir, keep, keepRun, nil)
	return m, dir
}

// steppingClock returns a clock advancing one second per call.
func steppingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		t := current
		current = current.Add(time.Second)
		return t
	}
}

func writeActive(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBackupManager_NoopOnMissingActive(t *testing.T) {
	m, dir := newTestManager(t, 5, 10)

	res, err := m.Snapshot(filepath.Join(t.TempDir(), "events.json"), "12")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if res != nil {
		t.Errorf("expected no backup, got %+v", res)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("backup dir should not be created for a missing store")
	}
}

func TestBackupManager_NoopOnEmptyActive(t *testing.T) {
	m, _ := newTestManager(t, 5, 10)
	res, err := m.Snapshot(writeActive(t, ""), "")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if res != nil {
		t.Errorf("expected no backup for empty store, got %+v", res)
	}
}

func TestBackupManager_SnapshotNaming(t *testing.T) {
	m, dir := newTestManager(t, 5, 10)
	m.now = func() time.Time { return time.Date(2024, 6, 1, 12, 30, 45, 0, time.UTC) }

	active := writeActive(t, `[{"event_id":"1"}]`)
	res, err := m.Snapshot(active, "42")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	wantSnap := filepath.Join(dir, "events_20240601_123045.json")
	wantRun := filepath.Join(dir, "events_run42_20240601_123045.json")
	if res.Snapshot != wantSnap {
		t.Errorf("snapshot = %s, want %s", res.Snapshot, wantSnap)
	}
	if res.RunSnapshot != wantRun {
		t.Errorf("run snapshot = %s, want %s", res.RunSnapshot, wantRun)
	}

	for _, p := range []string{wantSnap, wantRun} {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
		if string(data) != `[{"event_id":"1"}]` {
			t.Errorf("%s: unexpected contents %q", p, data)
		}
		info, _ := os.Stat(p)
		if info.Mode().Perm()&0222 != 0 {
			t.Errorf("%s: expected read-only snapshot, mode %v", p, info.Mode())
		}
	}
}

func TestBackupManager_NonNumericRunIDSkipped(t *testing.T) {
	m, _ := newTestManager(t, 5, 10)
	res, err := m.Snapshot(writeActive(t, "[]"), "local")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if res.RunSnapshot != "" {
		t.Errorf("expected no run snapshot, got %s", res.RunSnapshot)
	}
}

func TestBackupManager_SameSecondDoesNotOverwrite(t *testing.T) {
	m, _ := newTestManager(t, 5, 10)
	m.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	active := writeActive(t, "[1]")

	first, err := m.Snapshot(active, "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.Snapshot(active, "")
	if err != nil {
		t.Fatal(err)
	}
	if first.Snapshot == second.Snapshot {
		t.Errorf("expected distinct snapshots, both %s", first.Snapshot)
	}
}

func TestBackupManager_PrunesTimestamped(t *testing.T) {
	m, dir := newTestManager(t, 5, 10)
	m.now = steppingClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	active := writeActive(t, "[]")

	var last string
	for i := 0; i < 8; i++ {
		res, err := m.Snapshot(active, "")
		if err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
		last = res.Snapshot
	}

	snaps, err := m.List("events")
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 5 {
		t.Fatalf("expected 5 snapshots, got %d", len(snaps))
	}
	if snaps[0].Path != last {
		t.Errorf("expected newest snapshot first, got %s", snaps[0].Path)
	}
	if _, err := os.Stat(filepath.Join(dir, "events_20240601_000000.json")); !os.IsNotExist(err) {
		t.Error("expected oldest snapshot to be pruned")
	}
}

func TestBackupManager_RunPruneOrder(t *testing.T) {
	m, dir := newTestManager(t, 5, 3)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	write := func(name string, size int) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(strings.Repeat("x", size)), 0444); err != nil {
			t.Fatal(err)
		}
	}
	write("events_run7_20240101_000000.json", 10)
	write("events_run9_20240101_000000.json", 10)
	write("events_run9_20240102_000000.json", 50) // rerun of 9, larger
	write("events_run8_20240101_000000.json", 10)
	write("events_run10_20231231_000000.json", 5)

	pruned, err := m.Prune("events")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if len(pruned) != 2 {
		t.Fatalf("expected 2 pruned, got %v", pruned)
	}

	snaps, _ := m.List("events")
	var got []string
	for _, s := range snaps {
		got = append(got, fmt.Sprintf("%d/%d", s.RunID, s.Size))
	}
	want := "10/5 9/50 9/10"
	if strings.Join(got, " ") != want {
		t.Errorf("kept %v, want %s", got, want)
	}
}

func TestBackupManager_ListIgnoresOtherStores(t *testing.T) {
	m, dir := newTestManager(t, 5, 10)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		"events_20240101_000000.json",
		"past_events_20240101_000000.json",
		"events_notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	snaps, err := m.List("events")
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 {
		t.Errorf("expected only the events snapshot, got %+v", snaps)
	}
}

func TestStem(t *testing.T) {
	if got := Stem("docs/data/past_events.json"); got != "past_events" {
		t.Errorf("Stem = %s", got)
	}
}
