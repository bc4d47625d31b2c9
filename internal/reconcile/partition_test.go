package reconcile

import (
	"testing"
	"time"

	"github.com/ppiankov/hazardlog/internal/model"
)

var runAt = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func TestCutoff(t *testing.T) {
	want := time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)
	if got := Cutoff(runAt, 30*24*time.Hour); !got.Equal(want) {
		t.Errorf("Cutoff = %v, want %v", got, want)
	}
	if got := Cutoff(runAt, 0); !got.Equal(want) {
		t.Errorf("zero window should use default, got %v", got)
	}
}

func TestPartitionByAge(t *testing.T) {
	cutoff := Cutoff(runAt, DefaultWindow)
	cands := []model.Candidate{
		{Event: ev("fresh", "fresh", "2024-06-29T00:00:00Z"), Origin: model.OriginIncoming},
		{Event: ev("edge", "edge", "2024-05-31T12:00:00Z"), Origin: model.OriginActive},
		{Event: ev("stale", "stale", "2024-05-01T00:00:00Z"), Origin: model.OriginActive},
		{Event: ev("undated", "undated", "soon"), Origin: model.OriginActive},
		{Event: ev("archived", "archived", "2024-06-29T00:00:00Z"), Origin: model.OriginArchive},
	}

	p := PartitionByAge(cands, cutoff)

	active := map[string]bool{}
	for _, e := range p.Active {
		active[e.ID] = true
	}
	archive := map[string]bool{}
	for _, e := range p.Archive {
		archive[e.ID] = true
	}

	for _, id := range []string{"fresh", "edge", "undated"} {
		if !active[id] {
			t.Errorf("%s should be active", id)
		}
	}
	for _, id := range []string{"stale", "archived"} {
		if !archive[id] {
			t.Errorf("%s should be archived", id)
		}
	}
	if p.Aged != 1 {
		t.Errorf("expected 1 aged record, got %d", p.Aged)
	}
	if len(p.Active)+len(p.Archive) != len(cands) {
		t.Errorf("records lost: %d + %d != %d", len(p.Active), len(p.Archive), len(cands))
	}
}

func TestMergeArchive_StrictlyNewerReplaces(t *testing.T) {
	archive := []model.Event{
		ev("A", "kept on tie", "2024-01-01T00:00:00Z"),
		ev("B", "replaced", "2024-01-01T00:00:00Z"),
	}
	old := []model.Event{
		ev("A", "tie", "2024-01-01T00:00:00Z"),
		ev("B", "newer", "2024-02-01T00:00:00Z"),
		ev("C", "added", "2024-01-15T00:00:00Z"),
	}

	merged, dropped := mergeArchive(archive, old)

	got := map[string]string{}
	for _, e := range merged {
		got[e.ID] = e.Title
	}
	if got["A"] != "kept on tie" || got["B"] != "newer" || got["C"] != "added" {
		t.Errorf("unexpected merge result %v", got)
	}
	if dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", dropped)
	}
}

func TestSortEvents(t *testing.T) {
	events := []model.Event{
		{ID: "c", CollectedAt: "2024-01-01T00:00:00Z", EventTime: "2023-12-30"},
		{ID: "b", CollectedAt: "2024-01-02T00:00:00Z"},
		{ID: "z", CollectedAt: "2024-01-01T00:00:00Z", EventTime: "2023-12-31"},
		{ID: "a", CollectedAt: "2024-01-01T00:00:00Z", EventTime: "2023-12-30"},
		{ID: "u", CollectedAt: "unknown"},
	}

	SortEvents(events)

	var got string
	for _, e := range events {
		got += e.ID
	}
	if got != "bzacu" {
		t.Errorf("sorted order = %s, want bzacu", got)
	}
}
