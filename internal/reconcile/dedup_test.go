package reconcile

import (
	"testing"

	"github.com/ppiankov/hazardlog/internal/model"
	"github.com/ppiankov/hazardlog/internal/validate"
)

func located(id, title, eventTime string, lat, lon float64) model.Event {
	return model.Event{
		ID:          id,
		Title:       title,
		Category:    "Earthquake",
		EventTime:   eventTime,
		CollectedAt: "2024-03-01T06:00:00Z",
		Latitude:    model.NewCoordinate(lat),
		Longitude:   model.NewCoordinate(lon),
	}
}

func TestDedup_CollapsesSameContent(t *testing.T) {
	cands := []model.Candidate{
		{Event: located("B1", "M5.8 Earthquake - Honshu, Japan", "2024-03-01T04:12:00Z", 35.681, 139.767), Origin: model.OriginIncoming},
		{Event: located("B2", "m5.8 earthquake honshu japan", "2024-03-01T05:00:00Z", 35.684, 139.768), Origin: model.OriginIncoming},
	}

	res := Dedup(cands, validate.Required())

	if len(res.Kept) != 1 || res.Kept[0].Event.ID != "B1" {
		t.Fatalf("expected only B1 to survive, got %+v", res.Kept)
	}
	if res.Duplicates != 1 {
		t.Errorf("expected 1 duplicate, got %d", res.Duplicates)
	}
	want := model.Rejection{
		ID:     "B2",
		Title:  "m5.8 earthquake honshu japan",
		Stage:  model.StageContent,
		Reason: "same content as B1",
	}
	if len(res.Rejections) != 1 || res.Rejections[0] != want {
		t.Errorf("unexpected rejections %+v", res.Rejections)
	}
}

func TestDedup_DifferentBucketsKept(t *testing.T) {
	cands := []model.Candidate{
		{Event: located("B1", "Quake Honshu", "2024-03-01", 35.68, 139.76), Origin: model.OriginIncoming},
		{Event: located("B2", "Quake Honshu", "2024-03-01", 36.10, 139.76), Origin: model.OriginIncoming},
		{Event: located("B3", "Quake Honshu", "2024-03-02", 35.68, 139.76), Origin: model.OriginIncoming},
	}
	res := Dedup(cands, validate.Required())
	if len(res.Kept) != 3 {
		t.Errorf("expected all 3 kept, got %d", len(res.Kept))
	}
}

func TestDedup_ArchiveClaimsFirst(t *testing.T) {
	cands := []model.Candidate{
		{Event: located("N1", "Eruption Etna Sicily", "2024-03-01", 37.75, 14.99), Origin: model.OriginIncoming},
		{Event: located("A1", "Etna, Sicily", "2024-03-01", 37.751, 14.993), Origin: model.OriginArchive},
	}

	res := Dedup(cands, validate.Required())

	if len(res.Kept) != 1 || res.Kept[0].Event.ID != "A1" {
		t.Errorf("expected archive record to claim the fingerprint, got %+v", res.Kept)
	}
}

func TestDedup_ArchiveNeverDropped(t *testing.T) {
	cands := []model.Candidate{
		{Event: located("A1", "Etna Sicily", "2024-03-01", 37.75, 14.99), Origin: model.OriginArchive},
		{Event: located("A2", "Etna Sicily", "2024-03-01", 37.75, 14.99), Origin: model.OriginArchive},
		{Event: model.Event{ID: "A3", Title: ""}, Origin: model.OriginArchive},
	}
	res := Dedup(cands, validate.Required())
	if len(res.Kept) != 3 || res.Duplicates != 0 || res.Invalid != 0 {
		t.Errorf("archive records must survive dedup, got kept=%d dup=%d invalid=%d",
			len(res.Kept), res.Duplicates, res.Invalid)
	}
}

func TestDedup_InvalidNonArchiveRejected(t *testing.T) {
	cands := []model.Candidate{
		{Event: model.Event{ID: "C1", Title: "Storm"}, Origin: model.OriginActive},
	}
	res := Dedup(cands, validate.Required())
	if len(res.Kept) != 0 || res.Invalid != 1 {
		t.Errorf("expected invalid active record rejected, got %+v", res)
	}
}

func TestDedup_StopWordTitlesCollapse(t *testing.T) {
	cands := []model.Candidate{
		{Event: located("B1", "Flood", "2024-03-01T10:00:00Z", 10.001, 20.001), Origin: model.OriginIncoming},
		{Event: located("B2", "FLOOD!", "2024-03-01T18:00:00Z", 10.002, 20.002), Origin: model.OriginIncoming},
		{Event: located("B3", "Earthquake", "2024-03-01T18:00:00Z", 10.002, 20.002), Origin: model.OriginIncoming},
	}
	res := Dedup(cands, validate.Required())

	if len(res.Kept) != 2 || res.Duplicates != 1 {
		t.Fatalf("expected B2 collapsed into B1, kept %d, duplicates %d", len(res.Kept), res.Duplicates)
	}
	if res.Kept[0].Event.ID != "B1" || res.Kept[1].Event.ID != "B3" {
		t.Errorf("unexpected survivors %s", ids(res.Kept))
	}
}
