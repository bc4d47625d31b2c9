package reconcile

import (
	"sort"
	"time"

	"github.com/ppiankov/hazardlog/internal/model"
)

// DefaultWindow is how long a record stays Active after collection.
const DefaultWindow = 30 * 24 * time.Hour

// Partition is the dataset split produced by the age partitioner.
type Partition struct {
	Active  []model.Event
	Archive []model.Event
	// Aged counts non-archive records moved to the archive this run.
	Aged int
	// Replaced counts archive records displaced by a strictly newer record.
	Replaced int
}

// Cutoff returns the oldest collectedAt that still counts as Active.
func Cutoff(runAt time.Time, window time.Duration) time.Time {
	if window <= 0 {
		window = DefaultWindow
	}
	return runAt.UTC().Add(-window)
}

// PartitionByAge routes non-archive records collected at or after cutoff, or
// with no parseable collectedAt, to Active. Everything else is Old and merged
// into the archive. Archive records never return to Active. Both outputs are
// sorted newest first.
func PartitionByAge(cands []model.Candidate, cutoff time.Time) *Partition {
	p := &Partition{}
	var archived, old []model.Event

	for _, c := range cands {
		if c.Origin == model.OriginArchive {
			archived = append(archived, c.Event)
			continue
		}
		collected := c.Event.CollectedTime()
		if collected.IsZero() || !collected.Before(cutoff) {
			p.Active = append(p.Active, c.Event)
			continue
		}
		old = append(old, c.Event)
		p.Aged++
	}

	p.Archive, p.Replaced = mergeArchive(archived, old)
	SortEvents(p.Active)
	SortEvents(p.Archive)
	return p
}

// mergeArchive adds old records to the archive by id. An archived record is
// only replaced by one collected strictly later; it returns how many records
// were discarded on id collisions.
func mergeArchive(archive, old []model.Event) ([]model.Event, int) {
	merged := make([]model.Event, 0, len(archive)+len(old))
	index := make(map[string]int, len(archive)+len(old))
	dropped := 0

	for _, e := range archive {
		if _, ok := index[e.ID]; ok {
			dropped++
			continue
		}
		index[e.ID] = len(merged)
		merged = append(merged, e)
	}
	for _, e := range old {
		i, ok := index[e.ID]
		if !ok {
			index[e.ID] = len(merged)
			merged = append(merged, e)
			continue
		}
		dropped++
		if e.CollectedTime().After(merged[i].CollectedTime()) {
			merged[i] = e
		}
	}
	return merged, dropped
}

// SortEvents orders events by collectedAt descending, then eventTime
// descending, then id ascending.
func SortEvents(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		ac, bc := a.CollectedTime(), b.CollectedTime()
		if !ac.Equal(bc) {
			return ac.After(bc)
		}
		ao, bo := a.OccurredTime(), b.OccurredTime()
		if !ao.Equal(bo) {
			return ao.After(bo)
		}
		return a.ID < b.ID
	})
}
