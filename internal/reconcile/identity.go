package reconcile

import (
	"github.com/ppiankov/hazardlog/internal/model"
)

// Checker decides whether a record is structurally valid.
type Checker interface {
	Check(model.Event) error
}

// IdentityStats are the id-resolution tallies of a run.
type IdentityStats struct {
	LoadedFromArchive int
	LoadedFromActive  int
	NewProvided       int
	NewAdded          int
	Updated           int
	Superseded        int
	Invalid           int
}

// Resolution is the outcome of id resolution: one candidate per id.
type Resolution struct {
	Candidates []model.Candidate
	Stats      IdentityStats
	Rejections []model.Rejection
}

// Resolve merges the three pools so that each id has exactly one winner:
//
//  1. an archive record wins unconditionally;
//  2. otherwise the record with the later collectedAt wins, incoming winning ties;
//  3. otherwise the only record for the id is kept.
//
// Duplicate ids inside the archive keep their first occurrence; inside the
// active pool and the batch the later-or-equal collectedAt wins. Active and
// incoming records failing check are rejected before they compete, so an
// invalid record never displaces a valid one. Archive records without an id
// cannot be resolved and are rejected.
//
// Output order is archive winners in archive order, then active winners in
// active order, then incoming winners in batch order, each at the position of
// the id's first appearance in its pool. Resolve does not modify its inputs.
func Resolve(archive, active, incoming []model.Event, check Checker) *Resolution {
	res := &Resolution{}
	res.Stats.LoadedFromArchive = len(archive)
	res.Stats.LoadedFromActive = len(active)
	res.Stats.NewProvided = len(incoming)

	winners := make(map[string]model.Candidate)
	seenArchive := make(map[string]bool)
	seenActive := make(map[string]bool)

	reject := func(e model.Event, reason string) {
		res.Stats.Invalid++
		res.Rejections = append(res.Rejections, model.NewRejection(e, model.StageValidation, reason))
	}
	supersede := func(loser model.Event, winner model.Candidate) {
		res.Stats.Superseded++
		res.Rejections = append(res.Rejections, model.NewRejection(loser, model.StageIdentity,
			"superseded by "+winner.Origin.String()+" record"))
	}

	for _, e := range archive {
		if e.ID == "" {
			reject(e, "archive record without id")
			continue
		}
		if cur, ok := winners[e.ID]; ok {
			supersede(e, cur)
			continue
		}
		winners[e.ID] = model.Candidate{Event: e, Origin: model.OriginArchive}
		seenArchive[e.ID] = true
	}

	for _, e := range active {
		if e.ID != "" {
			seenActive[e.ID] = true
		}
		if err := check.Check(e); err != nil {
			reject(e, err.Error())
			continue
		}
		cand := model.Candidate{Event: e, Origin: model.OriginActive}
		cur, ok := winners[e.ID]
		switch {
		case !ok:
			winners[e.ID] = cand
		case cur.Origin == model.OriginArchive || !newerOrEqual(e, cur.Event):
			supersede(e, cur)
		default:
			supersede(cur.Event, cand)
			winners[e.ID] = cand
		}
	}

	for _, e := range incoming {
		if err := check.Check(e); err != nil {
			reject(e, err.Error())
			continue
		}
		cand := model.Candidate{Event: e, Origin: model.OriginIncoming}
		cur, ok := winners[e.ID]
		switch {
		case !ok:
			winners[e.ID] = cand
		case cur.Origin == model.OriginArchive || !newerOrEqual(e, cur.Event):
			supersede(e, cur)
		default:
			supersede(cur.Event, cand)
			winners[e.ID] = cand
		}
	}

	res.Candidates = make([]model.Candidate, 0, len(winners))
	emitted := make(map[string]bool, len(winners))
	emit := func(pool []model.Event, origin model.Origin) {
		for _, e := range pool {
			if e.ID == "" || emitted[e.ID] {
				continue
			}
			if w, ok := winners[e.ID]; ok && w.Origin == origin {
				res.Candidates = append(res.Candidates, w)
				emitted[e.ID] = true
			}
		}
	}
	emit(archive, model.OriginArchive)
	emit(active, model.OriginActive)
	emit(incoming, model.OriginIncoming)

	for _, c := range res.Candidates {
		if c.Origin != model.OriginIncoming {
			continue
		}
		switch {
		case seenActive[c.Event.ID]:
			res.Stats.Updated++
		case !seenArchive[c.Event.ID]:
			res.Stats.NewAdded++
		}
	}
	return res
}

// newerOrEqual reports whether a was collected no earlier than b. Missing or
// unparseable timestamps count as the oldest instant.
func newerOrEqual(a, b model.Event) bool {
	return !a.CollectedTime().Before(b.CollectedTime())
}
