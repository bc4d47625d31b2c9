package reconcile

import (
	"github.com/ppiankov/hazardlog/internal/model"
)

// DedupResult is the outcome of content deduplication.
type DedupResult struct {
	Kept       []model.Candidate
	Duplicates int
	Invalid    int
	Rejections []model.Rejection
}

// Dedup collapses records that carry different ids but describe the same
// event. Archive records are walked first and claim their fingerprints; after
// that the first record per fingerprint is kept and later ones are dropped.
// Archive records are never dropped. Non-archive records failing check are
// rejected before fingerprinting. Records whose title has no words carry no
// fingerprint and are kept as they are.
func Dedup(cands []model.Candidate, check Checker) *DedupResult {
	res := &DedupResult{Kept: make([]model.Candidate, 0, len(cands))}
	owners := make(map[model.Fingerprint]string)

	walk := func(c model.Candidate) {
		if c.Origin == model.OriginArchive {
			if fp := model.ContentFingerprint(c.Event); fp != "" {
				if _, ok := owners[fp]; !ok {
					owners[fp] = c.Event.ID
				}
			}
			res.Kept = append(res.Kept, c)
			return
		}

		if err := check.Check(c.Event); err != nil {
			res.Invalid++
			res.Rejections = append(res.Rejections, model.NewRejection(c.Event, model.StageValidation, err.Error()))
			return
		}

		fp := model.ContentFingerprint(c.Event)
		if fp == "" {
			res.Kept = append(res.Kept, c)
			return
		}
		if owner, ok := owners[fp]; ok {
			res.Duplicates++
			res.Rejections = append(res.Rejections, model.NewRejection(c.Event, model.StageContent, "same content as "+owner))
			return
		}
		owners[fp] = c.Event.ID
		res.Kept = append(res.Kept, c)
	}

	for _, c := range cands {
		if c.Origin == model.OriginArchive {
			walk(c)
		}
	}
	for _, c := range cands {
		if c.Origin != model.OriginArchive {
			walk(c)
		}
	}
	return res
}
