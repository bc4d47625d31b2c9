package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/hazardlog/internal/model"
	"github.com/ppiankov/hazardlog/internal/store"
	"github.com/ppiankov/hazardlog/internal/validate"
)

// ErrDegraded is returned when the merge failed and the fallback output was
// written instead.
var ErrDegraded = errors.New("degraded run")

// Options configures an Engine.
type Options struct {
	ActivePath       string
	ArchivePath      string
	BackupDir        string // "" disables snapshots
	Window           time.Duration
	KeepSnapshots    int
	KeepRunSnapshots int
	RunID            string
	DryRun           bool // compute the report without writing
}

// OptionsFromConfig maps the store and retention sections of cfg.
func OptionsFromConfig(cfg *model.Config, runID string) Options {
	return Options{
		ActivePath:       cfg.Store.ActivePath,
		ArchivePath:      cfg.Store.ArchivePath,
		BackupDir:        cfg.Store.BackupDir,
		Window:           cfg.Retention.ActiveWindow,
		KeepSnapshots:    cfg.Retention.KeepSnapshots,
		KeepRunSnapshots: cfg.Retention.KeepRunSnapshots,
		RunID:            runID,
	}
}

// Engine reconciles one incoming batch with the stored dataset. A run is a
// single sequential pass; concurrent runs against the same files are not
// coordinated and the last writer wins.
type Engine struct {
	opts      Options
	active    *store.JSONStore
	archive   *store.JSONStore
	backups   *store.BackupManager
	required  *validate.Validator
	validator *validate.Validator
	now       func() time.Time
	logger    *slog.Logger

	// mergeFunc is the merge pipeline (replaceable in tests)
	mergeFunc func(archive, active, incoming []model.Event, runAt time.Time) (*mergeOutput, error)
}

// NewEngine creates an engine over the configured stores.
func NewEngine(opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}

	e := &Engine{
		opts:      opts,
		active:    store.NewJSONStore(opts.ActivePath, logger),
		archive:   store.NewJSONStore(opts.ArchivePath, logger),
		required:  validate.Required(),
		validator: validate.Default(),
		now:       time.Now,
		logger:    logger,
	}
	if opts.BackupDir != "" {
		e.backups = store.NewBackupManager(opts.BackupDir, opts.KeepSnapshots, opts.KeepRunSnapshots, logger)
	}
	e.mergeFunc = e.merge
	return e
}

// SetClock replaces the clock used for the run time.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// mergeOutput is the in-memory result of a successful merge.
type mergeOutput struct {
	active     []model.Event
	archive    []model.Event
	counts     model.Counts
	rejections []model.Rejection
}

// Run reconciles incoming with the stores and writes the new dataset. On a
// merge failure it writes the valid incoming records as Active, leaves the
// archive untouched and returns the report with an error wrapping ErrDegraded.
func (e *Engine) Run(ctx context.Context, incoming []model.Event) (*model.Report, error) {
	runAt := e.now().UTC()
	report := model.NewReport(runAt)
	report.Cutoff = Cutoff(runAt, e.opts.Window)

	archive, err := e.load(e.archive, report)
	if err != nil {
		return report, err
	}
	active, err := e.load(e.active, report)
	if err != nil {
		return report, err
	}
	prepared := Prepare(incoming)

	e.logger.Info("loaded dataset",
		"archive", len(archive), "active", len(active), "incoming", len(prepared),
		"cutoff", model.FormatTime(report.Cutoff))

	out, err := e.safeMerge(archive, active, prepared, runAt)
	if err != nil {
		return e.fallback(ctx, prepared, runAt, report, err)
	}

	corrupt := report.Counts.CorruptStores
	report.Counts = out.counts
	report.Counts.CorruptStores = corrupt
	report.Rejections = append(report.Rejections, out.rejections...)
	report.Categories, report.Providers = validate.Tally(out.active)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if e.opts.DryRun {
		e.logger.Info("dry run, stores not written")
		return report, nil
	}

	e.snapshot(report)
	if err := e.archive.Save(out.archive); err != nil {
		return report, fmt.Errorf("write archive: %w", err)
	}
	if err := e.active.Save(out.active); err != nil {
		return report, fmt.Errorf("write active: %w", err)
	}

	e.logger.Info("dataset written",
		"active", len(out.active), "archive", len(out.archive))
	return report, nil
}

// Prepare normalises an incoming batch. Missing collectedAt values are left
// empty so those records rank oldest during identity resolution.
func Prepare(incoming []model.Event) []model.Event {
	prepared := make([]model.Event, len(incoming))
	for i, ev := range incoming {
		prepared[i] = ev.Normalize()
	}
	return prepared
}

// stampCollected sets the run time on incoming winners that carry no
// collectedAt, so they are published as freshly collected.
func stampCollected(cands []model.Candidate, runAt time.Time) {
	stamp := model.FormatTime(runAt)
	for i := range cands {
		if cands[i].Origin == model.OriginIncoming && cands[i].Event.CollectedAt == "" {
			cands[i].Event.CollectedAt = stamp
		}
	}
}

func (e *Engine) load(s *store.JSONStore, report *model.Report) ([]model.Event, error) {
	res, err := s.Load()
	if err != nil {
		return nil, err
	}
	if res.Recovered {
		report.Counts.CorruptStores++
	}
	events := make([]model.Event, len(res.Events))
	for i, ev := range res.Events {
		events[i] = ev.EnsureID()
	}
	return events, nil
}

// safeMerge runs the merge pipeline, converting a panic into an error.
func (e *Engine) safeMerge(archive, active, incoming []model.Event, runAt time.Time) (out *mergeOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("merge panicked: %v", r)
		}
	}()
	return e.mergeFunc(archive, active, incoming, runAt)
}

func (e *Engine) merge(archive, active, incoming []model.Event, runAt time.Time) (*mergeOutput, error) {
	res := Resolve(archive, active, incoming, e.required)
	e.logger.Info("identity resolution",
		"candidates", len(res.Candidates), "new", res.Stats.NewAdded,
		"updated", res.Stats.Updated, "superseded", res.Stats.Superseded,
		"invalid", res.Stats.Invalid)
	stampCollected(res.Candidates, runAt)

	dd := Dedup(res.Candidates, e.required)
	e.logger.Info("content deduplication",
		"kept", len(dd.Kept), "duplicates", dd.Duplicates, "invalid", dd.Invalid)

	part := PartitionByAge(dd.Kept, Cutoff(runAt, e.opts.Window))
	e.logger.Info("age partition",
		"active", len(part.Active), "archive", len(part.Archive), "aged", part.Aged)

	finalActive, rejected := e.validator.Filter(part.Active)
	if len(rejected) > 0 {
		e.logger.Warn("validation rejected records", "count", len(rejected))
	}

	out := &mergeOutput{
		active:  finalActive,
		archive: part.Archive,
		counts: model.Counts{
			LoadedFromArchive: res.Stats.LoadedFromArchive,
			LoadedFromActive:  res.Stats.LoadedFromActive,
			NewProvided:       res.Stats.NewProvided,
			NewAdded:          res.Stats.NewAdded,
			Updated:           res.Stats.Updated,
			Superseded:        res.Stats.Superseded + part.Replaced,
			ContentDuplicates: dd.Duplicates,
			AgedToArchive:     part.Aged,
			ValidationErrors:  res.Stats.Invalid + dd.Invalid + len(rejected),
			ActiveTotal:       len(finalActive),
			ArchiveTotal:      len(part.Archive),
		},
	}
	out.rejections = append(out.rejections, res.Rejections...)
	out.rejections = append(out.rejections, dd.Rejections...)
	out.rejections = append(out.rejections, rejected...)

	if c := out.counts; c.Considered() != c.Accounted() {
		return nil, fmt.Errorf("unbalanced run: %d records in, %d accounted for", c.Considered(), c.Accounted())
	}
	return out, nil
}

// fallback writes the valid incoming records as the whole Active store. An
// empty fallback is not written so the existing dataset survives.
func (e *Engine) fallback(ctx context.Context, prepared []model.Event, runAt time.Time, report *model.Report, cause error) (*model.Report, error) {
	e.logger.Error("merge failed, using incoming batch as active set", "error", cause)

	valid, rejected := e.validator.Filter(prepared)
	valid = latestByID(valid)
	stamp := model.FormatTime(runAt)
	for i := range valid {
		if valid[i].CollectedAt == "" {
			valid[i].CollectedAt = stamp
		}
	}
	SortEvents(valid)

	report.Degraded = true
	report.DegradedReason = cause.Error()
	report.Rejections = append(report.Rejections, rejected...)
	report.Counts.NewProvided = len(prepared)
	report.Counts.ValidationErrors = len(rejected)
	report.Counts.ActiveTotal = len(valid)
	report.Categories, report.Providers = validate.Tally(valid)

	degraded := fmt.Errorf("%w: %v", ErrDegraded, cause)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if len(valid) == 0 {
		e.logger.Error("fallback batch is empty, active store left unchanged")
		return report, degraded
	}
	if e.opts.DryRun {
		return report, degraded
	}

	e.snapshot(report)
	if err := e.active.Save(valid); err != nil {
		return report, fmt.Errorf("write fallback active: %w", err)
	}
	return report, degraded
}

// snapshot backs up the Active store. Failures are reported, never fatal.
func (e *Engine) snapshot(report *model.Report) {
	if e.backups == nil {
		return
	}
	res, err := e.backups.Snapshot(e.active.Path(), e.opts.RunID)
	if err != nil {
		e.logger.Warn("backup failed, continuing", "error", err)
		report.Backup = &model.BackupResult{Error: err.Error()}
		return
	}
	report.Backup = res
}

func latestByID(events []model.Event) []model.Event {
	index := make(map[string]int, len(events))
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if i, ok := index[ev.ID]; ok {
			if newerOrEqual(ev, out[i]) {
				out[i] = ev
			}
			continue
		}
		index[ev.ID] = len(out)
		out = append(out, ev)
	}
	return out
}
