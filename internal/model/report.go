package model

import "time"

// Report is the audit trail of one reconciliation run.
// Apart from the collection and backup sections it is a pure function of the
// run inputs and the run time.
type Report struct {
	RunAt          time.Time `json:"run_at"`
	Cutoff         time.Time `json:"cutoff"`                    // records collected before this are archived
	Degraded       bool      `json:"degraded"`                  // fallback output was written
	DegradedReason string    `json:"degraded_reason,omitempty"` // why the merge failed

	Counts     Counts         `json:"counts"`
	Categories map[string]int `json:"categories"` // final Active tally by category
	Providers  map[string]int `json:"providers"`  // final Active tally by provider

	Rejections []Rejection   `json:"rejections,omitempty"`
	Sources    []SourceStat  `json:"sources,omitempty"`
	Backup     *BackupResult `json:"backup,omitempty"`

	LLM *LLMSummary `json:"llm,omitempty"` // optional digest, never affects the datasets
}

// Counts are the per-phase tallies of a run.
type Counts struct {
	LoadedFromArchive int `json:"loaded_from_archive"`
	LoadedFromActive  int `json:"loaded_from_active"`
	NewProvided       int `json:"new_provided"`
	NewAdded          int `json:"new_added"`
	Updated           int `json:"updated"`
	Superseded        int `json:"superseded"` // lost an id conflict
	ContentDuplicates int `json:"content_duplicates_removed"`
	AgedToArchive     int `json:"aged_to_archive"`
	ValidationErrors  int `json:"validation_errors"`
	ActiveTotal       int `json:"active_total"`
	ArchiveTotal      int `json:"archive_total"`
	CorruptStores     int `json:"corrupt_stores_recovered"`
}

// Considered is the number of records that entered the run.
func (c Counts) Considered() int {
	return c.LoadedFromArchive + c.LoadedFromActive + c.NewProvided
}

// Accounted is the number of records with a known fate. For a healthy run it
// equals Considered.
func (c Counts) Accounted() int {
	return c.Superseded + c.ContentDuplicates + c.ValidationErrors + c.ActiveTotal + c.ArchiveTotal
}

// RejectionStage names the phase that dropped a record.
type RejectionStage string

const (
	StageIdentity   RejectionStage = "identity"
	StageContent    RejectionStage = "content"
	StageValidation RejectionStage = "validation"
)

// Rejection records one dropped record.
type Rejection struct {
	ID     string         `json:"id,omitempty"`
	Title  string         `json:"title,omitempty"`
	Stage  RejectionStage `json:"stage"`
	Reason string         `json:"reason"`
}

// SourceStat summarises one collector in a collection run.
type SourceStat struct {
	Name     string        `json:"name"`
	Records  int           `json:"records"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// BackupResult lists the snapshots written and pruned around the Active write.
type BackupResult struct {
	Snapshot    string   `json:"snapshot,omitempty"`
	RunSnapshot string   `json:"run_snapshot,omitempty"`
	Pruned      []string `json:"pruned,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// LLMSummary contains an optional LLM-generated digest of the run.
type LLMSummary struct {
	Enabled        bool     `json:"enabled"`
	Provider       string   `json:"provider,omitempty"`
	Model          string   `json:"model,omitempty"`
	StrictEvidence bool     `json:"strict_evidence"` // digest may only cite event URLs from the run
	SummaryMD      string   `json:"summary_md,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// NewReport returns an empty report for a run at runAt.
func NewReport(runAt time.Time) *Report {
	return &Report{
		RunAt:      runAt.UTC(),
		Categories: make(map[string]int),
		Providers:  make(map[string]int),
	}
}

// NewRejection records that e was dropped at stage.
func NewRejection(e Event, stage RejectionStage, reason string) Rejection {
	return Rejection{
		ID:     e.ID,
		Title:  e.Title,
		Stage:  stage,
		Reason: reason,
	}
}
