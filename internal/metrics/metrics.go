// Package metrics exports run counters in the Prometheus text format so a
// node exporter textfile collector can scrape scheduled runs.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppiankov/hazardlog/internal/model"
)

const namespace = "hazardlog"

// Registry builds a registry holding the gauges of one run.
func Registry(report *model.Report) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	records := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_records",
		Help:      "Records per reconciliation phase in the last run.",
	}, []string{"phase"})
	c := report.Counts
	for phase, v := range map[string]int{
		"loaded_from_archive": c.LoadedFromArchive,
		"loaded_from_active":  c.LoadedFromActive,
		"new_provided":        c.NewProvided,
		"new_added":           c.NewAdded,
		"updated":             c.Updated,
		"superseded":          c.Superseded,
		"content_duplicates":  c.ContentDuplicates,
		"aged_to_archive":     c.AgedToArchive,
		"validation_errors":   c.ValidationErrors,
		"active_total":        c.ActiveTotal,
		"archive_total":       c.ArchiveTotal,
		"corrupt_stores":      c.CorruptStores,
	} {
		records.WithLabelValues(phase).Set(float64(v))
	}

	byCategory := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_events",
		Help:      "Active events by category.",
	}, []string{"category"})
	for k, v := range report.Categories {
		byCategory.WithLabelValues(k).Set(float64(v))
	}

	byProvider := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_events_by_provider",
		Help:      "Active events by originating provider.",
	}, []string{"provider"})
	for k, v := range report.Providers {
		byProvider.WithLabelValues(k).Set(float64(v))
	}

	sourceRecords := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "source_records",
		Help:      "Records returned by each collector.",
	}, []string{"source"})
	sourceUp := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "source_up",
		Help:      "1 if the collector succeeded in the last run.",
	}, []string{"source"})
	for _, s := range report.Sources {
		sourceRecords.WithLabelValues(s.Name).Set(float64(s.Records))
		up := 1.0
		if s.Error != "" {
			up = 0
		}
		sourceUp.WithLabelValues(s.Name).Set(up)
	}

	degraded := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_degraded",
		Help:      "1 if the last run published the fallback batch.",
	})
	if report.Degraded {
		degraded.Set(1)
	}

	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last run.",
	})
	lastRun.Set(float64(report.RunAt.Unix()))

	reg.MustRegister(records, byCategory, byProvider, sourceRecords, sourceUp, degraded, lastRun)
	return reg
}

// WriteTextfile writes the run gauges to path atomically.
func WriteTextfile(path string, report *model.Report) error {
	if err := prometheus.WriteToTextfile(path, Registry(report)); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
