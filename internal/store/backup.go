package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/hazardlog/internal/model"
)

const snapshotTimeLayout = "20060102_150405"

// SnapshotKind separates the two retention series.
type SnapshotKind string

const (
	SnapshotTimestamped SnapshotKind = "timestamped"
	SnapshotRunIndexed  SnapshotKind = "run"
)

// Snapshot is one backup file of the Active store.
type Snapshot struct {
	Path  string
	Kind  SnapshotKind
	RunID int64 // run-indexed only
	Taken time.Time
	Size  int64
}

// BackupManager snapshots the Active store before it is overwritten and prunes
// old snapshots. Snapshots are read-only and never rewritten.
type BackupManager struct {
	dir     string
	keep    int
	keepRun int
	now     func() time.Time
	logger  *slog.Logger
}

// NewBackupManager creates a manager writing into dir.
func NewBackupManager(dir string, keep, keepRun int, logger *slog.Logger) *BackupManager {
	if keep <= 0 {
		keep = 5
	}
	if keepRun <= 0 {
		keepRun = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupManager{
		dir:     dir,
		keep:    keep,
		keepRun: keepRun,
		now:     time.Now,
		logger:  logger,
	}
}

// Dir returns the backup directory.
func (m *BackupManager) Dir() string {
	return m.dir
}

// Snapshot copies the current contents of activePath into the backup
// directory, adds a run-indexed link when runID is a run number, then prunes
// both series. It returns nil when there is nothing to protect.
func (m *BackupManager) Snapshot(activePath, runID string) (*model.BackupResult, error) {
	info, err := os.Stat(activePath)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.Size() == 0) {
		m.logger.Debug("nothing to back up", "path", activePath)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", activePath, err)
	}

	data, err := os.ReadFile(activePath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", activePath, err)
	}
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	stem := snapshotStem(activePath)
	stamp := m.now().UTC().Format(snapshotTimeLayout)

	snapPath, err := m.writeNew(stem+"_"+stamp, data)
	if err != nil {
		return nil, err
	}
	result := &model.BackupResult{Snapshot: snapPath}
	m.logger.Info("backup created", "snapshot", snapPath, "bytes", len(data))

	if runID = strings.TrimSpace(runID); runID != "" {
		if _, convErr := strconv.ParseInt(runID, 10, 64); convErr != nil {
			m.logger.Warn("ignoring non-numeric run id", "run_id", runID)
		} else {
			runPath, linkErr := m.linkRun(snapPath, stem+"_run"+runID+"_"+stamp, data)
			if linkErr != nil {
				m.logger.Warn("run-indexed backup failed", "error", linkErr)
				result.Error = linkErr.Error()
			} else {
				result.RunSnapshot = runPath
			}
		}
	}

	pruned, err := m.Prune(stem)
	result.Pruned = pruned
	if err != nil {
		m.logger.Warn("backup pruning incomplete", "error", err)
		result.Error = err.Error()
	}
	return result, nil
}

// writeNew writes data to a fresh read-only file, never replacing an
// existing snapshot.
func (m *BackupManager) writeNew(base string, data []byte) (string, error) {
	for i := 0; i < 100; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		path := filepath.Join(m.dir, name+".json")
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0444)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create snapshot: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return "", fmt.Errorf("write snapshot: %w", err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(path)
			return "", fmt.Errorf("close snapshot: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free snapshot name for %s", base)
}

// linkRun references the timestamped snapshot bytes under a run-indexed name,
// copying when hard links are unsupported.
func (m *BackupManager) linkRun(snapPath, base string, data []byte) (string, error) {
	path := filepath.Join(m.dir, base+".json")
	if err := os.Link(snapPath, path); err == nil {
		return path, nil
	}
	return m.writeNew(base, data)
}

// List returns the snapshots of the store named stem, newest first per series.
func (m *BackupManager) List(stem string) ([]Snapshot, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	stampRe := regexp.MustCompile(`^` + regexp.QuoteMeta(stem) + `_(\d{8}_\d{6})(?:_\d+)?\.json$`)
	runRe := regexp.MustCompile(`^` + regexp.QuoteMeta(stem) + `_run(\d+)_(\d{8}_\d{6})(?:_\d+)?\.json$`)

	var snaps []Snapshot
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(m.dir, name)

		if match := runRe.FindStringSubmatch(name); match != nil {
			run, _ := strconv.ParseInt(match[1], 10, 64)
			taken, _ := time.Parse(snapshotTimeLayout, match[2])
			snaps = append(snaps, Snapshot{Path: path, Kind: SnapshotRunIndexed, RunID: run, Taken: taken, Size: info.Size()})
			continue
		}
		if match := stampRe.FindStringSubmatch(name); match != nil {
			taken, _ := time.Parse(snapshotTimeLayout, match[1])
			snaps = append(snaps, Snapshot{Path: path, Kind: SnapshotTimestamped, Taken: taken, Size: info.Size()})
		}
	}

	sort.SliceStable(snaps, func(i, j int) bool {
		a, b := snaps[i], snaps[j]
		if a.Kind != b.Kind {
			return a.Kind == SnapshotTimestamped
		}
		if a.Kind == SnapshotRunIndexed {
			if a.RunID != b.RunID {
				return a.RunID > b.RunID
			}
			if a.Size != b.Size {
				return a.Size > b.Size
			}
		}
		return filepath.Base(a.Path) > filepath.Base(b.Path)
	})
	return snaps, nil
}

// Prune deletes timestamped snapshots beyond the keep cap and run-indexed
// snapshots beyond the run cap. Among run snapshots, higher run numbers are
// kept first and ties keep the larger file.
func (m *BackupManager) Prune(stem string) ([]string, error) {
	snaps, err := m.List(stem)
	if err != nil {
		return nil, err
	}

	var pruned []string
	var errs []error
	kept := map[SnapshotKind]int{}
	for _, s := range snaps {
		limit := m.keep
		if s.Kind == SnapshotRunIndexed {
			limit = m.keepRun
		}
		if kept[s.Kind] < limit {
			kept[s.Kind]++
			continue
		}
		if err := os.Remove(s.Path); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", s.Path, err))
			continue
		}
		pruned = append(pruned, s.Path)
		m.logger.Debug("pruned backup", "path", s.Path)
	}
	return pruned, errors.Join(errs...)
}

// snapshotStem is the store file name without extension ("events").
func snapshotStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Stem exposes the snapshot stem used for path.
func Stem(path string) string {
	return snapshotStem(path)
}
