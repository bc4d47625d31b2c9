package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/hazardlog/internal/model"
)

// CorruptSuffix is appended to a store file that failed to parse.
const CorruptSuffix = ".backup"

// ErrCorruptStore marks a store file that is not a JSON array of events.
var ErrCorruptStore = errors.New("corrupt store")

// JSONStore is one of the two canonical dataset files (Active or Archive).
type JSONStore struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewJSONStore creates a store backed by path.
func NewJSONStore(path string, logger *slog.Logger) *JSONStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONStore{path: path, logger: logger, now: time.Now}
}

// Path returns the file path.
func (s *JSONStore) Path() string {
	return s.path
}

// LoadResult is the outcome of reading a store.
type LoadResult struct {
	Events []model.Event
	// Recovered is set when the file was corrupt and moved aside.
	Recovered      bool
	QuarantinePath string
}

// Load reads the store. A missing or empty file is an empty store. A file that
// does not parse is renamed to <path>.backup and treated as empty so the run
// can proceed while the evidence is kept. An earlier quarantined file is never
// overwritten; later ones get a timestamp suffix.
func (s *JSONStore) Load() (LoadResult, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("store missing, starting empty", "path", s.path)
		return LoadResult{}, nil
	}
	if err != nil {
		return LoadResult{}, fmt.Errorf("read store %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return LoadResult{}, nil
	}

	events, err := Decode(data)
	if err == nil {
		return LoadResult{Events: events}, nil
	}

	quarantine := s.quarantinePath()
	s.logger.Warn("store is corrupt, moving aside", "path", s.path, "quarantine", quarantine, "error", err)
	if renameErr := os.Rename(s.path, quarantine); renameErr != nil {
		return LoadResult{}, fmt.Errorf("quarantine %s: %w", s.path, renameErr)
	}
	return LoadResult{Recovered: true, QuarantinePath: quarantine}, nil
}

func (s *JSONStore) quarantinePath() string {
	path := s.path + CorruptSuffix
	if !exists(path) {
		return path
	}
	stamped := path + "." + s.now().UTC().Format("20060102T150405Z")
	path = stamped
	for i := 1; exists(path); i++ {
		path = fmt.Sprintf("%s.%d", stamped, i)
	}
	return path
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// Save replaces the store contents atomically: the new contents are written to
// a temp file in the same directory and renamed over the old file, so readers
// never observe a partial file.
func (s *JSONStore) Save(events []model.Event) error {
	data, err := Encode(events)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}
	return WriteFileAtomic(s.path, data, 0644)
}

// Decode parses a store file body.
func Decode(data []byte) ([]model.Event, error) {
	var events []model.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}
	return events, nil
}

// Encode renders events as pretty-printed UTF-8 JSON with a trailing newline.
// An empty set is written as [] rather than null.
func Encode(events []model.Event) ([]byte, error) {
	if events == nil {
		events = []model.Event{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFileAtomic writes data to path via a temp file and rename.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
