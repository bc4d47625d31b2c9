package collect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ppiankov/hazardlog/internal/model"
)

// FileCollector reads batch files written by external scrapers. The path may
// be a glob; matches are read in lexical order.
type FileCollector struct {
	name     string
	pattern  string
	provider string
}

// NewFileCollector creates a file collector.
func NewFileCollector(name, pattern, provider string) *FileCollector {
	return &FileCollector{name: name, pattern: pattern, provider: provider}
}

func (c *FileCollector) Name() string {
	return c.name
}

// Collect reads every matching file. A pattern without matches yields no
// records; an unreadable or malformed file fails the collector.
func (c *FileCollector) Collect(ctx context.Context) ([]model.Event, error) {
	paths, err := filepath.Glob(c.pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", c.pattern, err)
	}
	sort.Strings(paths)

	var events []model.Event
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", path, err))
			continue
		}
		batch, err := DecodeBatch(data, c.provider)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		events = append(events, batch...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return events, nil
}
