package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ppiankov/hazardlog/internal/cache"
	"github.com/ppiankov/hazardlog/internal/model"
	"github.com/ppiankov/hazardlog/internal/util"
	"github.com/ppiankov/hazardlog/internal/worker"
)

// Collector yields one batch of records from one provider. Collectors never
// touch the stores.
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]model.Event, error)
}

var ErrUnknownSourceType = errors.New("unknown source type")

// Deps are the shared resources handed to collectors built from config.
type Deps struct {
	HTTP    model.HTTPConfig
	Cache   cache.Cache // nil disables response caching
	Limiter *worker.Limiter
	Robots  *util.RobotsChecker // nil skips robots.txt checks
	Logger  *slog.Logger
}

// NewDeps builds the shared collector resources from cfg.
func NewDeps(cfg *model.Config, logger *slog.Logger) Deps {
	deps := Deps{
		HTTP:    cfg.HTTP,
		Cache:   cache.NewFromConfig(cfg.Cache),
		Limiter: worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize),
		Logger:  logger,
	}
	if cfg.HTTP.RespectRobots {
		deps.Robots = util.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout, newHTTPClient(cfg.HTTP))
	}
	return deps
}

// NewFromConfig builds the collector declared by sc.
func NewFromConfig(sc model.SourceConfig, deps Deps) (Collector, error) {
	if sc.Name == "" {
		return nil, errors.New("source without name")
	}
	switch sc.Type {
	case model.SourceTypeFile:
		if sc.Path == "" {
			return nil, fmt.Errorf("source %s: path is required", sc.Name)
		}
		return NewFileCollector(sc.Name, sc.Path, sc.Provider), nil
	case model.SourceTypeHTTP:
		if sc.URL == "" {
			return nil, fmt.Errorf("source %s: url is required", sc.Name)
		}
		return NewHTTPCollector(sc.Name, sc.URL, sc.Provider, deps), nil
	default:
		return nil, fmt.Errorf("source %s: %w %q", sc.Name, ErrUnknownSourceType, sc.Type)
	}
}

// FromConfig builds every configured collector.
func FromConfig(sources []model.SourceConfig, deps Deps) ([]Collector, error) {
	collectors := make([]Collector, 0, len(sources))
	for _, sc := range sources {
		c, err := NewFromConfig(sc, deps)
		if err != nil {
			return nil, err
		}
		collectors = append(collectors, c)
	}
	return collectors, nil
}
