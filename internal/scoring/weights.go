package scoring

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Weights are the factor weights of the base score. They should sum to 1.0
// so the weighted sum stays in [0, 1].
type Weights struct {
	Relevance         float64 `yaml:"relevance"`
	Confidence        float64 `yaml:"confidence"`
	Quality           float64 `yaml:"quality"`
	Recency           float64 `yaml:"recency"`
	Uniqueness        float64 `yaml:"uniqueness"`
	SourceReliability float64 `yaml:"source_reliability"`
	Engagement        float64 `yaml:"engagement"`
	Credibility       float64 `yaml:"credibility"`
	Authority         float64 `yaml:"authority"`
	FactualAccuracy   float64 `yaml:"factual_accuracy"`
}

// Tiers are the score thresholds for the quality buckets. They must be
// strictly decreasing: Excellent > Good > Fair.
type Tiers struct {
	Excellent float64 `yaml:"excellent"`
	Good      float64 `yaml:"good"`
	Fair      float64 `yaml:"fair"`
}

// Config is the full scoring configuration, loadable from YAML.
type Config struct {
	Weights        Weights `yaml:"weights"`
	Tiers          Tiers   `yaml:"tiers"`
	OverlapFloor   float64 `yaml:"overlap_floor"`
	StaleAfterDays int     `yaml:"stale_after_days"`
	DiversityBonus float64 `yaml:"diversity_bonus"`
	DiversityTopK  int     `yaml:"diversity_top_k"`
}

// StaleAfter is the age past which results take the staleness penalty.
func (c Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterDays) * 24 * time.Hour
}

// DefaultConfig returns the built-in scoring configuration. The weights
// sum to 1.0.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Relevance:         0.25,
			Confidence:        0.10,
			Quality:           0.15,
			Recency:           0.10,
			Uniqueness:        0.05,
			SourceReliability: 0.10,
			Engagement:        0.05,
			Credibility:       0.08,
			Authority:         0.07,
			FactualAccuracy:   0.05,
		},
		Tiers: Tiers{
			Excellent: 0.8,
			Good:      0.6,
			Fair:      0.4,
		},
		OverlapFloor:   0.1,
		StaleAfterDays: 3 * 365,
		DiversityBonus: 0.05,
		DiversityTopK:  10,
	}
}

// Validate rejects configurations that would distort the model.
func (c Config) Validate() error {
	w := c.Weights
	sum := w.Relevance + w.Confidence + w.Quality + w.Recency + w.Uniqueness +
		w.SourceReliability + w.Engagement + w.Credibility + w.Authority + w.FactualAccuracy
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.3f", sum)
	}
	if !(c.Tiers.Excellent > c.Tiers.Good && c.Tiers.Good > c.Tiers.Fair) {
		return fmt.Errorf("tier thresholds must be strictly decreasing: excellent=%.2f good=%.2f fair=%.2f",
			c.Tiers.Excellent, c.Tiers.Good, c.Tiers.Fair)
	}
	if c.OverlapFloor < 0 || c.OverlapFloor > 1 {
		return fmt.Errorf("overlap_floor must be within [0,1], got %.2f", c.OverlapFloor)
	}
	return nil
}

// Store holds the active scoring configuration behind a lock so readers
// see consistent snapshots while the file watcher swaps in reloads.
type Store struct {
	mu  sync.RWMutex
	cfg Config
}

// NewStore creates a store seeded with cfg.
func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg}
}

// Get returns the current configuration snapshot.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set replaces the configuration after validation.
func (s *Store) Set(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

// LoadFile parses a YAML weights file over the defaults, so a partial file
// only overrides what it names.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read weights file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse weights file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Watch reloads the weights file whenever it changes, keeping the previous
// configuration on any load or validation error. It blocks until ctx is
// done and is meant to run in its own goroutine.
func (s *Store) Watch(ctx context.Context, path string, logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create weights watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch weights file: %w", err)
	}

	logger.Info("Watching scoring weights file", zap.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := LoadFile(path)
			if err != nil {
				logger.Warn("Keeping previous scoring weights after reload failure",
					zap.String("path", path),
					zap.Error(err),
				)
				continue
			}
			if err := s.Set(cfg); err != nil {
				logger.Warn("Rejected reloaded scoring weights", zap.Error(err))
				continue
			}
			logger.Info("Reloaded scoring weights", zap.String("path", path))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Weights watcher error", zap.Error(err))
		}
	}
}
