package application

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-geoscore/internal/ports"
)

// ConfigLoader parses, validates and caches scoring configuration.
// Documents are overlaid on DefaultScoringConfig, so they only need to name
// the values they change. Validated configurations are cached by the
// SHA256 hash of their normalized form.
type ConfigLoader struct {
	// cache stores validated configurations indexed by SHA256 hash.
	cache map[string]ScoringConfig
	// cacheMu provides thread-safe access to the cache map.
	cacheMu sync.RWMutex
	// sf prevents duplicate validation when several goroutines load the
	// same configuration simultaneously.
	sf singleflight.Group
}

// NewConfigLoader creates a loader with an empty cache.
func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{cache: make(map[string]ScoringConfig)}
}

// LoadFromFile loads a scoring configuration from a YAML file.
// A missing file yields a *ports.ConfigError wrapping ports.ErrConfigNotFound.
func (cl *ConfigLoader) LoadFromFile(path string) (ScoringConfig, error) {
	// Clean the path to prevent directory traversal attacks.
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ScoringConfig{}, ports.NewConfigError(cleanPath, fmt.Errorf("%w: %v", ports.ErrConfigNotFound, err))
		}
		return ScoringConfig{}, ports.NewConfigError(cleanPath, fmt.Errorf("failed to read file: %w", err))
	}

	cfg, err := cl.load(data)
	if err != nil {
		return ScoringConfig{}, ports.NewConfigError(cleanPath, err)
	}
	return cfg, nil
}

// LoadFromReader loads a scoring configuration from r.
func (cl *ConfigLoader) LoadFromReader(r io.Reader) (ScoringConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ScoringConfig{}, fmt.Errorf("failed to read config: %w", err)
	}
	return cl.load(data)
}

// load parses data, then validates it once per distinct configuration.
func (cl *ConfigLoader) load(data []byte) (ScoringConfig, error) {
	cfg, err := parseScoringYAML(data)
	if err != nil {
		return ScoringConfig{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Hash the normalized config, not raw bytes, so formatting differences
	// share a cache entry.
	hash, err := configHash(cfg)
	if err != nil {
		return ScoringConfig{}, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := cl.sf.Do(hash, func() (any, error) {
		if cached, ok := cl.cached(hash); ok {
			return cached, nil
		}

		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}

		cl.cacheMu.Lock()
		cl.cache[hash] = cfg
		cl.cacheMu.Unlock()
		return cfg, nil
	})
	if err != nil {
		return ScoringConfig{}, err
	}

	return cloneConfig(v.(ScoringConfig)), nil
}

func (cl *ConfigLoader) cached(hash string) (ScoringConfig, bool) {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()

	cfg, ok := cl.cache[hash]
	return cfg, ok
}

// ClearCache drops every cached configuration.
func (cl *ConfigLoader) ClearCache() {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache = make(map[string]ScoringConfig)
}

// LoadScoringConfig reads and validates the YAML configuration at path.
// It is a convenience for callers that load a single file once.
func LoadScoringConfig(path string) (ScoringConfig, error) {
	return NewConfigLoader().LoadFromFile(path)
}

// parseScoringYAML uses strict decoding over the defaults so that typos in
// key names are reported instead of silently ignored.
func parseScoringYAML(data []byte) (ScoringConfig, error) {
	cfg := DefaultScoringConfig()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Strict mode - fail on unknown fields.

	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty or comment-only document.
			return cfg, nil
		}
		return ScoringConfig{}, fmt.Errorf("YAML decode failed: %w", err)
	}
	return cfg, nil
}

// configHash computes the SHA256 hash of a normalized ScoringConfig.
func configHash(cfg ScoringConfig) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

// cloneConfig copies the slices of cfg so callers cannot mutate the cache.
func cloneConfig(cfg ScoringConfig) ScoringConfig {
	cfg.Detection.Strategies = append([]string(nil), cfg.Detection.Strategies...)
	return cfg
}
