package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /api/vision/config endpoint so the same JSON
// can be used for both startup configuration and runtime updates.
type TuningConfig struct {
	// Frame admission and classification params
	ProcessingInterval *string  `json:"processing_interval,omitempty"` // duration string like "100ms"
	MinConfidence      *float64 `json:"min_confidence,omitempty"`
	OverlapThreshold   *float64 `json:"overlap_threshold,omitempty"`

	// Stability tracker params
	HistoryDepth      *int     `json:"history_depth,omitempty"`
	HistoryBucketPx   *float64 `json:"history_bucket_px,omitempty"`
	PromoteCount      *int     `json:"promote_count,omitempty"`
	PromoteConfidence *float64 `json:"promote_confidence,omitempty"`
	EvictAfter        *string  `json:"evict_after,omitempty"` // duration string like "2s"
	StableLimit       *int     `json:"stable_limit,omitempty"`
	UpdateInterval    *string  `json:"update_interval,omitempty"` // duration string like "300ms"

	// Change gate params
	GateConfidenceDelta *float64 `json:"gate_confidence_delta,omitempty"`
	GateCenterDeltaPx   *float64 `json:"gate_center_delta_px,omitempty"`

	// Per-class overrides
	DisabledClasses []string           `json:"disabled_classes,omitempty"`
	ClassThresholds map[string]float64 `json:"class_thresholds,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/vision/monitor/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.MinConfidence != nil {
		if *c.MinConfidence < 0 || *c.MinConfidence > 1 {
			return fmt.Errorf("min_confidence must be between 0 and 1, got %f", *c.MinConfidence)
		}
	}

	if c.OverlapThreshold != nil {
		if *c.OverlapThreshold <= 0 || *c.OverlapThreshold > 1 {
			return fmt.Errorf("overlap_threshold must be in (0, 1], got %f", *c.OverlapThreshold)
		}
	}

	if c.PromoteConfidence != nil {
		if *c.PromoteConfidence < 0 || *c.PromoteConfidence > 1 {
			return fmt.Errorf("promote_confidence must be between 0 and 1, got %f", *c.PromoteConfidence)
		}
	}

	if c.HistoryDepth != nil && *c.HistoryDepth < 1 {
		return fmt.Errorf("history_depth must be at least 1, got %d", *c.HistoryDepth)
	}

	if c.HistoryBucketPx != nil && *c.HistoryBucketPx <= 0 {
		return fmt.Errorf("history_bucket_px must be positive, got %f", *c.HistoryBucketPx)
	}

	if c.PromoteCount != nil && *c.PromoteCount < 1 {
		return fmt.Errorf("promote_count must be at least 1, got %d", *c.PromoteCount)
	}

	if c.StableLimit != nil && *c.StableLimit < 1 {
		return fmt.Errorf("stable_limit must be at least 1, got %d", *c.StableLimit)
	}

	if c.GateConfidenceDelta != nil && *c.GateConfidenceDelta <= 0 {
		return fmt.Errorf("gate_confidence_delta must be positive, got %f", *c.GateConfidenceDelta)
	}

	if c.GateCenterDeltaPx != nil && *c.GateCenterDeltaPx <= 0 {
		return fmt.Errorf("gate_center_delta_px must be positive, got %f", *c.GateCenterDeltaPx)
	}

	// Validate duration strings can be parsed if set
	if c.ProcessingInterval != nil && *c.ProcessingInterval != "" {
		if _, err := time.ParseDuration(*c.ProcessingInterval); err != nil {
			return fmt.Errorf("invalid processing_interval '%s': %w", *c.ProcessingInterval, err)
		}
	}
	if c.UpdateInterval != nil && *c.UpdateInterval != "" {
		if _, err := time.ParseDuration(*c.UpdateInterval); err != nil {
			return fmt.Errorf("invalid update_interval '%s': %w", *c.UpdateInterval, err)
		}
	}
	if c.EvictAfter != nil && *c.EvictAfter != "" {
		if _, err := time.ParseDuration(*c.EvictAfter); err != nil {
			return fmt.Errorf("invalid evict_after '%s': %w", *c.EvictAfter, err)
		}
	}

	for class, threshold := range c.ClassThresholds {
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("class_thresholds[%s] must be between 0 and 1, got %f", class, threshold)
		}
	}

	return nil
}

// GetProcessingInterval parses and returns the ProcessingInterval as a time.Duration.
func (c *TuningConfig) GetProcessingInterval() time.Duration {
	if c.ProcessingInterval == nil || *c.ProcessingInterval == "" {
		return 100 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.ProcessingInterval)
	if err != nil {
		return 100 * time.Millisecond // default on parse error
	}
	return d
}

// GetUpdateInterval parses and returns the UpdateInterval as a time.Duration.
func (c *TuningConfig) GetUpdateInterval() time.Duration {
	if c.UpdateInterval == nil || *c.UpdateInterval == "" {
		return 300 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.UpdateInterval)
	if err != nil {
		return 300 * time.Millisecond // default on parse error
	}
	return d
}

// GetEvictAfter parses and returns the EvictAfter as a time.Duration.
func (c *TuningConfig) GetEvictAfter() time.Duration {
	if c.EvictAfter == nil || *c.EvictAfter == "" {
		return 2 * time.Second // default
	}
	d, err := time.ParseDuration(*c.EvictAfter)
	if err != nil {
		return 2 * time.Second // default on parse error
	}
	return d
}

// GetMinConfidence returns the min_confidence value or the default.
func (c *TuningConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0.25
	}
	return *c.MinConfidence
}

// GetOverlapThreshold returns the overlap_threshold value or the default.
func (c *TuningConfig) GetOverlapThreshold() float64 {
	if c.OverlapThreshold == nil {
		return 0.3
	}
	return *c.OverlapThreshold
}

// GetHistoryDepth returns the history_depth value or the default.
func (c *TuningConfig) GetHistoryDepth() int {
	if c.HistoryDepth == nil {
		return 5
	}
	return *c.HistoryDepth
}

// GetHistoryBucketPx returns the history_bucket_px value or the default.
func (c *TuningConfig) GetHistoryBucketPx() float64 {
	if c.HistoryBucketPx == nil {
		return 50.0
	}
	return *c.HistoryBucketPx
}

// GetPromoteCount returns the promote_count value or the default.
func (c *TuningConfig) GetPromoteCount() int {
	if c.PromoteCount == nil {
		return 3
	}
	return *c.PromoteCount
}

// GetPromoteConfidence returns the promote_confidence value or the default.
func (c *TuningConfig) GetPromoteConfidence() float64 {
	if c.PromoteConfidence == nil {
		return 0.6
	}
	return *c.PromoteConfidence
}

// GetStableLimit returns the stable_limit value or the default.
func (c *TuningConfig) GetStableLimit() int {
	if c.StableLimit == nil {
		return 3
	}
	return *c.StableLimit
}

// GetGateConfidenceDelta returns the gate_confidence_delta value or the default.
func (c *TuningConfig) GetGateConfidenceDelta() float64 {
	if c.GateConfidenceDelta == nil {
		return 0.1
	}
	return *c.GateConfidenceDelta
}

// GetGateCenterDeltaPx returns the gate_center_delta_px value or the default.
func (c *TuningConfig) GetGateCenterDeltaPx() float64 {
	if c.GateCenterDeltaPx == nil {
		return 50.0
	}
	return *c.GateCenterDeltaPx
}
