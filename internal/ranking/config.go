package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// TrendingWeights defines the factor weights for trending score composition.
type TrendingWeights struct {
	Volume     float64 `json:"volume"`     // Weight for interaction volume (default: 0.25)
	Engagement float64 `json:"engagement"` // Weight for kind-weighted engagement (default: 0.30)
	Recency    float64 `json:"recency"`    // Weight for interaction recency (default: 0.25)
	Geo        float64 `json:"geo"`        // Weight for geographic proximity (default: 0.15)
	Relevance  float64 `json:"relevance"`  // Weight for base article relevance (default: 0.05)
}

// Weights holds all ranking weight configurations.
type Weights struct {
	Trending TrendingWeights `json:"trending"`
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight configurations
}

// DefaultWeights returns the default ranking weight configuration.
//
// Trending formula: score = (volume*0.25 + engagement*0.30 + recency*0.25 +
// geo*0.15 + relevance*0.05) * 100
// - Engagement carries the most weight: a share is a stronger signal than a view
// - Volume and recency balance raw popularity against freshness
// - Geo keeps trending local to the requesting cluster
// - Base relevance breaks ties for articles with no interactions
func DefaultWeights() *Weights {
	return &Weights{
		Trending: TrendingWeights{
			Volume:     0.25,
			Engagement: 0.30,
			Recency:    0.25,
			Geo:        0.15,
			Relevance:  0.05,
		},
	}
}

// LoadCalibration loads ranking weights from a JSON calibration file.
// If the file doesn't exist or can't be parsed, returns default weights with
// an error so callers degrade gracefully. Partial configurations are merged
// with defaults.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration merges override weights with base weights. Only non-zero
// values from the override are applied, allowing partial calibration files.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}
	if override == nil {
		result := *base
		return &result
	}

	result := *base

	if override.Trending.Volume != 0 {
		result.Trending.Volume = override.Trending.Volume
	}
	if override.Trending.Engagement != 0 {
		result.Trending.Engagement = override.Trending.Engagement
	}
	if override.Trending.Recency != 0 {
		result.Trending.Recency = override.Trending.Recency
	}
	if override.Trending.Geo != 0 {
		result.Trending.Geo = override.Trending.Geo
	}
	if override.Trending.Relevance != 0 {
		result.Trending.Relevance = override.Trending.Relevance
	}

	return &result
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	if loaded.Trending.Volume != defaults.Trending.Volume {
		overrides = append(overrides, fmt.Sprintf("trending.volume: %.2f -> %.2f",
			defaults.Trending.Volume, loaded.Trending.Volume))
	}
	if loaded.Trending.Engagement != defaults.Trending.Engagement {
		overrides = append(overrides, fmt.Sprintf("trending.engagement: %.2f -> %.2f",
			defaults.Trending.Engagement, loaded.Trending.Engagement))
	}
	if loaded.Trending.Recency != defaults.Trending.Recency {
		overrides = append(overrides, fmt.Sprintf("trending.recency: %.2f -> %.2f",
			defaults.Trending.Recency, loaded.Trending.Recency))
	}
	if loaded.Trending.Geo != defaults.Trending.Geo {
		overrides = append(overrides, fmt.Sprintf("trending.geo: %.2f -> %.2f",
			defaults.Trending.Geo, loaded.Trending.Geo))
	}
	if loaded.Trending.Relevance != defaults.Trending.Relevance {
		overrides = append(overrides, fmt.Sprintf("trending.relevance: %.2f -> %.2f",
			defaults.Trending.Relevance, loaded.Trending.Relevance))
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
