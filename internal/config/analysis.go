package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/banshee-data/plenoptics/internal/imaging"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
const DefaultConfigPath = "config/analysis.defaults.json"

// WorkDirConfigPath is where a work directory keeps its analysis config.
const WorkDirConfigPath = "config/analysis.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// AnalysisConfig holds the parameters of the point-source and depth
// analysis. Fields left out of the JSON fall back to the Get* defaults.
type AnalysisConfig struct {
	ObjectDistanceM       *float64         `json:"object_distance_m,omitempty"`
	ContainmentPercentile *float64         `json:"containment_percentile,omitempty"`
	Binning               *imaging.Binning `json:"binning,omitempty"`
	NumSubSamplesImage    *int             `json:"num_sub_samples_image,omitempty"`
	DepthScan             *DepthScanConfig `json:"depth_scan,omitempty"`
}

// DepthScanConfig spans the object distances probed when reconstructing the
// depth of a point source. Steps are spaced geometrically.
type DepthScanConfig struct {
	MinObjectDistanceM *float64 `json:"min_object_distance_m,omitempty"`
	MaxObjectDistanceM *float64 `json:"max_object_distance_m,omitempty"`
	NumSteps           *int     `json:"num_steps,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// Defaults.
const (
	defaultObjectDistanceM       = 1e6
	defaultContainmentPercentile = 0.8
	defaultNumSubSamplesImage    = 1000
	defaultMinObjectDistanceM    = 2.7e3
	defaultMaxObjectDistanceM    = 2.7e4
	defaultDepthScanSteps        = 32
)

func defaultBinning() imaging.Binning {
	return imaging.Binning{PixelAngleDeg: 0.0667, NumPixelCx: 128, NumPixelCy: 128}
}

// EmptyAnalysisConfig returns a config with every field unset.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// DefaultAnalysisConfig returns a config with every field set to its
// default.
func DefaultAnalysisConfig() *AnalysisConfig {
	b := defaultBinning()
	return &AnalysisConfig{
		ObjectDistanceM:       ptrFloat64(defaultObjectDistanceM),
		ContainmentPercentile: ptrFloat64(defaultContainmentPercentile),
		Binning:               &b,
		NumSubSamplesImage:    ptrInt(defaultNumSubSamplesImage),
		DepthScan: &DepthScanConfig{
			MinObjectDistanceM: ptrFloat64(defaultMinObjectDistanceM),
			MaxObjectDistanceM: ptrFloat64(defaultMaxObjectDistanceM),
			NumSteps:           ptrInt(defaultDepthScanSteps),
		},
	}
}

// ParseAnalysisConfig decodes and validates a JSON config.
func ParseAnalysisConfig(data []byte) (*AnalysisConfig, error) {
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("config too large: %d bytes (max %d)", len(data), maxFileSize)
	}
	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseAnalysisConfig(data)
}

// Validate checks the values that are set.
func (c *AnalysisConfig) Validate() error {
	if c.ObjectDistanceM != nil {
		if d := *c.ObjectDistanceM; !(d > 0) {
			return fmt.Errorf("object_distance_m must be positive, got %v", d)
		}
	}
	if c.ContainmentPercentile != nil {
		if p := *c.ContainmentPercentile; !(p > 0 && p <= 1) {
			return fmt.Errorf("containment_percentile must be in (0, 1], got %v", p)
		}
	}
	if c.Binning != nil {
		if err := c.Binning.Validate(); err != nil {
			return fmt.Errorf("binning: %w", err)
		}
	}
	if c.NumSubSamplesImage != nil && *c.NumSubSamplesImage < 1 {
		return fmt.Errorf("num_sub_samples_image must be at least 1, got %d", *c.NumSubSamplesImage)
	}
	if c.DepthScan != nil {
		if err := c.DepthScan.validate(); err != nil {
			return fmt.Errorf("depth_scan: %w", err)
		}
	}
	return nil
}

func (d *DepthScanConfig) validate() error {
	lo, hi := d.GetMinObjectDistanceM(), d.GetMaxObjectDistanceM()
	if !(lo > 0) || math.IsInf(hi, 0) {
		return fmt.Errorf("distances must be positive and finite, got [%v, %v]", lo, hi)
	}
	if !(hi > lo) {
		return fmt.Errorf("max_object_distance_m (%v) must exceed min_object_distance_m (%v)", hi, lo)
	}
	if d.NumSteps != nil && *d.NumSteps < 2 {
		return fmt.Errorf("num_steps must be at least 2, got %d", *d.NumSteps)
	}
	return nil
}

// GetObjectDistanceM returns the focus distance for point-source reports.
func (c *AnalysisConfig) GetObjectDistanceM() float64 {
	if c.ObjectDistanceM == nil {
		return defaultObjectDistanceM
	}
	return *c.ObjectDistanceM
}

// GetContainmentPercentile returns the containment fraction or the default.
func (c *AnalysisConfig) GetContainmentPercentile() float64 {
	if c.ContainmentPercentile == nil {
		return defaultContainmentPercentile
	}
	return *c.ContainmentPercentile
}

// GetBinning returns a copy of the image binning or the default.
func (c *AnalysisConfig) GetBinning() imaging.Binning {
	if c.Binning == nil {
		return defaultBinning()
	}
	return *c.Binning
}

// GetNumSubSamplesImage returns the Gaussian draws per beam for images.
func (c *AnalysisConfig) GetNumSubSamplesImage() int {
	if c.NumSubSamplesImage == nil {
		return defaultNumSubSamplesImage
	}
	return *c.NumSubSamplesImage
}

// GetDepthScan returns the depth scan section, never nil.
func (c *AnalysisConfig) GetDepthScan() *DepthScanConfig {
	if c.DepthScan == nil {
		return &DepthScanConfig{}
	}
	return c.DepthScan
}

func (d *DepthScanConfig) GetMinObjectDistanceM() float64 {
	if d.MinObjectDistanceM == nil {
		return defaultMinObjectDistanceM
	}
	return *d.MinObjectDistanceM
}

func (d *DepthScanConfig) GetMaxObjectDistanceM() float64 {
	if d.MaxObjectDistanceM == nil {
		return defaultMaxObjectDistanceM
	}
	return *d.MaxObjectDistanceM
}

func (d *DepthScanConfig) GetNumSteps() int {
	if d.NumSteps == nil {
		return defaultDepthScanSteps
	}
	return *d.NumSteps
}
