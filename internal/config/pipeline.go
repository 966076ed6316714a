// Package config loads the voxelization pipeline configuration from JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/geometry"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/voxelgrid"
	"github.com/ToyotaResearchInstitute/voxelized-geometry-tools/internal/voxelize"
)

// PipelineConfig is the root configuration for the voxelization pipeline.
// All fields are pointers so a partial JSON file only overrides what it
// names; the Get* methods supply defaults for everything else.
type PipelineConfig struct {
	// Static environment grid
	GridFrame       *string  `json:"grid_frame,omitempty"`
	GridOriginX     *float64 `json:"grid_origin_x,omitempty"`
	GridOriginY     *float64 `json:"grid_origin_y,omitempty"`
	GridOriginZ     *float64 `json:"grid_origin_z,omitempty"`
	GridOriginRoll  *float64 `json:"grid_origin_roll,omitempty"`
	GridOriginPitch *float64 `json:"grid_origin_pitch,omitempty"`
	GridOriginYaw   *float64 `json:"grid_origin_yaw,omitempty"`
	Resolution      *float64 `json:"resolution,omitempty"`
	NumXCells       *int     `json:"num_x_cells,omitempty"`
	NumYCells       *int     `json:"num_y_cells,omitempty"`
	NumZCells       *int     `json:"num_z_cells,omitempty"`

	// DefaultOccupancy seeds every cell before voxelization; 0.5 = unknown.
	DefaultOccupancy *float64 `json:"default_occupancy,omitempty"`

	// Raycasting params
	StepSizeMultiplier *float64 `json:"step_size_multiplier,omitempty"`

	// Consensus filter params
	PercentSeenFree        *float64 `json:"percent_seen_free,omitempty"`
	OutlierPointsThreshold *int     `json:"outlier_points_threshold,omitempty"`
	NumCamerasSeenFree     *int     `json:"num_cameras_seen_free,omitempty"`

	// Backend selection: "best", "cpu", "opencl", "cuda" or "sim"
	Backend *string `json:"backend,omitempty"`
	// NumThreads bounds CPU raycasting parallelism; 0 means GOMAXPROCS.
	NumThreads *int `json:"num_threads,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyPipelineConfig returns a PipelineConfig with all fields set to nil.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// DefaultPipelineConfig returns a config with every field set to its
// default value.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		GridFrame:              ptrString("world"),
		GridOriginX:            ptrFloat64(0),
		GridOriginY:            ptrFloat64(0),
		GridOriginZ:            ptrFloat64(0),
		GridOriginRoll:         ptrFloat64(0),
		GridOriginPitch:        ptrFloat64(0),
		GridOriginYaw:          ptrFloat64(0),
		Resolution:             ptrFloat64(0.25),
		NumXCells:              ptrInt(40),
		NumYCells:              ptrInt(40),
		NumZCells:              ptrInt(20),
		DefaultOccupancy:       ptrFloat64(0.5),
		StepSizeMultiplier:     ptrFloat64(0.5),
		PercentSeenFree:        ptrFloat64(1.0),
		OutlierPointsThreshold: ptrInt(1),
		NumCamerasSeenFree:     ptrInt(1),
		Backend:                ptrString("best"),
		NumThreads:             ptrInt(0),
	}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file keep their defaults, so
// partial configs are safe.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
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

	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *PipelineConfig) Validate() error {
	if c.Resolution != nil && *c.Resolution <= 0 {
		return fmt.Errorf("resolution must be positive, got %f", *c.Resolution)
	}
	for name, v := range map[string]*int{
		"num_x_cells": c.NumXCells,
		"num_y_cells": c.NumYCells,
		"num_z_cells": c.NumZCells,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, *v)
		}
	}

	if c.DefaultOccupancy != nil {
		if *c.DefaultOccupancy < 0 || *c.DefaultOccupancy > 1 {
			return fmt.Errorf("default_occupancy must be between 0 and 1, got %f", *c.DefaultOccupancy)
		}
	}
	if c.StepSizeMultiplier != nil {
		if *c.StepSizeMultiplier <= 0 || *c.StepSizeMultiplier > 1 {
			return fmt.Errorf("step_size_multiplier must be in (0, 1], got %f", *c.StepSizeMultiplier)
		}
	}
	if c.PercentSeenFree != nil {
		if *c.PercentSeenFree <= 0 || *c.PercentSeenFree > 1 {
			return fmt.Errorf("percent_seen_free must be in (0, 1], got %f", *c.PercentSeenFree)
		}
	}
	if c.OutlierPointsThreshold != nil && *c.OutlierPointsThreshold < 0 {
		return fmt.Errorf("outlier_points_threshold must be non-negative, got %d", *c.OutlierPointsThreshold)
	}
	if c.NumCamerasSeenFree != nil && *c.NumCamerasSeenFree < 0 {
		return fmt.Errorf("num_cameras_seen_free must be non-negative, got %d", *c.NumCamerasSeenFree)
	}
	if c.NumThreads != nil && *c.NumThreads < 0 {
		return fmt.Errorf("num_threads must be non-negative, got %d", *c.NumThreads)
	}

	if c.Backend != nil {
		if _, err := voxelize.ParseBackend(*c.Backend); err != nil {
			return err
		}
	}
	return nil
}

// GetGridFrame returns the grid_frame value or the default.
func (c *PipelineConfig) GetGridFrame() string {
	if c.GridFrame == nil {
		return "world"
	}
	return *c.GridFrame
}

// GetResolution returns the resolution value or the default.
func (c *PipelineConfig) GetResolution() float64 {
	if c.Resolution == nil {
		return 0.25
	}
	return *c.Resolution
}

// GetDefaultOccupancy returns the default_occupancy value or the default.
func (c *PipelineConfig) GetDefaultOccupancy() float64 {
	if c.DefaultOccupancy == nil {
		return 0.5
	}
	return *c.DefaultOccupancy
}

// GetStepSizeMultiplier returns the step_size_multiplier value or the default.
func (c *PipelineConfig) GetStepSizeMultiplier() float64 {
	if c.StepSizeMultiplier == nil {
		return 0.5
	}
	return *c.StepSizeMultiplier
}

// GetNumThreads returns the num_threads value or the default.
func (c *PipelineConfig) GetNumThreads() int {
	if c.NumThreads == nil {
		return 0
	}
	return *c.NumThreads
}

func (c *PipelineConfig) getInt(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func (c *PipelineConfig) getFloat(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// GridOrigin assembles the grid origin pose from the origin fields.
func (c *PipelineConfig) GridOrigin() geometry.Pose {
	return geometry.XYZRPY(
		c.getFloat(c.GridOriginX, 0), c.getFloat(c.GridOriginY, 0), c.getFloat(c.GridOriginZ, 0),
		c.getFloat(c.GridOriginRoll, 0), c.getFloat(c.GridOriginPitch, 0), c.getFloat(c.GridOriginYaw, 0))
}

// GridSizes assembles the grid shape from the resolution and cell counts.
func (c *PipelineConfig) GridSizes() (voxelgrid.Sizes, error) {
	return voxelgrid.NewUniformSizes(c.GetResolution(),
		c.getInt(c.NumXCells, 40), c.getInt(c.NumYCells, 40), c.getInt(c.NumZCells, 20))
}

// FilterOptions assembles the consensus filter settings.
func (c *PipelineConfig) FilterOptions() voxelize.FilterOptions {
	return voxelize.FilterOptions{
		PercentSeenFree:        c.getFloat(c.PercentSeenFree, 1.0),
		OutlierPointsThreshold: int32(c.getInt(c.OutlierPointsThreshold, 1)),
		NumCamerasSeenFree:     int32(c.getInt(c.NumCamerasSeenFree, 1)),
	}
}

// BackendKind resolves the configured backend name.
func (c *PipelineConfig) BackendKind() (voxelize.BackendKind, error) {
	if c.Backend == nil {
		return voxelize.BestAvailable, nil
	}
	return voxelize.ParseBackend(*c.Backend)
}
