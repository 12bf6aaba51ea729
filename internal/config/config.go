// Public domain.

// Package config reads and validates kbpost configuration.
//
// Configuration is a YAML document.  Keys not present keep the values of
// Default.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/soniakeys/unit"
	"gopkg.in/yaml.v3"

	"github.com/soniakeys/kbpost/search"
)

// ErrConfig is wrapped by all configuration errors.
var ErrConfig = errors.New("configuration error")

// Filter types.
const (
	FilterSigmaG         = "clipped_sigmaG"
	FilterClippedAverage = "clipped_average"
	FilterKalman         = "kalman"
)

// SigmaG statistics.
const (
	StatLH   = "lh"
	StatFlux = "flux"
	StatBoth = "both"
)

// Cluster feature types and functions.
const (
	ClusterAll         = "all"
	ClusterPosition    = "position"
	ClusterMidPosition = "mid_position"

	FuncDBSCAN = "DBSCAN"
	FuncOPTICS = "OPTICS"
)

// Config holds every tunable of the pipeline.
type Config struct {
	NumCores int `yaml:"num_cores"`

	// streaming
	LHLevel   float64 `yaml:"lh_level"`
	MaxLH     float64 `yaml:"max_lh"`
	ChunkSize int     `yaml:"chunk_size"`

	// light curve filtering
	FilterType       string     `yaml:"filter_type"`
	SigmaGFilterType string     `yaml:"sigmaG_filter_type"`
	SigmaGLims       [2]float64 `yaml:"sigmaG_lims"`
	SigmaGNSigma     float64    `yaml:"sigmaG_n_sigma"`
	ClipNegative     bool       `yaml:"clip_negative"`
	NumClipped       int        `yaml:"num_clipped"`
	ClippedAveNSigma float64    `yaml:"clipped_average_n_sigma"`
	LowerLHLimit     float64    `yaml:"lower_lh_limit"`

	// stamp filtering
	DoStampFilter  bool       `yaml:"do_stamp_filter"`
	StampType      string     `yaml:"stamp_type"`
	StampRadius    int        `yaml:"stamp_radius"`
	StampChunkSize int        `yaml:"stamp_chunk_size"`
	CenterThresh   float64    `yaml:"center_thresh"`
	PeakOffset     [2]float64 `yaml:"peak_offset"`
	MomLims        [5]float64 `yaml:"mom_lims"`

	// clustering
	DoClustering    bool               `yaml:"do_clustering"`
	ClusterType     string             `yaml:"cluster_type"`
	ClusterFunction string             `yaml:"cluster_function"`
	Eps             float64            `yaml:"eps"`
	ClusterArgs     map[string]float64 `yaml:"cluster_args"`
	VLim            [2]float64         `yaml:"v_lim"`   // pixels per day
	AngLim          [2]float64         `yaml:"ang_lim"` // degrees

	AllStamps bool `yaml:"all_stamps"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		NumCores: 1,

		LHLevel:   10,
		MaxLH:     1e9,
		ChunkSize: 500000,

		FilterType:       FilterSigmaG,
		SigmaGFilterType: StatLH,
		SigmaGLims:       [2]float64{25, 75},
		SigmaGNSigma:     2,
		NumClipped:       5,
		ClippedAveNSigma: 4,
		LowerLHLimit:     -100,

		DoStampFilter:  true,
		StampType:      "sum",
		StampRadius:    10,
		StampChunkSize: 1000000,
		CenterThresh:   .03,
		PeakOffset:     [2]float64{2, 2},
		MomLims:        [5]float64{35.5, 35.5, 1, .25, .25},

		DoClustering:    true,
		ClusterType:     ClusterAll,
		ClusterFunction: FuncDBSCAN,
		Eps:             .03,
		VLim:            [2]float64{92, 526},
		AngLim:          [2]float64{-12, 12},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(fn string) (*Config, error) {
	b, err := os.ReadFile(fn)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", ErrConfig, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// AngleLimits returns AngLim as angles.
func (c *Config) AngleLimits() (lo, hi unit.Angle) {
	return unit.AngleFromDeg(c.AngLim[0]), unit.AngleFromDeg(c.AngLim[1])
}

// Stamp returns the parsed stamp type.  Validate has checked it.
func (c *Config) Stamp() search.StampMode {
	m, _ := search.ParseStampMode(c.StampType)
	return m
}

// Validate reports the first problem found, wrapped in ErrConfig.
func (c *Config) Validate() error {
	bad := func(format string, a ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, a...))
	}
	switch c.FilterType {
	case FilterSigmaG, FilterClippedAverage, FilterKalman:
	default:
		return bad("unknown filter_type %q", c.FilterType)
	}
	switch c.SigmaGFilterType {
	case StatLH, StatFlux, StatBoth:
	default:
		return bad("unknown sigmaG_filter_type %q", c.SigmaGFilterType)
	}
	if lo, hi := c.SigmaGLims[0], c.SigmaGLims[1]; !(lo > 0 && lo < hi && hi < 100) {
		return bad("sigmaG_lims [%g, %g] must satisfy 0 < lo < hi < 100", lo, hi)
	}
	if _, err := search.ParseStampMode(c.StampType); err != nil {
		return bad("%v", err)
	}
	switch c.ClusterType {
	case ClusterAll, ClusterPosition, ClusterMidPosition:
	default:
		return bad("unknown cluster_type %q", c.ClusterType)
	}
	switch c.ClusterFunction {
	case FuncDBSCAN, FuncOPTICS:
	default:
		return bad("unknown cluster_function %q", c.ClusterFunction)
	}
	for k := range c.ClusterArgs {
		switch k {
		case "eps", "max_eps", "min_samples":
		default:
			return bad("unknown cluster_args key %q", k)
		}
	}
	switch {
	case c.ChunkSize <= 0:
		return bad("chunk_size must be positive")
	case c.StampChunkSize <= 0:
		return bad("stamp_chunk_size must be positive")
	case c.StampRadius <= 0:
		return bad("stamp_radius must be positive")
	case c.NumClipped < 0:
		return bad("num_clipped must not be negative")
	case c.Eps <= 0:
		return bad("eps must be positive")
	case !(c.VLim[0] < c.VLim[1]):
		return bad("v_lim [%g, %g] is empty", c.VLim[0], c.VLim[1])
	case !(c.AngLim[0] < c.AngLim[1]):
		return bad("ang_lim [%g, %g] is empty", c.AngLim[0], c.AngLim[1])
	}
	return nil
}
