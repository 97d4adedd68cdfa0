// Package simconfig loads and validates the YAML run configuration
// (spec.md §6), grounded on the teacher's functional-options pattern
// generalized to serializable defaults, parsed with gopkg.in/yaml.v3
// — the same YAML library the rest of the reference corpus reaches
// for configuration.
package simconfig

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full run configuration: topology source, routing and
// controller policy, engine timing, traffic generation, and output
// (spec.md §6).
type Config struct {
	Seed int64 `yaml:"seed"`

	NodesCSV string `yaml:"nodes_csv"`
	LinksCSV string `yaml:"links_csv"`

	PathDBMode      string `yaml:"pathdb_mode"`       // one_shortest|all_shortest|kpath_yen
	KPaths          int    `yaml:"k_paths"`           // kpath_yen target count
	PathSelectMode  string `yaml:"path_select_mode"`  // ecmp|random|fe
	ReroutePolicy   string `yaml:"reroute_policy"`    // oab|greedy
	RerouteTopN     int    `yaml:"reroute_top_n"`
	SrcLimited      bool   `yaml:"src_limited"`

	IdleTimeout       float64 `yaml:"idle_timeout"`
	RetryInterval     float64 `yaml:"retry_interval"`
	CollectInterval   float64 `yaml:"collect_interval"`
	RerouteInterval   float64 `yaml:"reroute_interval"`
	LinkUtilInterval  float64 `yaml:"link_util_interval"`
	TableUtilInterval float64 `yaml:"table_util_interval"`
	MaxTime           float64 `yaml:"max_time"`

	SrcDstMode       string  `yaml:"srcdst_mode"` // uniform|gravity|antigravity
	SizeMode         string  `yaml:"size_mode"`   // uniform|bimodal|lognormal
	ArrivalMode      string  `yaml:"arrival_mode"` // saturate|const|exp
	SizeMin          float64 `yaml:"size_min"`
	SizeMax          float64 `yaml:"size_max"`
	BimodalSmallProb float64 `yaml:"bimodal_small_prob"`
	BimodalSmallSize float64 `yaml:"bimodal_small_size"`
	BimodalLargeSize float64 `yaml:"bimodal_large_size"`
	LogNormalMu      float64 `yaml:"lognormal_mu"`
	LogNormalSigma   float64 `yaml:"lognormal_sigma"`
	RateCap          float64 `yaml:"rate_cap"` // 0 means unlimited
	ConstInterval    float64 `yaml:"const_interval"`
	ConstCutoff      float64 `yaml:"const_cutoff"`
	ExpMeanInterval  float64 `yaml:"exp_mean_interval"`
	ArrInitSpread    float64 `yaml:"arr_init_spread"`

	OutputDir  string  `yaml:"output_dir"`
	IgnoreHead float64 `yaml:"ignore_head"`
}

// Default returns a Config with the same baseline values the original
// simulator shipped (spec.md §6 defaults).
func Default() Config {
	return Config{
		Seed:              1,
		PathDBMode:        "all_shortest",
		PathSelectMode:    "ecmp",
		ReroutePolicy:     "oab",
		RerouteTopN:       5,
		IdleTimeout:       10,
		RetryInterval:     1,
		CollectInterval:   5,
		RerouteInterval:   15,
		LinkUtilInterval:  5,
		TableUtilInterval: 5,
		MaxTime:           600,
		SrcDstMode:        "uniform",
		SizeMode:          "uniform",
		ArrivalMode:       "exp",
		SizeMin:           1e6,
		SizeMax:           1e7,
		BimodalSmallProb:  0.8,
		BimodalSmallSize:  1e5,
		BimodalLargeSize:  1e8,
		LogNormalMu:       15,
		LogNormalSigma:    2,
		ExpMeanInterval:   1,
		ConstCutoff:       0.1,
		ArrInitSpread:     1,
		OutputDir:         "out",
		IgnoreHead:        0.1,
	}
}

// Load reads and validates a YAML config file, layering it over Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("simconfig: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("simconfig: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var (
	ErrMissingTopology  = errors.New("simconfig: nodes_csv and links_csv are required")
	ErrInvalidPathDB    = errors.New("simconfig: pathdb_mode must be one_shortest, all_shortest, or kpath_yen")
	ErrInvalidPathMode  = errors.New("simconfig: path_select_mode must be ecmp, random, or fe")
	ErrInvalidReroute   = errors.New("simconfig: reroute_policy must be oab or greedy")
	ErrInvalidSrcDst    = errors.New("simconfig: srcdst_mode must be uniform, gravity, or antigravity")
	ErrInvalidSize      = errors.New("simconfig: size_mode must be uniform, bimodal, or lognormal")
	ErrInvalidArrival   = errors.New("simconfig: arrival_mode must be saturate, const, or exp")
	ErrNonPositiveTimer = errors.New("simconfig: timing interval must be > 0")
	ErrIgnoreHeadRange  = errors.New("simconfig: ignore_head must be in [0,1)")
)

// Validate rejects a Config spec.md §7 says the run should refuse to
// start with, rather than fail confusingly mid-run.
func (c Config) Validate() error {
	if c.NodesCSV == "" || c.LinksCSV == "" {
		return ErrMissingTopology
	}
	switch c.PathDBMode {
	case "one_shortest", "all_shortest", "kpath_yen":
	default:
		return ErrInvalidPathDB
	}
	switch c.PathSelectMode {
	case "ecmp", "random", "fe":
	default:
		return ErrInvalidPathMode
	}
	switch c.ReroutePolicy {
	case "oab", "greedy":
	default:
		return ErrInvalidReroute
	}
	switch c.SrcDstMode {
	case "uniform", "gravity", "antigravity":
	default:
		return ErrInvalidSrcDst
	}
	switch c.SizeMode {
	case "uniform", "bimodal", "lognormal":
	default:
		return ErrInvalidSize
	}
	switch c.ArrivalMode {
	case "saturate", "const", "exp":
	default:
		return ErrInvalidArrival
	}
	if c.IdleTimeout <= 0 || c.RetryInterval <= 0 {
		return ErrNonPositiveTimer
	}
	if c.IgnoreHead < 0 || c.IgnoreHead >= 1 {
		return ErrIgnoreHeadRange
	}
	return nil
}

// EffectiveRateCap converts the YAML's 0-means-unlimited convention
// into the +Inf the allocator and flow model expect.
func (c Config) EffectiveRateCap() float64 {
	if c.RateCap <= 0 {
		return math.Inf(1)
	}
	return c.RateCap
}
