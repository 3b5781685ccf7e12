// Package config loads the run configuration: chip clock, timeouts, runtime
// limits and the per-subsystem latency profile that drives trigger ordering.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v2"

	"maxpower/internal/regmap"
)

// Timing is the expected behavior of one subsystem once triggered.
type Timing struct {
	// Latency is the time from trigger to completion.
	Latency time.Duration `yaml:"latency"`
	// Onset is the time from trigger until the subsystem draws full load.
	Onset time.Duration `yaml:"onset"`
}

// Faults lists subsystems the simulated chip should misbehave on.
type Faults struct {
	Stuck           []string `yaml:"stuck"`
	BusyBeforeEpoch []string `yaml:"busy_before_epoch"`
}

// Config is the full run configuration.
type Config struct {
	ClockPeriod   time.Duration     `yaml:"clock_period"`
	EpochTimeout  time.Duration     `yaml:"epoch_timeout"`
	ResultTimeout time.Duration     `yaml:"result_timeout"`
	Cores         int               `yaml:"cores"`
	StackBudget   int               `yaml:"stack_budget"`
	MarkerPin     uint              `yaml:"marker_pin"`
	Subsystems    map[string]Timing `yaml:"subsystems"`
	Faults        Faults            `yaml:"faults"`
}

// SubsystemIDs is every subsystem the epoch drives, in lexical order.
var SubsystemIDs = []string{
	regmap.BlockADC,
	regmap.BlockAES,
	regmap.BlockCSRNG,
	regmap.BlockHMAC,
	regmap.BlockI2C0,
	regmap.BlockI2C1,
	regmap.BlockI2C2,
	regmap.BlockKMAC,
	regmap.BlockSPIHost1,
	regmap.BlockVerifier,
}

// Default returns the built-in profile. The ADC is both the slowest block and
// the slowest to draw load (its power-up time), so it is triggered first and
// the marker goes up right before it.
func Default() Config {
	return Config{
		ClockPeriod:   10 * time.Nanosecond,
		EpochTimeout:  time.Millisecond,
		ResultTimeout: 10 * time.Millisecond,
		Cores:         1,
		StackBudget:   4096,
		MarkerPin:     0,
		Subsystems: map[string]Timing{
			regmap.BlockADC:      {Latency: 2 * time.Millisecond, Onset: 150 * time.Microsecond},
			regmap.BlockI2C0:     {Latency: 600 * time.Microsecond},
			regmap.BlockI2C1:     {Latency: 600 * time.Microsecond},
			regmap.BlockI2C2:     {Latency: 600 * time.Microsecond},
			regmap.BlockVerifier: {Latency: 400 * time.Microsecond},
			regmap.BlockSPIHost1: {Latency: 12 * time.Microsecond},
			regmap.BlockCSRNG:    {Latency: 5 * time.Microsecond},
			regmap.BlockHMAC:     {Latency: 3 * time.Microsecond},
			regmap.BlockKMAC:     {Latency: 2 * time.Microsecond},
			regmap.BlockAES:      {Latency: 600 * time.Nanosecond},
		},
	}
}

// Load reads a YAML file and overlays it on Default. Unknown keys are
// rejected. A subsystem entry overrides only the fields it sets.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse is Load without the file read.
func Parse(b []byte) (Config, error) {
	var file Config
	if err := yaml.UnmarshalStrict(b, &file); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg := Default()
	cfg.overlay(file)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) overlay(o Config) {
	if o.ClockPeriod != 0 {
		c.ClockPeriod = o.ClockPeriod
	}
	if o.EpochTimeout != 0 {
		c.EpochTimeout = o.EpochTimeout
	}
	if o.ResultTimeout != 0 {
		c.ResultTimeout = o.ResultTimeout
	}
	if o.Cores != 0 {
		c.Cores = o.Cores
	}
	if o.StackBudget != 0 {
		c.StackBudget = o.StackBudget
	}
	if o.MarkerPin != 0 {
		c.MarkerPin = o.MarkerPin
	}
	for id, t := range o.Subsystems {
		cur := c.Subsystems[id]
		if t.Latency != 0 {
			cur.Latency = t.Latency
		}
		if t.Onset != 0 {
			cur.Onset = t.Onset
		}
		c.Subsystems[id] = cur
	}
	c.Faults.Stuck = append(c.Faults.Stuck, o.Faults.Stuck...)
	c.Faults.BusyBeforeEpoch = append(c.Faults.BusyBeforeEpoch, o.Faults.BusyBeforeEpoch...)
}

// Validate checks every field and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	if c.ClockPeriod <= 0 {
		errs = append(errs, errors.New("clock_period must be positive"))
	}
	if c.EpochTimeout <= 0 {
		errs = append(errs, errors.New("epoch_timeout must be positive"))
	}
	if c.ResultTimeout <= 0 {
		errs = append(errs, errors.New("result_timeout must be positive"))
	}
	if c.Cores < 1 {
		errs = append(errs, fmt.Errorf("cores must be at least 1, got %d", c.Cores))
	}
	if c.StackBudget < 0 {
		errs = append(errs, fmt.Errorf("stack_budget must not be negative, got %d", c.StackBudget))
	}
	if c.MarkerPin > 15 {
		errs = append(errs, fmt.Errorf("marker_pin must be in [0, 15], got %d", c.MarkerPin))
	}

	known := make(map[string]bool, len(SubsystemIDs))
	for _, id := range SubsystemIDs {
		known[id] = true
		if _, ok := c.Subsystems[id]; !ok {
			errs = append(errs, fmt.Errorf("subsystems.%s: missing timing", id))
		}
	}
	ids := make([]string, 0, len(c.Subsystems))
	for id := range c.Subsystems {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		t := c.Subsystems[id]
		if !known[id] {
			errs = append(errs, fmt.Errorf("subsystems.%s: unknown subsystem", id))
			continue
		}
		if t.Latency <= 0 {
			errs = append(errs, fmt.Errorf("subsystems.%s.latency must be positive", id))
		}
		if t.Onset < 0 || t.Onset > t.Latency {
			errs = append(errs, fmt.Errorf("subsystems.%s.onset must be in [0, latency]", id))
		}
	}

	// The marker goes up before the first trigger write, so the first
	// subsystem triggered must also be the slowest to draw load.
	if first, ok := c.firstTrigger(known); ok {
		for _, id := range ids {
			t := c.Subsystems[id]
			if known[id] && t.Onset > c.Subsystems[first].Onset {
				errs = append(errs, fmt.Errorf("subsystems.%s.onset %s exceeds the onset of %s (%s), which triggers first",
					id, t.Onset, first, c.Subsystems[first].Onset))
			}
		}
	}

	faulted := make(map[string]string)
	check := func(kind string, list []string) {
		for _, id := range list {
			if !known[id] {
				errs = append(errs, fmt.Errorf("faults.%s: unknown subsystem %q", kind, id))
				continue
			}
			if prev, ok := faulted[id]; ok {
				errs = append(errs, fmt.Errorf("faults.%s: %q already listed under %s", kind, id, prev))
				continue
			}
			faulted[id] = kind
		}
	}
	check("stuck", c.Faults.Stuck)
	check("busy_before_epoch", c.Faults.BusyBeforeEpoch)

	return errors.Join(errs...)
}

// firstTrigger is the known subsystem with the greatest latency, ties broken
// by ID ascending.
func (c Config) firstTrigger(known map[string]bool) (string, bool) {
	var first string
	for id, t := range c.Subsystems {
		if !known[id] {
			continue
		}
		if first == "" {
			first = id
			continue
		}
		cur := c.Subsystems[first]
		if t.Latency > cur.Latency || (t.Latency == cur.Latency && id < first) {
			first = id
		}
	}
	return first, first != ""
}
