package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"

	"github.com/capbudget/portfolio/pkg/core"
)

const (
	// DefaultTimeLimitSeconds is used when a request leaves time_limit unset.
	DefaultTimeLimitSeconds = 30.0

	// DefaultMultiCritAlpha weights the objective on benefit only.
	DefaultMultiCritAlpha = 1.0

	// MaxTimeLimitSeconds is the largest time_limit a time.Duration can hold.
	MaxTimeLimitSeconds = float64(math.MaxInt64 / int64(time.Second))
)

// RegionQuota bounds the number of selected projects in a region. Either bound may be
// omitted.
type RegionQuota struct {
	Min *int `yaml:"min,omitempty" json:"min,omitempty"`
	Max *int `yaml:"max,omitempty" json:"max,omitempty"`
}

func (q RegionQuota) deepCopy() RegionQuota {
	var out RegionQuota
	if q.Min != nil {
		out.Min = ptr.To(*q.Min)
	}
	if q.Max != nil {
		out.Max = ptr.To(*q.Max)
	}
	return out
}

// SolveConfig holds the configuration of a single solve request.
type SolveConfig struct {
	// Budget caps the summed cost of the selection. Required.
	Budget *float64 `yaml:"budget,omitempty" json:"budget,omitempty"`

	// ResourceCaps caps the summed consumption of each named resource.
	ResourceCaps map[string]float64 `yaml:"resource_caps,omitempty" json:"resource_caps,omitempty"`

	// RegionalQuota bounds the selection count per region.
	RegionalQuota map[string]RegionQuota `yaml:"regional_quota,omitempty" json:"regional_quota,omitempty"`

	// CardinalityK is an upper bound on the number of selected projects.
	CardinalityK *int `yaml:"cardinality_k,omitempty" json:"cardinality_k,omitempty"`

	// TimeLimit is the overall solve budget in seconds, covering pool enumeration.
	TimeLimit *float64 `yaml:"time_limit,omitempty" json:"time_limit,omitempty"`

	// PoolSize is the number of distinct solutions requested; 0 means the best only.
	PoolSize *int `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`

	// MultiCritAlpha blends benefit (alpha) with social score (1 - alpha).
	MultiCritAlpha *float64 `yaml:"multi_crit_alpha,omitempty" json:"multi_crit_alpha,omitempty"`
}

// ParseSolveConfig decodes a YAML (or JSON, which is valid YAML) solve configuration.
// Unknown fields are rejected so that typos do not silently drop constraints.
func ParseSolveConfig(data []byte) (*SolveConfig, error) {
	var cfg SolveConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, core.NewConfigurationError("document", "cannot decode solve configuration: %v", err)
	}
	return &cfg, nil
}

// Validate checks for invalid configuration values.
func (c *SolveConfig) Validate() error {
	var errs error
	switch {
	case c.Budget == nil:
		errs = multierr.Append(errs, core.NewConfigurationError("budget", "is required"))
	case math.IsNaN(*c.Budget) || math.IsInf(*c.Budget, 0):
		errs = multierr.Append(errs, core.NewConfigurationError("budget", "must be a finite number"))
	case *c.Budget < 0:
		errs = multierr.Append(errs, core.NewConfigurationError("budget", "must be >= 0, got %g", *c.Budget))
	}

	if c.MultiCritAlpha != nil {
		a := *c.MultiCritAlpha
		if math.IsNaN(a) || a < 0 || a > 1 {
			errs = multierr.Append(errs, core.NewConfigurationError("multi_crit_alpha", "must be between 0 and 1, got %g", a))
		}
	}
	if c.TimeLimit != nil {
		tl := *c.TimeLimit
		switch {
		case math.IsNaN(tl) || math.IsInf(tl, 0) || tl <= 0:
			errs = multierr.Append(errs, core.NewConfigurationError("time_limit", "must be a positive number of seconds, got %g", tl))
		case tl > MaxTimeLimitSeconds:
			errs = multierr.Append(errs, core.NewConfigurationError("time_limit", "must be at most %g seconds, got %g", MaxTimeLimitSeconds, tl))
		}
	}
	if c.PoolSize != nil && *c.PoolSize < 0 {
		errs = multierr.Append(errs, core.NewConfigurationError("pool_size", "must be >= 0, got %d", *c.PoolSize))
	}
	if c.CardinalityK != nil && *c.CardinalityK < 0 {
		errs = multierr.Append(errs, core.NewConfigurationError("cardinality_k", "must be >= 0, got %d", *c.CardinalityK))
	}

	for _, name := range sortedKeys(c.ResourceCaps) {
		capacity := c.ResourceCaps[name]
		field := fmt.Sprintf("resource_caps[%s]", name)
		switch {
		case math.IsNaN(capacity) || math.IsInf(capacity, 0):
			errs = multierr.Append(errs, core.NewDataValidationError("", field, "must be a finite number"))
		case capacity < 0:
			errs = multierr.Append(errs, core.NewDataValidationError("", field, "must be >= 0, got %g", capacity))
		}
	}

	for _, region := range sortedKeys(c.RegionalQuota) {
		q := c.RegionalQuota[region]
		field := fmt.Sprintf("regional_quota[%s]", region)
		if q.Min != nil && *q.Min < 0 {
			errs = multierr.Append(errs, core.NewConfigurationError(field, "min must be >= 0, got %d", *q.Min))
		}
		if q.Max != nil && *q.Max < 0 {
			errs = multierr.Append(errs, core.NewConfigurationError(field, "max must be >= 0, got %d", *q.Max))
		}
		if q.Min != nil && q.Max != nil && *q.Min > *q.Max {
			errs = multierr.Append(errs, core.NewConfigurationError(field, "min (%d) exceeds max (%d)", *q.Min, *q.Max))
		}
	}
	return errs
}

// Alpha returns the effective multi-criteria weight.
func (c *SolveConfig) Alpha() float64 {
	return ptr.Deref(c.MultiCritAlpha, DefaultMultiCritAlpha)
}

// TimeLimitDuration returns the effective time limit, saturated at
// MaxTimeLimitSeconds.
func (c *SolveConfig) TimeLimitDuration() time.Duration {
	seconds := ptr.Deref(c.TimeLimit, DefaultTimeLimitSeconds)
	if seconds > MaxTimeLimitSeconds {
		seconds = MaxTimeLimitSeconds
	}
	return time.Duration(seconds * float64(time.Second))
}

// RequestedPoolSize returns the number of solutions the caller asked for. An unset
// pool size or 0 asks for the single best solution.
func (c *SolveConfig) RequestedPoolSize() int {
	if n := ptr.Deref(c.PoolSize, 0); n > 1 {
		return n
	}
	return 1
}

// MergeOver returns a copy of c where every field left unset takes the value from base.
// Maps are merged key by key with c winning.
func (c *SolveConfig) MergeOver(base *SolveConfig) *SolveConfig {
	if base == nil {
		return c.DeepCopy()
	}
	out := base.DeepCopy()
	if c.Budget != nil {
		out.Budget = ptr.To(*c.Budget)
	}
	for k, v := range c.ResourceCaps {
		if out.ResourceCaps == nil {
			out.ResourceCaps = make(map[string]float64)
		}
		out.ResourceCaps[k] = v
	}
	for k, v := range c.RegionalQuota {
		if out.RegionalQuota == nil {
			out.RegionalQuota = make(map[string]RegionQuota)
		}
		out.RegionalQuota[k] = v.deepCopy()
	}
	if c.CardinalityK != nil {
		out.CardinalityK = ptr.To(*c.CardinalityK)
	}
	if c.TimeLimit != nil {
		out.TimeLimit = ptr.To(*c.TimeLimit)
	}
	if c.PoolSize != nil {
		out.PoolSize = ptr.To(*c.PoolSize)
	}
	if c.MultiCritAlpha != nil {
		out.MultiCritAlpha = ptr.To(*c.MultiCritAlpha)
	}
	return out
}

// DeepCopy returns an independent copy of the configuration.
func (c *SolveConfig) DeepCopy() *SolveConfig {
	out := &SolveConfig{}
	if c.PoolSize != nil {
		out.PoolSize = ptr.To(*c.PoolSize)
	}
	if c.Budget != nil {
		out.Budget = ptr.To(*c.Budget)
	}
	if c.CardinalityK != nil {
		out.CardinalityK = ptr.To(*c.CardinalityK)
	}
	if c.TimeLimit != nil {
		out.TimeLimit = ptr.To(*c.TimeLimit)
	}
	if c.MultiCritAlpha != nil {
		out.MultiCritAlpha = ptr.To(*c.MultiCritAlpha)
	}
	if c.ResourceCaps != nil {
		out.ResourceCaps = make(map[string]float64, len(c.ResourceCaps))
		for k, v := range c.ResourceCaps {
			out.ResourceCaps[k] = v
		}
	}
	if c.RegionalQuota != nil {
		out.RegionalQuota = make(map[string]RegionQuota, len(c.RegionalQuota))
		for k, v := range c.RegionalQuota {
			out.RegionalQuota[k] = v.deepCopy()
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
