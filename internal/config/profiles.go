package config

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"

	"github.com/capbudget/portfolio/internal/logging"
	solveconfig "github.com/capbudget/portfolio/pkg/config"
	"github.com/capbudget/portfolio/pkg/core"
)

const (
	// GlobalDefaultsKey is the entry applied underneath every profile and every request
	// that names no profile.
	GlobalDefaultsKey = "default"

	// DefaultProfilesFileName is looked up next to the catalog when no profiles file
	// is configured.
	DefaultProfilesFileName = "profiles.yaml"
)

// SolveProfile is a named preset of solve settings.
type SolveProfile struct {
	// Name is the profile name (only used in override entries)
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Description is shown by listings.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	solveconfig.SolveConfig `yaml:",inline"`
}

// SolveProfiles holds the parsed profiles by name, plus GlobalDefaultsKey.
type SolveProfiles map[string]SolveProfile

// Validate checks the values a profile sets. A profile may leave the budget unset;
// requests have to supply it then.
func (p *SolveProfile) Validate() error {
	cfg := p.SolveConfig.DeepCopy()
	if cfg.Budget == nil {
		cfg.Budget = ptr.To(0.0)
	}
	return cfg.Validate()
}

// ParseSolveProfiles parses a profiles document. The document maps entry keys to
// profiles:
//   - "default": settings applied underneath everything
//   - "<entry>": a profile carrying a name field
//
// Entries that do not decode, do not validate or lack a name are skipped with a log
// line; when two entries share a name the first key in sorted order wins. Only a
// document that is not a mapping fails.
func ParseSolveProfiles(doc []byte) (SolveProfiles, error) {
	out := make(SolveProfiles)
	if len(doc) == 0 {
		return out, nil
	}
	var entries map[string]yaml.Node
	if err := yaml.Unmarshal(doc, &entries); err != nil {
		return nil, fmt.Errorf("parsing solve profiles: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	nameToKey := make(map[string]string)
	for _, key := range keys {
		node := entries[key]

		var profile SolveProfile
		if err := node.Decode(&profile); err != nil {
			logging.Log.Info("Failed to parse solve profile entry, skipping",
				"key", key,
				"error", err)
			continue
		}

		if err := profile.Validate(); err != nil {
			logging.Log.Info("Invalid solve profile entry, skipping",
				"key", key,
				"error", err)
			continue
		}

		if key == GlobalDefaultsKey {
			profile.Name = GlobalDefaultsKey
			out[GlobalDefaultsKey] = profile
			continue
		}

		if profile.Name == "" {
			logging.Log.Info("Skipping solve profile without name field",
				"key", key)
			continue
		}

		if winner, exists := nameToKey[profile.Name]; exists {
			logging.Log.Info("Duplicate profile name found in solve profiles - first key wins",
				"name", profile.Name,
				"winningKey", winner,
				"duplicateKey", key)
			continue
		}
		nameToKey[profile.Name] = key
		out[profile.Name] = profile
	}

	logging.Log.V(logging.DEBUG).Info("Parsed solve profiles",
		"profileCount", len(out))

	return out, nil
}

// Names returns the profile names, sorted, without the defaults entry.
func (p SolveProfiles) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		if name != GlobalDefaultsKey {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Resolve returns the effective configuration of a profile: the profile merged over
// the defaults. An empty name resolves to the defaults alone.
func (p SolveProfiles) Resolve(name string) (*solveconfig.SolveConfig, error) {
	entry := p[GlobalDefaultsKey]
	defaults := entry.SolveConfig.DeepCopy()
	if name == "" || name == GlobalDefaultsKey {
		return defaults, nil
	}
	profile, ok := p[name]
	if !ok {
		return nil, core.NewConfigurationError("profile", "unknown profile %q", name)
	}
	return profile.SolveConfig.MergeOver(defaults), nil
}

// Apply merges a request over the named profile.
func (p SolveProfiles) Apply(name string, request *solveconfig.SolveConfig) (*solveconfig.SolveConfig, error) {
	base, err := p.Resolve(name)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return base, nil
	}
	return request.MergeOver(base), nil
}
