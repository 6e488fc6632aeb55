package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/capbudget/portfolio/internal/engines/enumerator"
	"github.com/capbudget/portfolio/internal/logging"
	"github.com/capbudget/portfolio/pkg/core"
)

// EnvPrefix is prepended to every environment variable read by Load, e.g.
// PORTFOLIO_LISTEN_ADDRESS.
const EnvPrefix = "PORTFOLIO"

// Flag names shared by the command line and the environment.
const (
	FlagListenAddress  = "listen-address"
	FlagLogLevel       = "log-level"
	FlagLogDevelopment = "log-development"
	FlagProfiles       = "profiles"
	FlagCatalog        = "catalog"
	FlagConfig         = "config"
	FlagProfile        = "profile"
	FlagPoolSize       = "pool-size"
	FlagTimeLimit      = "time-limit"
	FlagNativePool     = "native-pool"
	FlagMinRoundTime   = "min-round-time"
)

// Settings holds the process-level settings of the portfolio binary.
type Settings struct {
	ListenAddress  string
	LogLevel       string
	LogDevelopment bool

	// ProfilesFile is the solve profiles document. When empty, DefaultProfilesFileName
	// next to the catalog is used if it exists.
	ProfilesFile string
	CatalogFile  string
	ConfigFile   string
	Profile      string

	// PoolSize and TimeLimit override the request when set (non-zero).
	PoolSize  int
	TimeLimit float64

	NativePool   bool
	MinRoundTime time.Duration
}

// BindFlags registers the settings flags on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.String(FlagListenAddress, ":8080", "Address the HTTP server listens on.")
	fs.String(FlagLogLevel, "info", "Log verbosity: info, debug or trace.")
	fs.Bool(FlagLogDevelopment, false, "Use human-readable development logging.")
	fs.String(FlagProfiles, "", "Path to the solve profiles document.")
	fs.String(FlagCatalog, "", "Path to the project catalog (.csv or .xlsx).")
	fs.String(FlagConfig, "", "Path to the solve configuration document.")
	fs.String(FlagProfile, "", "Name of the solve profile to apply.")
	fs.Int(FlagPoolSize, 0, "Number of distinct solutions to return; overrides the configuration.")
	fs.Float64(FlagTimeLimit, 0, "Overall time limit in seconds; overrides the configuration.")
	fs.Bool(FlagNativePool, true, "Let the solver collect alternative solutions in a single search.")
	fs.Duration(FlagMinRoundTime, enumerator.DefaultMinRoundTime, "Minimum time given to each enumeration round.")
}

// Load resolves the settings from flags and PORTFOLIO_* environment variables. Flags
// explicitly set on the command line win over the environment.
func Load(fs *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	s := &Settings{
		ListenAddress:  v.GetString(FlagListenAddress),
		LogLevel:       v.GetString(FlagLogLevel),
		LogDevelopment: v.GetBool(FlagLogDevelopment),
		ProfilesFile:   v.GetString(FlagProfiles),
		CatalogFile:    v.GetString(FlagCatalog),
		ConfigFile:     v.GetString(FlagConfig),
		Profile:        v.GetString(FlagProfile),
		PoolSize:       v.GetInt(FlagPoolSize),
		TimeLimit:      v.GetFloat64(FlagTimeLimit),
		NativePool:     v.GetBool(FlagNativePool),
		MinRoundTime:   v.GetDuration(FlagMinRoundTime),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks for invalid settings.
func (s *Settings) Validate() error {
	if _, err := logging.ParseLevel(s.LogLevel); err != nil {
		return core.NewConfigurationError(FlagLogLevel, "%v", err)
	}
	if s.PoolSize < 0 {
		return core.NewConfigurationError(FlagPoolSize, "must be >= 0, got %d", s.PoolSize)
	}
	if s.TimeLimit < 0 {
		return core.NewConfigurationError(FlagTimeLimit, "must be >= 0, got %g", s.TimeLimit)
	}
	if s.MinRoundTime < 0 {
		return core.NewConfigurationError(FlagMinRoundTime, "must be >= 0, got %s", s.MinRoundTime)
	}
	return nil
}

// ProfilesPath returns the profiles document to load, or "" when there is none.
func (s *Settings) ProfilesPath() string {
	if s.ProfilesFile != "" {
		return s.ProfilesFile
	}
	if s.CatalogFile == "" {
		return ""
	}
	candidate := filepath.Join(filepath.Dir(s.CatalogFile), DefaultProfilesFileName)
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

// LoadProfiles reads the profiles document named by the settings. A missing implicit
// document yields no profiles.
func (s *Settings) LoadProfiles() (SolveProfiles, error) {
	path := s.ProfilesPath()
	if path == "" {
		return SolveProfiles{}, nil
	}
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading solve profiles %s: %w", path, err)
	}
	return ParseSolveProfiles(doc)
}
