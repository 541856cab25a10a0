// Package brand holds the product name and default filesystem locations.
//
// The identity is loaded from brand.json at compile time via go:embed so
// packaging scripts can read the same file.
package brand

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
)

//go:embed brand.json
var brandJSON []byte

// Brand holds all branding information
type Brand struct {
	Name             string `json:"name"`
	LowerName        string `json:"lowerName"`
	Description      string `json:"description"`
	Tagline          string `json:"tagline"`
	ConfigEnvPrefix  string `json:"configEnvPrefix"`
	DefaultConfigDir string `json:"defaultConfigDir"`
	DefaultStateDir  string `json:"defaultStateDir"`
	DefaultLogDir    string `json:"defaultLogDir"`
	BinaryName       string `json:"binaryName"`
	ConfigFileName   string `json:"configFileName"`
}

var b Brand

func init() {
	if err := json.Unmarshal(brandJSON, &b); err != nil {
		panic("failed to parse brand.json: " + err.Error())
	}

	Name = b.Name
	LowerName = b.LowerName
	Description = b.Description
	Tagline = b.Tagline
	ConfigEnvPrefix = b.ConfigEnvPrefix
	DefaultConfigDir = b.DefaultConfigDir
	DefaultStateDir = b.DefaultStateDir
	DefaultLogDir = b.DefaultLogDir
	BinaryName = b.BinaryName
	ConfigFileName = b.ConfigFileName
}

var (
	Name             string
	LowerName        string
	Description      string
	Tagline          string
	ConfigEnvPrefix  string
	DefaultConfigDir string
	DefaultStateDir  string
	DefaultLogDir    string
	BinaryName       string
	ConfigFileName   string

	// Version is set at build time via -ldflags
	Version   = "dev"
	GitCommit = "unknown"
)

// Get returns the full Brand struct
func Get() Brand {
	return b
}

// UserAgent returns a User-Agent string for HTTP requests
func UserAgent(version string) string {
	if version == "" {
		version = "dev"
	}
	return Name + "/" + version
}

// GetStateDir returns the state directory, checking env vars first.
// Priority: WANBOARD_STATE_DIR > WANBOARD_PREFIX/state > DefaultStateDir
func GetStateDir() string {
	return dirFromEnv("STATE_DIR", "state", DefaultStateDir)
}

// GetLogDir returns the log directory, checking env vars first.
// Priority: WANBOARD_LOG_DIR > WANBOARD_PREFIX/log > DefaultLogDir
func GetLogDir() string {
	return dirFromEnv("LOG_DIR", "log", DefaultLogDir)
}

// GetConfigDir returns the config directory, checking env vars first.
// Priority: WANBOARD_CONFIG_DIR > WANBOARD_PREFIX/config > DefaultConfigDir
func GetConfigDir() string {
	return dirFromEnv("CONFIG_DIR", "config", DefaultConfigDir)
}

// DefaultConfigPath is where serve and check look without -c.
func DefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), ConfigFileName)
}

// DefaultAuditPath is the audit database location when none is configured.
func DefaultAuditPath() string {
	return filepath.Join(GetStateDir(), "audit.db")
}

func dirFromEnv(suffix, sub, fallback string) string {
	if dir := os.Getenv(ConfigEnvPrefix + "_" + suffix); dir != "" {
		return dir
	}
	if prefix := os.Getenv(ConfigEnvPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, sub)
	}
	return fallback
}
