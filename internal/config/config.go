package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigFileName is the well-known configuration file name discovered by
// walking up from the executable's directory.
const ConfigFileName = "config.json"

// WorkerMapping describes one worker-key entry of the Mappings configuration
// field: the executable that handles jobs for that key, and the root
// directory under which its outputs are written.
type WorkerMapping struct {
	ExecutablePath  string `json:"ExecutablePath"`
	OutputDirectory string `json:"OutputDirectory"`
}

// Logging configures ambient structured-log output. It is not part of the
// spec's externally defined Configuration file table (§6) but is carried as
// ambient stack the way the teacher repo carries log format/level/retention
// settings alongside its domain configuration.
type Logging struct {
	Format        string `json:"Format"`
	Level         string `json:"Level"`
	RetentionDays int    `json:"RetentionDays"`
}

// Notifier configures the push-notification channel (C5). CandidateURLs is
// the ranked list of endpoints tried on startup (§4.5); an environment
// override always takes priority (§6).
type Notifier struct {
	CandidateURLs []string `json:"CandidateURLs"`
}

// Config is the top-level configuration document, matching the external
// config.json schema from spec §6 plus the ambient Logging/Notifier
// sections.
type Config struct {
	WatchDirectory             string                   `json:"WatchDirectory"`
	TimeoutSeconds              int                      `json:"TimeoutSeconds"`
	MaxRetryCount               int                      `json:"MaxRetryCount"`
	LogDirectory                string                   `json:"LogDirectory"`
	JobsDirectory                string                   `json:"JobsDirectory"`
	QueueBaseDirectory           string                   `json:"QueueBaseDirectory"`
	MutexName                    string                   `json:"MutexName"`
	Mappings                     map[string]WorkerMapping `json:"Mappings"`
	IgnoreHiddenAndSystemFiles   bool                     `json:"IgnoreHiddenAndSystemFiles"`
	DefaultWorkerForRoot         string                   `json:"DefaultWorkerForRoot"`
	Logging                      Logging                  `json:"Logging"`
	Notifier                     Notifier                 `json:"Notifier"`

	// RuntimeLauncherCommand is invoked as "<cmd> <dll-path> <input>
	// <output>" when a worker's native executable is absent but its .dll
	// counterpart exists (§4.4.e). Not part of §6's table; see SPEC_FULL.md.
	RuntimeLauncherCommand string `json:"RuntimeLauncherCommand"`

	// sourcePath records where this configuration was loaded from, so that
	// Reload (used for the Processor's tunable reload, §4.4.d) can re-read
	// the same file.
	sourcePath string
}

// SourcePath returns the absolute path this configuration was loaded from.
func (c *Config) SourcePath() string {
	return c.sourcePath
}

// Load locates, parses, normalizes, and validates config.json starting from
// the directory containing the current executable and walking up to the
// filesystem root, returning the first directory ("solution root") that
// contains a config.json file.
func Load() (*Config, error) {
	path, err := discoverConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom parses, normalizes, and validates the config.json file at path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.sourcePath = path

	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("normalize config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Reload re-reads the configuration from its original source path. Used by
// the Processor's tunable-reload step (§4.4.d), which only ever consults
// TimeoutSeconds and MaxRetryCount from the result.
func (c *Config) Reload() (*Config, error) {
	if c == nil || c.sourcePath == "" {
		return nil, errors.New("config has no known source path")
	}
	return LoadFrom(c.sourcePath)
}

func discoverConfigPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}
	dir := filepath.Dir(exe)
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("%s not found in any ancestor of %s", ConfigFileName, filepath.Dir(exe))
}

// expandToken substitutes {username}, {day}, and $ENV_VAR / %ENV_VAR%-style
// OS environment variable references inside ExecutablePath values (§6).
func expandToken(value, username, day string) string {
	value = strings.ReplaceAll(value, "{username}", username)
	value = strings.ReplaceAll(value, "{day}", day)
	return os.ExpandEnv(value)
}
