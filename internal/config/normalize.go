package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"
)

const (
	envLockDir    = "FILEJOBROUTER_LOCK_DIR"
	envWorkerPfx  = "FILEJOBROUTER_WORKER_"
	envWebUIURL   = "FILEJOBROUTER_WEBUI_URL"
)

// normalize expands relative directories to absolute paths, expands
// {username}/{day}/environment tokens inside worker executable paths, and
// applies the environment-variable overrides from §6.
func (c *Config) normalize() error {
	var err error
	if c.WatchDirectory, err = absPath(c.WatchDirectory); err != nil {
		return fmt.Errorf("WatchDirectory: %w", err)
	}
	if c.LogDirectory, err = absPath(c.LogDirectory); err != nil {
		return fmt.Errorf("LogDirectory: %w", err)
	}
	if c.JobsDirectory, err = absPath(c.JobsDirectory); err != nil {
		return fmt.Errorf("JobsDirectory: %w", err)
	}
	if c.QueueBaseDirectory, err = absPath(c.QueueBaseDirectory); err != nil {
		return fmt.Errorf("QueueBaseDirectory: %w", err)
	}
	if strings.TrimSpace(c.RuntimeLauncherCommand) == "" {
		c.RuntimeLauncherCommand = defaultLauncherCmd
	}

	username := currentUsername()
	day := time.Now().Format("2006-01-02")

	normalizedMappings := make(map[string]WorkerMapping, len(c.Mappings))
	for key, mapping := range c.Mappings {
		mapping.ExecutablePath = expandToken(mapping.ExecutablePath, username, day)
		if override, ok := os.LookupEnv(envWorkerPfx + strings.ToUpper(key)); ok && strings.TrimSpace(override) != "" {
			mapping.ExecutablePath = override
		}
		if mapping.OutputDirectory != "" {
			outDir, err := absPath(mapping.OutputDirectory)
			if err != nil {
				return fmt.Errorf("Mappings[%s].OutputDirectory: %w", key, err)
			}
			mapping.OutputDirectory = outDir
		}
		normalizedMappings[key] = mapping
	}
	c.Mappings = normalizedMappings

	if override := strings.TrimSpace(os.Getenv(envWebUIURL)); override != "" {
		c.Notifier.CandidateURLs = append([]string{override}, c.Notifier.CandidateURLs...)
	}

	return nil
}

// LockDirectory returns the machine-global directory the Device Lock (C1)
// and Instance Guard (C6) should place their lock files in, honoring the
// FILEJOBROUTER_LOCK_DIR override from §6.
func LockDirectory() string {
	if dir := strings.TrimSpace(os.Getenv(envLockDir)); dir != "" {
		return dir
	}
	return os.TempDir()
}

func absPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			path = home
		} else if len(path) > 1 && (path[1] == '/' || path[1] == '\\') {
			path = filepath.Join(home, path[2:])
		}
	}
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", path, err)
	}
	return abs, nil
}

func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}
