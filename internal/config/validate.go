package config

import "fmt"

// Validate checks that the configuration is complete enough for the engine
// to start. It runs after normalize, so all paths are already absolute.
func (c *Config) Validate() error {
	if c.WatchDirectory == "" {
		return fmt.Errorf("WatchDirectory is required")
	}
	if c.JobsDirectory == "" {
		return fmt.Errorf("JobsDirectory is required")
	}
	if c.QueueBaseDirectory == "" {
		return fmt.Errorf("QueueBaseDirectory is required")
	}
	if c.LogDirectory == "" {
		return fmt.Errorf("LogDirectory is required")
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("TimeoutSeconds must be positive, got %d", c.TimeoutSeconds)
	}
	if c.MaxRetryCount < 0 {
		return fmt.Errorf("MaxRetryCount must not be negative, got %d", c.MaxRetryCount)
	}
	if c.MutexName == "" {
		return fmt.Errorf("MutexName is required")
	}
	if len(c.Mappings) == 0 {
		return fmt.Errorf("Mappings must define at least one worker")
	}
	for key, mapping := range c.Mappings {
		if mapping.ExecutablePath == "" {
			return fmt.Errorf("Mappings[%s].ExecutablePath is required", key)
		}
	}
	if c.DefaultWorkerForRoot != "" {
		if _, ok := c.Mappings[c.DefaultWorkerForRoot]; !ok {
			return fmt.Errorf("DefaultWorkerForRoot %q does not match any Mappings key", c.DefaultWorkerForRoot)
		}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("Logging.Level %q is not a recognized level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json", "":
	default:
		return fmt.Errorf("Logging.Format %q is not a recognized format", c.Logging.Format)
	}
	return nil
}
