package main

import (
	"fmt"
	"time"

	"filejobrouter/internal/config"
	"filejobrouter/internal/queue"
)

// commandContext lazily loads configuration and opens the current day's
// Queue Store, shared across every subcommand the way the teacher's CLI
// shares a commandContext across cobra commands.
type commandContext struct {
	configFlag string
	cfg        *config.Config
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: *configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	var cfg *config.Config
	var err error
	if c.configFlag != "" {
		cfg, err = config.LoadFrom(c.configFlag)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	c.cfg = cfg
	return cfg, nil
}

// withStore loads configuration and opens today's Queue Store, then invokes
// fn. The CLI always talks to the Queue Store directly: unlike the
// originating daemon's IPC socket, this router has no separate control
// channel, so there is no "daemon up" fallback to special-case.
func (c *commandContext) withStore(fn func(cfg *config.Config, store *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.New(cfg.QueueBaseDirectory, currentDay(), nil)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	return fn(cfg, store)
}

func currentDay() string {
	return time.Now().Format("2006-01-02")
}
