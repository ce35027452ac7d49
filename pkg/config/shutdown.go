package config

import (
	"fmt"
	"strings"
	"time"
)

// ShutdownConfig bounds how long servers and workers get to drain once a stop signal arrives.
type ShutdownConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

const defaultShutdownTimeout = 10 * time.Second

func (c *ShutdownConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Graceful shutdown ---\n")
	b.WriteString(fmt.Sprintf("  drain timeout: %s\n", c.Timeout))
	return b.String()
}

// Validate defaults an unset timeout and rejects a negative one.
func (c *ShutdownConfig) Validate() error {
	switch {
	case c.Timeout < 0:
		return fmt.Errorf("shutdown timeout must not be negative, got %s", c.Timeout)
	case c.Timeout == 0:
		c.Timeout = defaultShutdownTimeout
	}
	return nil
}
