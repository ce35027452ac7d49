package config

import (
	"fmt"
	"strings"
	"time"
)

type SubscriberConfig struct {
	Subject  string        `koanf:"subject"`
	Consumer string        `koanf:"consumer"`
	Batch    int           `koanf:"batch"`
	Timeout  time.Duration `koanf:"timeout"`
	Interval time.Duration `koanf:"interval"`
	Workers  int           `koanf:"workers"`
}

const (
	defaultFetchTimeout  = 5 * time.Second
	defaultRetryInterval = time.Second
)

// String returns a string representation of the NATS Subscriber configuration.
func (c *SubscriberConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- NATS Subscriber ---\n")
	b.WriteString(fmt.Sprintf("  subject: %s\n", c.Subject))
	b.WriteString(fmt.Sprintf("  consumer: %s\n", c.Consumer))
	b.WriteString(fmt.Sprintf("  batch: %d\n", c.Batch))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	b.WriteString(fmt.Sprintf("  interval: %s\n", c.Interval))
	b.WriteString(fmt.Sprintf("  workers: %d\n", c.Workers))
	return b.String()
}

// Validate requires the subject and consumer and defaults the polling settings.
func (c *SubscriberConfig) Validate() error {
	if c.Subject == "" {
		return fmt.Errorf("SubscriberConfig: subject is not configured")
	}
	if c.Consumer == "" {
		return fmt.Errorf("SubscriberConfig: consumer is not configured")
	}
	if c.Batch < 0 || c.Workers < 0 {
		return fmt.Errorf("SubscriberConfig: batch and workers must not be negative")
	}
	if c.Batch == 0 {
		c.Batch = 1
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultFetchTimeout
	}
	if c.Interval <= 0 {
		c.Interval = defaultRetryInterval
	}
	return nil
}
