package config

import (
	"fmt"
	"strings"
)

// PProfConfig controls the optional net/http/pprof listener.
type PProfConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

const defaultPProfAddr = "localhost:6060"

func (c *PProfConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- PProf ---\n")
	if !c.Enabled {
		b.WriteString("  disabled\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("  listening on: %s\n", c.Addr))
	return b.String()
}

// Validate binds an enabled listener without an address to loopback, it never fails.
func (c *PProfConfig) Validate() error {
	if c.Enabled && c.Addr == "" {
		c.Addr = defaultPProfAddr
	}
	return nil
}
