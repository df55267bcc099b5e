package relay

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Environment variables consulted by Config.LoadEnv.
const (
	EnvListen   = "COMMILINK_LISTEN"
	EnvSnapshot = "COMMILINK_SNAPSHOT"
)

// Config holds the relay's runtime options.
type Config struct {
	// Listen is the TCP address the websocket endpoint binds to.
	Listen string `toml:"listen"`

	// Snapshot is the path of the state snapshot file, relative to the
	// working directory. Empty disables persistence.
	Snapshot string `toml:"snapshot"`

	// PendingCap bounds each identity's pending queue. 0 leaves queues
	// unbounded.
	PendingCap int `toml:"pending_cap"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Listen:   ":8080",
		Snapshot: "relay_store.json",
	}
}

// LoadFile overlays settings from a TOML file.
func (c *Config) LoadFile(path string) error {
	_, err := toml.DecodeFile(path, c)
	return err
}

// LoadEnv overlays settings from the environment.
func (c *Config) LoadEnv() {
	if v := os.Getenv(EnvListen); v != "" {
		// A bare port number is accepted for convenience.
		if _, err := strconv.Atoi(v); err == nil {
			v = ":" + v
		}
		c.Listen = v
	}
	if v := os.Getenv(EnvSnapshot); v != "" {
		c.Snapshot = v
	}
}
