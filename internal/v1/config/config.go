// Package config loads and validates the service configuration from a TOML
// file. Secrets may be overridden through environment variables so the config
// file can be committed without credentials.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultRoomChannelPrefix is used when [runtime] room_channel_prefix is unset.
const DefaultRoomChannelPrefix = "rooms"

// Config is the root of the TOML configuration.
type Config struct {
	MQTT      MQTT      `toml:"mqtt"`
	DB        DB        `toml:"db"`
	Runtime   Runtime   `toml:"runtime"`
	Telemetry Telemetry `toml:"telemetry"`
}

// MQTT holds the broker connection settings shared by all room runtimes.
type MQTT struct {
	Host     string `toml:"host"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

// DB holds the document-store connection settings.
type DB struct {
	Host            string `toml:"host"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	Database        string `toml:"database"`
	UsersCollection string `toml:"users_collection"`
	RoomsCollection string `toml:"rooms_collection"`
}

// Runtime holds the HTTP bind address and the topic prefix under which all
// room topics live.
type Runtime struct {
	ServerAddress     string `toml:"server_address"`
	RoomChannelPrefix string `toml:"room_channel_prefix"`
}

// Telemetry holds optional observability settings.
type Telemetry struct {
	OTLPCollectorAddr string `toml:"otlp_collector_addr"`
	Development       bool   `toml:"development"`
}

// Load reads, parses and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets the environment win over the file for secrets.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EURUS_MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
	if v := os.Getenv("EURUS_DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
}

// Validate checks every required field and collects all problems into a
// single error so a bad config reports everything at once.
func (c *Config) Validate() error {
	var errs []string

	if c.MQTT.Host == "" {
		errs = append(errs, "[mqtt] host is required")
	}
	if c.DB.Host == "" {
		errs = append(errs, "[db] host is required")
	}
	if c.DB.Database == "" {
		errs = append(errs, "[db] database is required")
	}
	if c.DB.UsersCollection == "" {
		errs = append(errs, "[db] users_collection is required")
	}
	if c.DB.RoomsCollection == "" {
		errs = append(errs, "[db] rooms_collection is required")
	}
	if c.Runtime.ServerAddress == "" {
		errs = append(errs, "[runtime] server_address is required")
	} else if !isValidHostPort(c.Runtime.ServerAddress) {
		errs = append(errs, fmt.Sprintf("[runtime] server_address must be 'host:port' (got %q)", c.Runtime.ServerAddress))
	}
	if c.Runtime.RoomChannelPrefix == "" {
		c.Runtime.RoomChannelPrefix = DefaultRoomChannelPrefix
	}
	if strings.Contains(c.Runtime.RoomChannelPrefix, "/") {
		errs = append(errs, fmt.Sprintf("[runtime] room_channel_prefix must be a single topic level (got %q)", c.Runtime.RoomChannelPrefix))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// isValidHostPort checks if the address is in "host:port" form with a port in
// the valid range.
func isValidHostPort(addr string) bool {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return false
	}
	p, err := strconv.Atoi(port)
	return err == nil && p >= 1 && p <= 65535
}
