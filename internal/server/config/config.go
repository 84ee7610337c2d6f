// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the wiliyo chat server.
//
// Fields:
//   - EndpointAddr: TCP bind address for the chat endpoint.
//   - UserDataFile: path of the JSON credential artifact (file store).
//   - DatabaseDSN: optional PostgreSQL DSN; when non-empty the credential
//     store lives in Postgres instead of the JSON file.
//   - AuthReadTimeout: per-prompt read bound during login/registration;
//     expiry fails the session.
//   - ChatIdleTimeout: read bound in the chat loop; expiry is a keepalive
//     no-op, not a disconnect.
type Config struct {
	EndpointAddr    string
	UserDataFile    string
	DatabaseDSN     string
	AuthReadTimeout time.Duration
	ChatIdleTimeout time.Duration
}

// LoadDefaults populates Config with the stock development defaults.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":6969"
	c.UserDataFile = "wiliyo_users.json"
	c.DatabaseDSN = ""
	c.AuthReadTimeout = 10 * time.Second
	c.ChatIdleTimeout = 1 * time.Hour
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
