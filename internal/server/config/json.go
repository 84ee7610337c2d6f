package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/wiliyo/wiliyo/internal/flagx"
	"github.com/wiliyo/wiliyo/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for the timeout fields, which allows
// parsing both string values such as "10s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr    string         `json:"endpoint_addr"`
	UserDataFile    string         `json:"user_data_file"`
	DatabaseDSN     string         `json:"database_dsn"`
	AuthReadTimeout timex.Duration `json:"auth_read_timeout"`
	ChatIdleTimeout timex.Duration `json:"chat_idle_timeout"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; when neither is set, no JSON file is loaded. If the file cannot be
// read or contains invalid JSON, the function panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddr = c.EndpointAddr
	config.UserDataFile = c.UserDataFile
	config.DatabaseDSN = c.DatabaseDSN
	config.AuthReadTimeout = time.Duration(c.AuthReadTimeout.Duration)
	config.ChatIdleTimeout = time.Duration(c.ChatIdleTimeout.Duration)
}
