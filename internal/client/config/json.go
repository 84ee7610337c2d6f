package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/wiliyo/wiliyo/internal/flagx"
	"github.com/wiliyo/wiliyo/internal/timex"
)

// JsonConfig is the intermediate DTO for reading JSON configuration files.
// It uses timex.Duration so interval fields accept both "10s" strings and
// integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	DialTimeout        timex.Duration `json:"dial_timeout"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags, if any. A broken file panics; no file means no overlay.
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

	config.ServerEndpointAddr = c.ServerEndpointAddr
	config.DialTimeout = time.Duration(c.DialTimeout.Duration)
}
