package config

import (
	"flag"
	"os"
	"time"

	"github.com/wiliyo/wiliyo/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   TCP bind address (e.g., ":6969")
//	-f string   path of the JSON user data file
//	-d string   PostgreSQL DSN (empty keeps the file store)
//	-t int      auth-phase read timeout, seconds
//	-i int      chat-phase idle timeout, seconds
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration
// flags are accepted as integers in seconds and converted to time.Duration.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-f", "-d", "-t", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.UserDataFile, "f", config.UserDataFile, "user data file")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	authReadTimeout := fs.Int("t", int(config.AuthReadTimeout.Seconds()), "auth read timeout (in seconds)")
	chatIdleTimeout := fs.Int("i", int(config.ChatIdleTimeout.Seconds()), "chat idle timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AuthReadTimeout = time.Duration(*authReadTimeout) * time.Second
	config.ChatIdleTimeout = time.Duration(*chatIdleTimeout) * time.Second
}
