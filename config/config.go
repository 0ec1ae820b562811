// Package config loads the settings for the cmd/pagecli demo binary.
// The core packages (bufferpool, lruk, trie, diskio, logmgr) remain
// configuration-free per spec.md §6 ("No environment variables; no
// CLI surface for the core") — only this outer layer reads env.
//
// Grounded on Blackdeer1524-GraphDB's go.mod dependency on
// kelseyhightower/envconfig and joho/godotenv, neither of which that
// repo itself wires to a config struct; wired here instead.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the knobs spec.md §6 names: pool_size (frames),
// replacer_k (LRU-K parameter), and the data directory the disk
// manager and log manager persist under. page_size is compile-time
// fixed (page.Size) and intentionally absent here.
type Config struct {
	PoolSize  uint64 `envconfig:"POOL_SIZE" default:"32"`
	ReplacerK int    `envconfig:"REPLACER_K" default:"2"`
	DataDir   string `envconfig:"DATA_DIR" default:"./data"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads a .env file at envFile if present (ignored if absent —
// godotenv.Load failing to find the file is not an error for this
// optional-overlay use case), then populates Config from the
// process environment under the STORAGECORE_ prefix.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("storagecore", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: process environment: %w", err)
	}
	return cfg, nil
}
