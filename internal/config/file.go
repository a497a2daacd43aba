package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is a parsed declarative config file: a map of slot name to server
// configuration. Typical layout:
//
//	servers:
//	  storefront:
//	    base_url: http://127.0.0.1:0
//	    command: bin/storefront
//	    args: ["--listen", "{baseUrl}"]
//	    health_paths: ["/healthz"]
//	    startup_timeout: 90s
type File struct {
	Servers map[string]ServerConfig
}

// rawFile mirrors File for decoding. Durations arrive as strings ("90s")
// and are parsed explicitly, since yaml.v3 would otherwise decode integers
// as nanoseconds.
type rawFile struct {
	Servers map[string]rawServer `yaml:"servers"`
}

type rawServer struct {
	ServerConfig   `yaml:",inline"`
	StartupTimeout string `yaml:"startup_timeout"`
}

// LoadFile reads and parses a YAML config file. The map key becomes each
// entry's slot name. Entries are validated lazily (at EnsureStarted), so a
// file may carry delegated slots whose orchestrators are attached later.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	file := &File{Servers: make(map[string]ServerConfig, len(raw.Servers))}
	for slot, rs := range raw.Servers {
		cfg := rs.ServerConfig
		cfg.Slot = slot
		if rs.StartupTimeout != "" {
			d, err := time.ParseDuration(rs.StartupTimeout)
			if err != nil {
				return nil, fmt.Errorf("config file %s: slot %s: startup_timeout: %w", path, slot, err)
			}
			cfg.StartupTimeout = d
		}
		file.Servers[slot] = cfg
	}
	return file, nil
}

// Lookup returns the configuration for slot, if present.
func (f *File) Lookup(slot string) (ServerConfig, bool) {
	cfg, ok := f.Servers[slot]
	return cfg, ok
}
