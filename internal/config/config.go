// Package config loads the orchestrator's bootstrap settings: the libp2p
// identity keypair location, the storage path, and the listen address.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk bootstrap surface for cmd/quantaswap. The swap
// engine and orchestrator themselves take already-constructed values
// (keypair, peer ID, storage handle); this struct only exists to get those
// values from a file on disk into cmd/quantaswap's hands.
type Config struct {
	// KeyFile is a path to a protobuf-marshaled libp2p private key. If no
	// file exists at that path, cmd/quantaswap generates a new identity and
	// persists it there.
	KeyFile string `json:"key_file" yaml:"key_file"`

	// StorageDir is the directory the embedded KV engine opens.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// ListenAddr is the multiaddr the swarm listens on, e.g.
	// "/ip4/0.0.0.0/tcp/4001".
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`

	// HTTPAddr is the bind address for the ambient HTTP API surface.
	HTTPAddr string `json:"http_addr" yaml:"http_addr"`

	// BootstrapPeers are multiaddrs dialed on startup to join the DHT.
	BootstrapPeers []string `json:"bootstrap_peers" yaml:"bootstrap_peers"`
}

// Default returns a Config with the teacher's usual local-dev values.
func Default() *Config {
	return &Config{
		KeyFile:    "quantaswap.key",
		StorageDir: "quantaswap-data",
		ListenAddr: "/ip4/0.0.0.0/tcp/4001",
		HTTPAddr:   "127.0.0.1:7780",
	}
}

// LoadConfig reads a JSON or YAML config file, dispatching on extension.
func LoadConfig(configFilepath string) (*Config, error) {
	cfg := Default()

	switch {
	case isJSONFile(configFilepath):
		if err := loadFromJSON(configFilepath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load JSON config: %w", err)
		}
	case isYAMLFile(configFilepath):
		if err := loadFromYAML(configFilepath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load YAML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unrecognized config file extension: %s", configFilepath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required fields are non-empty.
func (c *Config) Validate() error {
	if c.StorageDir == "" {
		return fmt.Errorf("storage_dir is required")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	return nil
}

// isJSONFile checks whether a path is a JSON file.
func isJSONFile(filepath string) bool {
	return len(filepath) >= 5 && filepath[len(filepath)-5:] == ".json"
}

// isYAMLFile checks whether a path is a YAML file.
func isYAMLFile(filepath string) bool {
	return (len(filepath) >= 5 && filepath[len(filepath)-5:] == ".yaml") ||
		(len(filepath) >= 4 && filepath[len(filepath)-4:] == ".yml")
}

// loadFromJSON loads a JSON file into dst (which must be a pointer).
func loadFromJSON(configFilepath string, dst any) error {
	file, err := os.Open(configFilepath)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return json.NewDecoder(file).Decode(dst)
}

// loadFromYAML loads a YAML file into dst (which must be a pointer).
func loadFromYAML(configFilepath string, dst any) error {
	file, err := os.Open(configFilepath)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return yaml.NewDecoder(file).Decode(dst)
}
