package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent weave configuration stored as config.toml
// in the .weave/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Storage   StorageConfig   `toml:"storage"`
	API       APIConfig       `toml:"api"`
	LLM       LLMConfig       `toml:"llm"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Index     IndexConfig     `toml:"index"`
	Session   SessionConfig   `toml:"session"`
	Events    EventsConfig    `toml:"events"`
}

// StorageConfig holds session store settings.
type StorageConfig struct {
	// Provider selects the session store driver: "memory" or "sqlite".
	Provider string `toml:"provider,omitempty"`

	// SQLitePath is the session database file for the sqlite provider.
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// LLMConfig holds chat completion provider settings.
type LLMConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// IndexConfig holds memory index settings.
type IndexConfig struct {
	// Provider selects the index driver: "memory" or "sqlitevec".
	Provider string `toml:"provider,omitempty"`

	// Dir is where the sqlitevec provider keeps per-node database files.
	Dir string `toml:"dir,omitempty"`
}

// SessionConfig holds session orchestration settings.
type SessionConfig struct {
	// DebounceMs is the quiet period before a content edit is persisted.
	DebounceMs uint `toml:"debounce_ms,omitempty"`

	// PeriodicSaveS bounds staleness under continuous edits, in seconds.
	PeriodicSaveS uint `toml:"periodic_save_s,omitempty"`
}

// EventsConfig holds event stream settings.
type EventsConfig struct {
	// Provider selects the publisher: "none" or "kafka".
	Provider string `toml:"provider,omitempty"`

	// Brokers is the comma-separated Kafka bootstrap broker list.
	Brokers string `toml:"brokers,omitempty"`

	// Topic is the Kafka topic canvas events are written to.
	Topic string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error { c.Storage.Provider = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"llm.provider": {
		get: func(c *Config) string { return c.LLM.Provider },
		set: func(c *Config, v string) error { c.LLM.Provider = v; return nil },
	},
	"llm.target": {
		get: func(c *Config) string { return c.LLM.Target },
		set: func(c *Config, v string) error { c.LLM.Target = v; return nil },
	},
	"llm.model": {
		get: func(c *Config) string { return c.LLM.Model },
		set: func(c *Config, v string) error { c.LLM.Model = v; return nil },
	},
	"llm.api_key": {
		get: func(c *Config) string { return c.LLM.APIKey },
		set: func(c *Config, v string) error { c.LLM.APIKey = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"index.provider": {
		get: func(c *Config) string { return c.Index.Provider },
		set: func(c *Config, v string) error { c.Index.Provider = v; return nil },
	},
	"index.dir": {
		get: func(c *Config) string { return c.Index.Dir },
		set: func(c *Config, v string) error { c.Index.Dir = v; return nil },
	},
	"session.debounce_ms": {
		get: func(c *Config) string {
			if c.Session.DebounceMs == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Session.DebounceMs), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for session.debounce_ms: %w", err)
			}
			c.Session.DebounceMs = uint(n)
			return nil
		},
	},
	"session.periodic_save_s": {
		get: func(c *Config) string {
			if c.Session.PeriodicSaveS == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Session.PeriodicSaveS), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for session.periodic_save_s: %w", err)
			}
			c.Session.PeriodicSaveS = uint(n)
			return nil
		},
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
