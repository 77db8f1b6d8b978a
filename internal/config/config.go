// Package config implements the flat typed configuration store described in
// the data model: a map of string keys to typed values, persisted as YAML,
// with environment-variable overrides and at-rest encryption for keys
// flagged as secrets: a Load/Save/DefaultConfig layer over a YAML file,
// generalized from a single struct to an open key/value map so rules and
// operators can add settings
// without a schema migration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ValueKind tags the stored type of a ConfigValue so typed accessors can
// validate before converting.
type ValueKind string

const (
	KindString ValueKind = "string"
	KindInt    ValueKind = "int"
	KindFloat  ValueKind = "float"
	KindBool   ValueKind = "bool"
)

// ConfigValue is one entry in the flat store.
type ConfigValue struct {
	Kind      ValueKind `yaml:"kind"`
	Value     string    `yaml:"value"`
	Secret    bool      `yaml:"secret,omitempty"`
	Encrypted bool      `yaml:"encrypted,omitempty"`
}

// Store is the process-wide flat config map, safe for concurrent access.
type Store struct {
	mu     sync.RWMutex
	values map[string]ConfigValue
	path   string
	cipher *Cipher
}

// DefaultValues returns the baseline settings every deployment starts from.
func DefaultValues() map[string]ConfigValue {
	return map[string]ConfigValue{
		"media_root":           {Kind: KindString, Value: "/media"},
		"db_path":              {Kind: KindString, Value: "/data/db/streamops.db"},
		"cache_dir":            {Kind: KindString, Value: "/data/cache"},
		"log_dir":              {Kind: KindString, Value: "/data/logs"},
		"log_level":            {Kind: KindString, Value: "info"},
		"ffmpeg_path":          {Kind: KindString, Value: "ffmpeg"},
		"ffprobe_path":         {Kind: KindString, Value: "ffprobe"},
		"watcher_quiet_period": {Kind: KindInt, Value: "45"},
		"watcher_poll_interval": {Kind: KindInt, Value: "5"},
		"job_workers":          {Kind: KindInt, Value: "2"},
		"job_max_retries":      {Kind: KindInt, Value: "3"},
		"guardrail_sample_sec": {Kind: KindInt, Value: "2"},
		"guardrail_cpu_limit":  {Kind: KindFloat, Value: "85.0"},
		"api_listen_addr":      {Kind: KindString, Value: ":8085"},
		"metrics_listen_addr":  {Kind: KindString, Value: ":9090"},
		"partial_hash_threshold_bytes": {Kind: KindInt, Value: "104857600"},
	}
}

// Load reads the config from a YAML file, seeding missing keys with
// defaults and applying STREAMOPS_<KEY> environment overrides. If the file
// does not exist it is created with defaults on first run.
func Load(path string) (*Store, error) {
	s := &Store{
		values: DefaultValues(),
		path:   path,
		cipher: NewCipher(),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if saveErr := s.Save(); saveErr != nil {
				return nil, fmt.Errorf("create default config: %w", saveErr)
			}
			s.applyEnvOverrides()
			return s, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var onDisk map[string]ConfigValue
	if err := yaml.Unmarshal(data, &onDisk); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	for k, v := range onDisk {
		s.values[k] = v
	}
	s.applyEnvOverrides()
	return s, nil
}

// applyEnvOverrides lets STREAMOPS_<UPPER_KEY> environment variables win
// over file values, matching the "env override then file then defaults"
// layering described in the config component.
func (s *Store) applyEnvOverrides() {
	for key, cv := range s.values {
		envName := "STREAMOPS_" + strings.ToUpper(key)
		if raw, ok := os.LookupEnv(envName); ok {
			cv.Value = raw
			s.values[key] = cv
		}
	}
}

// Save writes the store to its backing YAML file.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Set stores a value under key, encrypting it first if secret is true.
func (s *Store) Set(key, value string, kind ValueKind, secret bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cv := ConfigValue{Kind: kind, Value: value, Secret: secret}
	if secret {
		enc, err := s.cipher.Encrypt(value)
		if err != nil {
			return fmt.Errorf("encrypt secret %s: %w", key, err)
		}
		cv.Value = enc
		cv.Encrypted = true
	}
	s.values[key] = cv
	return nil
}

// GetString returns a string value, decrypting it transparently if it was
// stored as a secret.
func (s *Store) GetString(key string) (string, bool) {
	s.mu.RLock()
	cv, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if cv.Encrypted {
		plain, err := s.cipher.Decrypt(cv.Value)
		if err != nil {
			return "", false
		}
		return plain, true
	}
	return cv.Value, true
}

// GetInt returns an int value, or the fallback if the key is absent or not
// parseable as an integer.
func (s *Store) GetInt(key string, fallback int) int {
	raw, ok := s.GetString(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// GetFloat returns a float64 value, or the fallback on absence/parse error.
func (s *Store) GetFloat(key string, fallback float64) float64 {
	raw, ok := s.GetString(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return f
}

// GetBool returns a bool value, or the fallback on absence/parse error.
func (s *Store) GetBool(key string, fallback bool) bool {
	raw, ok := s.GetString(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}

// All returns a shallow copy of the underlying map, secrets left encrypted,
// suitable for an export operation.
func (s *Store) All() map[string]ConfigValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ConfigValue, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
