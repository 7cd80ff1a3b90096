package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BackendProfile declares one generator backend. Order in the file is the
// consensus priority order. API keys are referenced by environment variable
// name, never stored in the file.
type BackendProfile struct {
	Name      string `yaml:"name"`
	Endpoint  string `yaml:"endpoint"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

// APIKey resolves the backend's key from the environment. Empty when the
// backend needs none.
func (p BackendProfile) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

type backendsFile struct {
	Backends []BackendProfile `yaml:"backends"`
}

// LoadBackends reads the backend fleet profile. At least one backend must be
// declared and names must be unique, since they double as provenance ids.
func LoadBackends(path string) ([]BackendProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("backends profile: read %q: %w", path, err)
	}
	return ParseBackends(data)
}

// ParseBackends parses a backend fleet profile from YAML bytes.
func ParseBackends(data []byte) ([]BackendProfile, error) {
	var file backendsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("backends profile: parse: %w", err)
	}
	if len(file.Backends) == 0 {
		return nil, fmt.Errorf("backends profile: no backends declared")
	}
	seen := make(map[string]struct{}, len(file.Backends))
	for i, b := range file.Backends {
		if b.Name == "" {
			return nil, fmt.Errorf("backends profile: backend %d has no name", i)
		}
		if b.Endpoint == "" {
			return nil, fmt.Errorf("backends profile: backend %q has no endpoint", b.Name)
		}
		if _, dup := seen[b.Name]; dup {
			return nil, fmt.Errorf("backends profile: duplicate backend name %q", b.Name)
		}
		seen[b.Name] = struct{}{}
	}
	return file.Backends, nil
}
