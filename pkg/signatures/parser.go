package signatures

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Pack is a named group of signatures as stored in a YAML file.
type Pack struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	Version     string      `yaml:"version"`
	Description string      `yaml:"description,omitempty"`
	Signatures  []Signature `yaml:"signatures"`
}

// LoadFromFile loads a signature pack from a YAML file.
func LoadFromFile(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signature file: %w", err)
	}

	return Parse(data)
}

// Parse parses a signature pack from YAML bytes. Every signature is validated
// and compiled so that a bad pack is rejected before it reaches a registry.
func Parse(data []byte) (*Pack, error) {
	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to parse signature YAML: %w", err)
	}

	if len(pack.Signatures) == 0 {
		return nil, fmt.Errorf("signature pack %q has no signatures", pack.ID)
	}

	// Validate in isolation so duplicate ids inside one pack surface here.
	if _, err := NewRegistry(pack.Signatures...); err != nil {
		return nil, fmt.Errorf("invalid signature pack %q: %w", pack.ID, err)
	}

	return &pack, nil
}
