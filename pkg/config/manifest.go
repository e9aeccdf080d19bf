package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Manifest is a workflow manifest file: a list of missions to register.
type Manifest struct {
	Missions []ManifestMission `yaml:"missions"`
}

// ManifestMission describes one mission in a manifest.
type ManifestMission struct {
	ID        string         `yaml:"id"`
	Objective string         `yaml:"objective,omitempty"`
	Notes     string         `yaml:"notes,omitempty"`
	Tags      []string       `yaml:"tags,omitempty"`
	Metadata  map[string]any `yaml:"metadata,omitempty"`
}

// LoadManifest parses a YAML workflow manifest. Missions without an id get a
// generated one; duplicate ids are an error.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	seen := make(map[string]bool, len(m.Missions))
	for i := range m.Missions {
		if m.Missions[i].ID == "" {
			m.Missions[i].ID = "mission-" + uuid.NewString()[:8]
		}
		id := m.Missions[i].ID
		if seen[id] {
			return nil, fmt.Errorf("manifest %s: duplicate mission id %q", path, id)
		}
		seen[id] = true
	}
	return &m, nil
}

// IDs returns the mission ids in manifest order.
func (m *Manifest) IDs() []string {
	out := make([]string, len(m.Missions))
	for i, mm := range m.Missions {
		out[i] = mm.ID
	}
	return out
}
