package agents

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Descriptor is the static description of an agent.
type Descriptor struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Description   string   `yaml:"description" json:"description"`
	IDPrefix      string   `yaml:"idPrefix" json:"-"`
	Capabilities  []string `yaml:"capabilities" json:"capabilities"`
	Schedule      string   `yaml:"schedule,omitempty" json:"schedule,omitempty"`
	ScheduledTask string   `yaml:"scheduledTask,omitempty" json:"-"`
}

type catalog struct {
	Agents []Descriptor `yaml:"agents"`
}

// LoadCatalog parses an agent catalog document.
func LoadCatalog(data []byte) ([]Descriptor, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse agent catalog: %w", err)
	}
	if len(c.Agents) == 0 {
		return nil, errors.New("agent catalog is empty")
	}
	seen := make(map[string]bool, len(c.Agents))
	for _, d := range c.Agents {
		if d.ID == "" || d.Name == "" {
			return nil, fmt.Errorf("agent catalog entry missing id or name: %+v", d)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate agent id %q", d.ID)
		}
		seen[d.ID] = true
	}
	return c.Agents, nil
}

// DefaultCatalog returns the built-in agent descriptors.
func DefaultCatalog() ([]Descriptor, error) {
	return LoadCatalog(catalogYAML)
}
