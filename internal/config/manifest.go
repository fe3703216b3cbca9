package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

type Manifest struct {
	Datasets []domain.Dataset `yaml:"datasets"`
}

// DefaultManifest lists the cafe's raw files in formatting order.
func DefaultManifest() []domain.Dataset {
	return []domain.Dataset{
		{Source: domain.SourceMenu, File: "menu.json"},
		{Source: domain.SourceBranches, File: "branches.json"},
		{Source: domain.SourceNotes, File: "notes.json"},
	}
}

// LoadManifest reads a YAML dataset manifest. An empty path selects the
// default manifest.
func LoadManifest(path string) ([]domain.Dataset, error) {
	if path == "" {
		return DefaultManifest(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "read manifest", err)
	}
	return ParseManifest(data)
}

func ParseManifest(data []byte) ([]domain.Dataset, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "parse manifest", err)
	}
	if len(m.Datasets) == 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "parse manifest", fmt.Errorf("no datasets listed"))
	}
	for i, ds := range m.Datasets {
		if !ds.Source.Valid() {
			return nil, domain.WrapError(domain.ErrConfiguration, "parse manifest", fmt.Errorf("datasets[%d]: unknown source %q", i, ds.Source))
		}
		if ds.File == "" {
			return nil, domain.WrapError(domain.ErrConfiguration, "parse manifest", fmt.Errorf("datasets[%d]: file is required", i))
		}
	}
	return m.Datasets, nil
}
