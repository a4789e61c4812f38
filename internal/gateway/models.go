package gateway

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Model describes one selectable upstream model in the catalog.
type Model struct {
	ID                    string          `yaml:"id" json:"id"`
	Name                  string          `yaml:"name" json:"name"`
	Provider              string          `yaml:"provider" json:"provider"`
	Parameters            ModelParameters `yaml:"parameters" json:"parameters"`
	PricePerMillionTokens ModelPrice      `yaml:"price_per_million_tokens" json:"pricePerMillionTokens"`
	Capabilities          []string        `yaml:"capabilities" json:"capabilities"`
	Status                string          `yaml:"status" json:"status"`
	Description           string          `yaml:"description" json:"description"`
}

type ModelParameters struct {
	Context         int    `yaml:"context" json:"context"`
	MaxOutputTokens int    `yaml:"max_output_tokens" json:"max_output_tokens"`
	Size            string `yaml:"size" json:"size"`
}

type ModelPrice struct {
	Input  float64 `yaml:"input" json:"input"`
	Output float64 `yaml:"output" json:"output"`
}

type catalogFile struct {
	Models []Model `yaml:"models"`
}

// LoadCatalog reads the model catalog from a YAML file holding a top-level
// "models" list.
func LoadCatalog(path string) ([]Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse model catalog %s: %w", path, err)
	}
	for i, m := range f.Models {
		if m.ID == "" {
			return nil, fmt.Errorf("parse model catalog %s: models[%d] has no id", path, i)
		}
		if f.Models[i].Capabilities == nil {
			f.Models[i].Capabilities = []string{}
		}
	}
	return f.Models, nil
}
