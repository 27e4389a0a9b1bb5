package rag

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FieldConfig customizes the query for one field.
type FieldConfig struct {
	Prompt   string   `json:"prompt,omitempty"`
	Format   string   `json:"format,omitempty"`
	Examples []string `json:"examples,omitempty"`
}

// SectionConfig holds the field configs of one section.
type SectionConfig struct {
	Fields map[string]FieldConfig `json:"fields"`
}

// CompanyConfig is a company's prompt configuration, keyed by section.
type CompanyConfig struct {
	BenefitHeaders map[string]SectionConfig `json:"benefit_headers"`
}

// Field returns the config for section.field. A header matches its section
// exactly or, failing that, when its lower-cased name contains the section
// name. A nil config has no fields.
func (c *CompanyConfig) Field(section, field string) (FieldConfig, bool) {
	if c == nil {
		return FieldConfig{}, false
	}
	if sec, ok := c.BenefitHeaders[section]; ok {
		fc, ok := sec.Fields[field]
		return fc, ok
	}
	for name, sec := range c.BenefitHeaders {
		if strings.Contains(strings.ToLower(name), section) {
			fc, ok := sec.Fields[field]
			return fc, ok
		}
	}
	return FieldConfig{}, false
}

// ConfigLoader reads company configs from <dir>/<company>.json.
type ConfigLoader struct {
	dir string
}

// NewConfigLoader creates a loader over dir.
func NewConfigLoader(dir string) *ConfigLoader {
	return &ConfigLoader{dir: dir}
}

// Load reads the config of company.
// Returns ErrConfigNotFound if the company has no config file.
func (l *ConfigLoader) Load(company string) (*CompanyConfig, error) {
	if company == "" || company != filepath.Base(company) || strings.HasPrefix(company, ".") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCompany, company)
	}

	path := filepath.Join(l.dir, company+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, company)
	}
	if err != nil {
		return nil, err
	}

	var cfg CompanyConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &cfg, nil
}
