package config

import (
	"fmt"
	"os"

	internalconfig "github.com/foxseedlab/scamwatch/internal/config"
	"gopkg.in/yaml.v3"
)

// ProviderPresets is the on-disk list of advisory providers a user can
// switch between. The first entry is the default.
type ProviderPresets struct {
	Advisory []advisoryPreset `yaml:"advisory"`
}

type advisoryPreset struct {
	Name              string            `yaml:"name"`
	BaseURL           string            `yaml:"base_url"`
	APIKey            string            `yaml:"api_key"`
	Model             string            `yaml:"model"`
	UseAuthHeader     *bool             `yaml:"use_auth_header"`
	SupportsReasoning bool              `yaml:"supports_reasoning"`
	SystemPrompt      string            `yaml:"system_prompt"`
	RawJSONMode       bool              `yaml:"raw_json_mode"`
	RawJSONTemplate   string            `yaml:"raw_json_template"`
	Headers           map[string]string `yaml:"headers"`
}

func LoadProviders(path string) (*ProviderPresets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}
	return ParseProviders(data)
}

func ParseProviders(data []byte) (*ProviderPresets, error) {
	var presets ProviderPresets
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("parse providers file: %w", err)
	}
	if len(presets.Advisory) == 0 {
		return nil, fmt.Errorf("providers file has no advisory entries")
	}
	seen := make(map[string]struct{}, len(presets.Advisory))
	for i, p := range presets.Advisory {
		if p.Name == "" {
			return nil, fmt.Errorf("advisory entry %d has no name", i)
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("advisory entry %q is duplicated", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return &presets, nil
}

// Select returns the preset with the given name, or the first preset when
// name is empty.
func (p *ProviderPresets) Select(name string) (internalconfig.AdvisoryProvider, error) {
	if name == "" {
		return p.Advisory[0].toProvider(), nil
	}
	for _, a := range p.Advisory {
		if a.Name == name {
			return a.toProvider(), nil
		}
	}
	return internalconfig.AdvisoryProvider{}, fmt.Errorf("advisory provider %q not found", name)
}

func (a advisoryPreset) toProvider() internalconfig.AdvisoryProvider {
	useAuth := true
	if a.UseAuthHeader != nil {
		useAuth = *a.UseAuthHeader
	}
	return internalconfig.AdvisoryProvider{
		Name:              a.Name,
		BaseURL:           a.BaseURL,
		APIKey:            a.APIKey,
		Model:             a.Model,
		UseAuthHeader:     useAuth,
		SupportsReasoning: a.SupportsReasoning,
		SystemPrompt:      a.SystemPrompt,
		RawJSONMode:       a.RawJSONMode,
		RawJSONTemplate:   a.RawJSONTemplate,
		Headers:           a.Headers,
	}
}
