package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/helixir/paper-acquisition-service/internal/domain"
)

// SourceDefinition is one entry of the source seed file.
type SourceDefinition struct {
	Name                    string            `yaml:"name"`
	Implementation          string            `yaml:"implementation"`
	Protocol                string            `yaml:"protocol"`
	Enabled                 *bool             `yaml:"enabled"`
	SupportsListing         bool              `yaml:"supports_listing"`
	SupportsSearch          *bool             `yaml:"supports_search"`
	EnableAutomaticSearch   *bool             `yaml:"enable_automatic_search"`
	EnableInteractiveSearch *bool             `yaml:"enable_interactive_search"`
	Priority                int               `yaml:"priority"`
	Tags                    []string          `yaml:"tags"`
	RateLimitInterval       time.Duration     `yaml:"rate_limit_interval"`
	Settings                map[string]string `yaml:"settings"`
}

type sourcesFile struct {
	Sources []SourceDefinition `yaml:"sources"`
}

// LoadSources reads a YAML seed file of source definitions.
func LoadSources(path string) ([]domain.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}
	return ParseSources(bytes.NewReader(data))
}

// ParseSources decodes source definitions. Enabled and the search toggles
// default to true when omitted; names must be unique.
func ParseSources(r io.Reader) ([]domain.Source, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file sourcesFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Sources))
	out := make([]domain.Source, 0, len(file.Sources))
	for i, def := range file.Sources {
		if def.Name == "" {
			return nil, fmt.Errorf("source %d: name is required", i)
		}
		if def.Implementation == "" {
			return nil, fmt.Errorf("source %q: implementation is required", def.Name)
		}
		if _, dup := seen[def.Name]; dup {
			return nil, fmt.Errorf("source %q: defined more than once", def.Name)
		}
		seen[def.Name] = struct{}{}
		if def.RateLimitInterval < 0 {
			return nil, fmt.Errorf("source %q: rate_limit_interval must not be negative", def.Name)
		}
		if def.Priority != 0 && (def.Priority < domain.MinPriority || def.Priority > domain.MaxPriority) {
			return nil, fmt.Errorf("source %q: priority must be between %d and %d", def.Name, domain.MinPriority, domain.MaxPriority)
		}

		out = append(out, domain.Source{
			Name:                    def.Name,
			Implementation:          def.Implementation,
			Protocol:                domain.Protocol(def.Protocol),
			Enabled:                 boolOr(def.Enabled, true),
			SupportsListing:         def.SupportsListing,
			SupportsSearch:          boolOr(def.SupportsSearch, true),
			EnableAutomaticSearch:   boolOr(def.EnableAutomaticSearch, true),
			EnableInteractiveSearch: boolOr(def.EnableInteractiveSearch, true),
			Priority:                def.Priority,
			Tags:                    def.Tags,
			RateLimitInterval:       def.RateLimitInterval,
			Settings:                def.Settings,
		})
	}
	return out, nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
