// Package config holds the data-driven pieces of the persistence layer.
//
// Backward-compatibility defaulting is configuration, not code: a rule maps
// an archetype marker component to the component types that should be
// synthesized when an older snapshot never wrote them. New archetypes get
// covered by adding a rule, not by editing the loader.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/simforge/simforge/internal/core/schema/registry"
)

// ArchetypeRule synthesizes default components during load. An entity is
// recognized as belonging to the archetype by holding the Marker component;
// each listed default type is added only when absent, and only when the
// registry declares a default for it.
type ArchetypeRule struct {
	Marker   string   `json:"marker" yaml:"marker" toml:"marker"`
	Defaults []string `json:"defaults" yaml:"defaults" toml:"defaults"`
}

// DefaultRules is the full rule set applied by the save system.
type DefaultRules struct {
	Rules []ArchetypeRule `json:"rules" yaml:"rules" toml:"rules"`
}

// LoadYAML reads a rule set from a YAML document.
func LoadYAML(r io.Reader) (*DefaultRules, error) {
	var rules DefaultRules
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&rules); err != nil {
		return nil, fmt.Errorf("config: decode yaml rules: %w", err)
	}
	return &rules, nil
}

// LoadTOML reads a rule set from a TOML document.
func LoadTOML(r io.Reader) (*DefaultRules, error) {
	var rules DefaultRules
	if _, err := toml.NewDecoder(r).Decode(&rules); err != nil {
		return nil, fmt.Errorf("config: decode toml rules: %w", err)
	}
	return &rules, nil
}

// LoadFile dispatches on the file extension (.yaml/.yml or .toml).
func LoadFile(path string) (*DefaultRules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open rules file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(f)
	case ".toml":
		return LoadTOML(f)
	default:
		return nil, fmt.Errorf("config: unsupported rules format %q", filepath.Ext(path))
	}
}

// Validate checks the rule set against the component registry: markers and
// default types must be registered, and every default type needs a schema
// with a default constructor, otherwise there is nothing to synthesize.
func (r *DefaultRules) Validate(reg *registry.Registry) error {
	for i, rule := range r.Rules {
		if rule.Marker == "" {
			return fmt.Errorf("config: rule %d: empty marker", i)
		}
		if _, ok := reg.Type(rule.Marker); !ok {
			return fmt.Errorf("config: rule %d: marker %q not registered", i, rule.Marker)
		}
		if len(rule.Defaults) == 0 {
			return fmt.Errorf("config: rule %d (%s): no default components", i, rule.Marker)
		}
		for _, name := range rule.Defaults {
			t, ok := reg.Type(name)
			if !ok {
				return fmt.Errorf("config: rule %d (%s): default %q not registered", i, rule.Marker, name)
			}
			if t.Schema().DefaultValue() == nil {
				return fmt.Errorf("config: rule %d (%s): type %q declares no default value", i, rule.Marker, name)
			}
		}
	}
	return nil
}
