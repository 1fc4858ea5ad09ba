package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simforge/simforge/internal/core/schema/registry"
)

const yamlRules = `
rules:
  - marker: character_info
    defaults: [hunger]
`

const tomlRules = `
[[rules]]
marker = "character_info"
defaults = ["hunger"]
`

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	reg.MustRegister("character_info", nil)
	reg.MustRegister("hunger", &registry.Schema{
		Default: func() map[string]any {
			return map[string]any{"current": 100.0, "maximum": 100.0}
		},
	})
	return reg
}

func TestLoadYAML(t *testing.T) {
	rules, err := LoadYAML(strings.NewReader(yamlRules))
	require.NoError(t, err)
	require.Len(t, rules.Rules, 1)
	assert.Equal(t, "character_info", rules.Rules[0].Marker)
	assert.Equal(t, []string{"hunger"}, rules.Rules[0].Defaults)
}

func TestLoadTOML(t *testing.T) {
	rules, err := LoadTOML(strings.NewReader(tomlRules))
	require.NoError(t, err)
	require.Len(t, rules.Rules, 1)
	assert.Equal(t, "character_info", rules.Rules[0].Marker)
}

func TestYAMLAndTOMLAgree(t *testing.T) {
	fromYAML, err := LoadYAML(strings.NewReader(yamlRules))
	require.NoError(t, err)
	fromTOML, err := LoadTOML(strings.NewReader(tomlRules))
	require.NoError(t, err)
	assert.Equal(t, fromYAML, fromTOML)
}

func TestValidateOK(t *testing.T) {
	rules, err := LoadYAML(strings.NewReader(yamlRules))
	require.NoError(t, err)
	assert.NoError(t, rules.Validate(testRegistry(t)))
}

func TestValidateUnknownMarker(t *testing.T) {
	rules := &DefaultRules{Rules: []ArchetypeRule{{Marker: "ghost", Defaults: []string{"hunger"}}}}
	assert.Error(t, rules.Validate(testRegistry(t)))
}

func TestValidateDefaultWithoutConstructor(t *testing.T) {
	reg := testRegistry(t)
	reg.MustRegister("decoration", nil)
	rules := &DefaultRules{Rules: []ArchetypeRule{{Marker: "character_info", Defaults: []string{"decoration"}}}}
	assert.Error(t, rules.Validate(reg))
}

func TestValidateEmptyRule(t *testing.T) {
	rules := &DefaultRules{Rules: []ArchetypeRule{{Marker: "", Defaults: []string{"hunger"}}}}
	assert.Error(t, rules.Validate(testRegistry(t)))

	rules = &DefaultRules{Rules: []ArchetypeRule{{Marker: "character_info"}}}
	assert.Error(t, rules.Validate(testRegistry(t)))
}
