package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lobsim/lobsim/sim/runner"
)

// PresetsFile represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type PresetsFile struct {
	Version   string               `yaml:"version"`
	Scenarios map[string]yaml.Node `yaml:"scenarios"`
}

// loadPresetsFile parses defaults.yaml with strict field checking.
func loadPresetsFile(path string) (PresetsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PresetsFile{}, fmt.Errorf("reading presets file: %w", err)
	}
	var pf PresetsFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&pf); err != nil {
		return PresetsFile{}, fmt.Errorf("parsing presets file %s: %w", path, err)
	}
	return pf, nil
}

// Names returns the preset names in lexical order.
func (pf PresetsFile) Names() []string {
	names := make([]string, 0, len(pf.Scenarios))
	for name := range pf.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scenario decodes preset name on top of the default scenario. Scenario
// bodies are strict as well: a misspelled agent field is an error.
func (pf PresetsFile) Scenario(name string) (runner.Scenario, error) {
	node, ok := pf.Scenarios[name]
	if !ok {
		return runner.Scenario{}, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(pf.Names(), ", "))
	}
	data, err := yaml.Marshal(&node)
	if err != nil {
		return runner.Scenario{}, fmt.Errorf("preset %q: %w", name, err)
	}
	sc, err := runner.ParseScenario(bytes.NewReader(data))
	if err != nil {
		return runner.Scenario{}, fmt.Errorf("preset %q: %w", name, err)
	}
	return sc, nil
}

// loadPreset resolves --preset: a path to a scenario YAML file, or else the
// name of a scenario in the presets file.
func loadPreset(preset, presetsPath string) (runner.Scenario, error) {
	if ext := filepath.Ext(preset); ext == ".yaml" || ext == ".yml" {
		return runner.LoadScenario(preset)
	}
	pf, err := loadPresetsFile(presetsPath)
	if err != nil {
		return runner.Scenario{}, err
	}
	return pf.Scenario(preset)
}
