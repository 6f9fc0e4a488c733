// Package harness provides YAML-driven conformance scenarios for the
// rule-language front end.
//
// A scenario pairs a source text with the expected parse outcome. The
// scenario files under testdata/scenarios are the readable statement of
// what the language accepts today; golden files under testdata/golden pin
// the exact rendered outcomes.
package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario defines one parser conformance case.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Source is the rule text fed to the parser.
	Source string `yaml:"source"`

	// Expect specifies the expected outcome.
	Expect Expectation `yaml:"expect"`
}

// Expectation is the expected parse outcome for a scenario.
type Expectation struct {
	// OK reports whether the parse should succeed.
	OK bool `yaml:"ok"`

	// Package is the expected package path when OK.
	Package string `yaml:"package,omitempty"`

	// Line and Col locate the expected failure when not OK.
	Line int `yaml:"line,omitempty"`
	Col  int `yaml:"col,omitempty"`

	// Kind is the expected failure kind ("io", "encoding", "syntax",
	// "internal") when not OK.
	Kind string `yaml:"kind,omitempty"`

	// MessageContains is a substring the failure message must contain.
	MessageContains string `yaml:"message_contains,omitempty"`
}

// LoadScenario reads and validates a single scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}

	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if s.Expect.OK && s.Expect.Kind != "" {
		return nil, fmt.Errorf("scenario %s: expect.kind is only valid for failures", path)
	}

	return &s, nil
}

// LoadDir loads every .yaml scenario under dir, sorted by file name so
// test order is stable.
func LoadDir(dir string) ([]Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario dir: %w", err)
	}

	var scenarios []Scenario
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, *s)
	}

	return scenarios, nil
}
