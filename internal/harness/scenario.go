package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario: setup actions to establish
// concept state, then a sequence of external requests driven through the
// engine, each with an expected response.
type Scenario struct {
	// Name uniquely identifies the scenario; it doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Rules optionally points at a CUE rule file, relative to the
	// scenario file. Empty means the built-in demo rules.
	Rules string `yaml:"rules,omitempty"`

	// Setup actions are invoked directly against the registry before any
	// request, outside of any round. They are assumed to succeed.
	Setup []SetupStep `yaml:"setup,omitempty"`

	// Requests are submitted to the engine in order, each as its own
	// round.
	Requests []RequestStep `yaml:"requests"`
}

// SetupStep is one direct action invocation.
type SetupStep struct {
	Action string         `yaml:"action"`
	Args   map[string]any `yaml:"args"`
}

// RequestStep is one external request and its expected outcome.
type RequestStep struct {
	// Args is the inbound request payload.
	Args map[string]any `yaml:"args"`

	// Expect is a subset match against the response body. Omitted fields
	// are not checked.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Abandoned expects the round to quiesce without responding.
	Abandoned bool `yaml:"abandoned,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Requests) == 0 {
		return fmt.Errorf("requests list is required and must be non-empty")
	}
	for i, step := range s.Setup {
		if step.Action == "" {
			return fmt.Errorf("setup[%d]: action is required", i)
		}
	}
	for i, step := range s.Requests {
		if len(step.Args) == 0 {
			return fmt.Errorf("requests[%d]: args is required", i)
		}
		if step.Abandoned && step.Expect != nil {
			return fmt.Errorf("requests[%d]: abandoned excludes expect", i)
		}
	}
	return nil
}
