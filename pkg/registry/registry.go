// pkg/registry/registry.go
package registry

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

func LoadRegistry(path string) (*CrewRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a crew registry document and checks its references.
func Parse(data []byte) (*CrewRegistry, error) {
	var reg CrewRegistry
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&reg); err != nil {
		return nil, fmt.Errorf("decode crew registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *CrewRegistry) Validate() error {
	if r.Process == "" {
		r.Process = ProcessSequential
	}
	if r.Process != ProcessSequential {
		return fmt.Errorf("unsupported process %q: only %q is available", r.Process, ProcessSequential)
	}
	if len(r.Tasks) == 0 {
		return fmt.Errorf("crew registry has no tasks")
	}

	agents := make(map[string]bool, len(r.Agents))
	for _, a := range r.Agents {
		if a.ID == "" || a.Role == "" {
			return fmt.Errorf("agent definitions need an id and a role")
		}
		if agents[a.ID] {
			return fmt.Errorf("duplicate agent id %q", a.ID)
		}
		agents[a.ID] = true
	}

	tasks := make(map[string]bool, len(r.Tasks))
	for _, t := range r.Tasks {
		if t.ID == "" {
			return fmt.Errorf("task definitions need an id")
		}
		if tasks[t.ID] {
			return fmt.Errorf("duplicate task id %q", t.ID)
		}
		if !agents[t.Agent] {
			return fmt.Errorf("task %q references unknown agent %q", t.ID, t.Agent)
		}
		if t.Context != nil {
			for _, c := range *t.Context {
				if !tasks[c] {
					return fmt.Errorf("task %q context %q must be an earlier task", t.ID, c)
				}
			}
		}
		tasks[t.ID] = true
	}
	return nil
}
