// Package agent holds the agent definition table and the reasoning engines
// that decide, per step, what an agent does next.
package agent

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/wellness-planner/internal/guardrail"
	"github.com/ashureev/wellness-planner/internal/tools"
)

//go:embed agents.yaml
var defaultDefinitions []byte

// ErrInvalidDefinitions is returned when the agent table fails referential checks.
var ErrInvalidDefinitions = errors.New("invalid agent definitions")

// Handoff is a directed edge from one agent to another.
type Handoff struct {
	Target      string           `yaml:"target" json:"target"`
	Description string           `yaml:"description" json:"description"`
	Guard       guardrail.Domain `yaml:"guard,omitempty" json:"guard,omitempty"`
}

// Definition is an immutable agent: its instructions, the tools it may invoke
// and the agents it may hand off to.
type Definition struct {
	Name         string       `yaml:"name" json:"name"`
	Primary      bool         `yaml:"primary,omitempty" json:"primary,omitempty"`
	Instructions string       `yaml:"instructions" json:"instructions"`
	Tools        []tools.Name `yaml:"tools,omitempty" json:"tools,omitempty"`
	Handoffs     []Handoff    `yaml:"handoffs,omitempty" json:"handoffs,omitempty"`
}

// HasTool reports whether the agent may invoke name.
func (d *Definition) HasTool(name tools.Name) bool {
	for _, t := range d.Tools {
		if t == name {
			return true
		}
	}
	return false
}

// Handoff returns the edge to target, if the agent declares one.
func (d *Definition) Handoff(target string) (Handoff, bool) {
	for _, h := range d.Handoffs {
		if h.Target == target {
			return h, true
		}
	}
	return Handoff{}, false
}

// ToolSpecs returns the declared shapes of the agent's tools in definition order.
func (d *Definition) ToolSpecs() []tools.Spec {
	out := make([]tools.Spec, 0, len(d.Tools))
	for _, name := range d.Tools {
		if s, ok := tools.Lookup(name); ok {
			out = append(out, s)
		}
	}
	return out
}

// Registry is the validated agent table.
type Registry struct {
	agents  map[string]*Definition
	order   []string
	primary string
}

type definitionFile struct {
	Agents []Definition `yaml:"agents"`
}

// LoadDefinitions reads the agent table from path, or the built-in table when
// path is empty, and validates it.
func LoadDefinitions(path string) (*Registry, error) {
	data := defaultDefinitions
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read agent definitions: %w", err)
		}
	}
	return ParseDefinitions(data)
}

// ParseDefinitions decodes and validates an agent table.
func ParseDefinitions(data []byte) (*Registry, error) {
	var file definitionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse agent definitions: %w", err)
	}
	return NewRegistry(file.Agents)
}

// NewRegistry builds a registry and checks it: unique names, exactly one
// primary agent, known tools and guards, and handoff targets that exist.
func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{agents: make(map[string]*Definition, len(defs))}
	var problems []string

	for i := range defs {
		def := defs[i]
		def.Name = strings.TrimSpace(def.Name)
		if def.Name == "" {
			problems = append(problems, fmt.Sprintf("agent #%d has no name", i+1))
			continue
		}
		if _, dup := r.agents[def.Name]; dup {
			problems = append(problems, fmt.Sprintf("agent %q defined twice", def.Name))
			continue
		}
		if def.Primary {
			if r.primary != "" {
				problems = append(problems, fmt.Sprintf("agents %q and %q are both primary", r.primary, def.Name))
			}
			r.primary = def.Name
		}
		for _, t := range def.Tools {
			if _, ok := tools.Lookup(t); !ok {
				problems = append(problems, fmt.Sprintf("agent %q: unknown tool %q", def.Name, t))
			}
		}
		def.Tools = append([]tools.Name(nil), def.Tools...)
		def.Handoffs = append([]Handoff(nil), def.Handoffs...)
		for j, h := range def.Handoffs {
			guard, ok := guardrail.ParseDomain(string(h.Guard))
			if !ok {
				problems = append(problems, fmt.Sprintf("agent %q: handoff %q has unknown guard %q", def.Name, h.Target, h.Guard))
			}
			def.Handoffs[j].Guard = guard
		}
		r.agents[def.Name] = &def
		r.order = append(r.order, def.Name)
	}

	if r.primary == "" {
		problems = append(problems, "no primary agent")
	}
	for _, name := range r.order {
		def := r.agents[name]
		for _, h := range def.Handoffs {
			if _, ok := r.agents[h.Target]; !ok {
				problems = append(problems, fmt.Sprintf("agent %q: handoff target %q does not exist", name, h.Target))
			}
			if h.Target == name {
				problems = append(problems, fmt.Sprintf("agent %q hands off to itself", name))
			}
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDefinitions, strings.Join(problems, "; "))
	}
	return r, nil
}

// Primary returns the agent every turn starts with.
func (r *Registry) Primary() *Definition {
	return r.agents[r.primary]
}

// Get returns the agent called name.
func (r *Registry) Get(name string) (*Definition, bool) {
	d, ok := r.agents[name]
	return d, ok
}

// Names lists agents in definition order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}
