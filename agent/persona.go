package agent

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultBacking is the name of the capability personas use when they do not
// name one.
const DefaultBacking = "default"

// DefaultPersonaID is the persona used for requests without an agent id.
const DefaultPersonaID = "assistant"

// Persona is a display identity layered over a backing capability.
type Persona struct {
	ID             string   `yaml:"id" json:"id"`
	Name           string   `yaml:"name" json:"name"`
	Type           string   `yaml:"type" json:"type"`
	Description    string   `yaml:"description" json:"description"`
	Capabilities   []string `yaml:"capabilities" json:"capabilities"`
	Version        string   `yaml:"version" json:"version"`
	ResponsePrefix string   `yaml:"response_prefix,omitempty" json:"response_prefix,omitempty"`
	ChatGreeting   string   `yaml:"chat_greeting,omitempty" json:"chat_greeting,omitempty"`
	Activity       string   `yaml:"activity,omitempty" json:"activity,omitempty"`
	Backing        string   `yaml:"backing,omitempty" json:"backing,omitempty"`
}

// BackingName returns the capability name the persona routes to.
func (p Persona) BackingName() string {
	if p.Backing == "" {
		return DefaultBacking
	}
	return p.Backing
}

// Matches reports whether name refers to this persona by id or display name.
// Display names match case-insensitively with spaces and underscores treated
// alike ("software_engineer" matches "Software Engineer").
func (p Persona) Matches(name string) bool {
	if name == p.ID {
		return true
	}
	norm := func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	}
	n := norm(name)
	return n != "" && (n == norm(p.ID) || n == norm(p.Name))
}

// DefaultPersonas returns the built-in persona table.
func DefaultPersonas() []Persona {
	return []Persona{
		{
			ID:          "assistant",
			Name:        "Bragi",
			Type:        "assistant",
			Description: "A wise and eloquent AI assistant that can help with various tasks, from answering questions to helping with complex problems.",
			Capabilities: []string{
				"natural_language_understanding", "task_processing", "information_retrieval",
				"problem_solving", "real_time_responses",
			},
			Version:  "2.0.0",
			Activity: "Bragi is analyzing your task",
		},
		{
			ID:          "coordinator",
			Name:        "Odin",
			Type:        "coordinator",
			Description: "The wise overseer of all operations and strategic planning.",
			Capabilities: []string{
				"strategic_planning", "resource_management", "agent_coordination",
				"task_prioritization", "system_optimization",
			},
			Version:        "2.0.0",
			ResponsePrefix: "Odin's wisdom: ",
			ChatGreeting:   "Greetings! I am Odin. ",
			Activity:       "Odin is coordinating your task",
		},
		{
			ID:          "architect",
			Name:        "Thor",
			Type:        "architect",
			Description: "The master builder and maintainer of the system's agents.",
			Capabilities: []string{
				"agent_creation", "system_architecture", "capability_enhancement",
				"performance_testing", "agent_maintenance",
			},
			Version:        "2.0.0",
			ResponsePrefix: "Thor's guidance: ",
			ChatGreeting:   "Hail! I am Thor. ",
			Activity:       "Thor is architecting your solution",
		},
		{
			ID:          "engineer",
			Name:        "Software Engineer",
			Type:        "engineer",
			Description: "Implements and maintains software solutions.",
			Capabilities: []string{
				"code_development", "bug_fixing", "code_review", "testing", "technical_implementation",
			},
			Version: "2.0.0",
		},
		{
			ID:          "researcher",
			Name:        "AI Researcher",
			Type:        "researcher",
			Description: "Conducts research and analysis in artificial intelligence.",
			Capabilities: []string{
				"data_analysis", "research_planning", "experiment_design", "literature_review", "innovation_discovery",
			},
			Version: "2.0.0",
		},
	}
}

type personaFile struct {
	Personas []Persona `yaml:"personas"`
}

// ParsePersonas decodes a YAML persona table of the form
//
//	personas:
//	  - id: assistant
//	    name: Bragi
//	    ...
func ParsePersonas(data []byte) ([]Persona, error) {
	var f personaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse personas: %w", err)
	}
	if err := validatePersonas(f.Personas); err != nil {
		return nil, err
	}
	return f.Personas, nil
}

// LoadPersonas reads a YAML persona table from path.
func LoadPersonas(path string) ([]Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personas file: %w", err)
	}
	return ParsePersonas(data)
}

func validatePersonas(ps []Persona) error {
	if len(ps) == 0 {
		return fmt.Errorf("personas: table is empty")
	}
	seen := make(map[string]struct{}, len(ps))
	for i, p := range ps {
		if p.ID == "" {
			return fmt.Errorf("personas[%d]: id is required", i)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("personas[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}
