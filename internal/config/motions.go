package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Motion is one entry of the character motion table
type Motion struct {
	Name             string
	TriggerCondition string
}

// Motions keeps the motion table in document order
type Motions []Motion

// UnmarshalYAML implements yaml.Unmarshaler.
// Each key maps either to {trigger_condition: ...} or directly to the condition string.
func (m *Motions) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*m = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: motion table must be a mapping", node.Line)
	}

	out := make(Motions, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if seen[key.Value] {
			return fmt.Errorf("line %d: duplicate motion %q", key.Line, key.Value)
		}
		seen[key.Value] = true

		motion := Motion{Name: key.Value}
		switch val.Kind {
		case yaml.ScalarNode:
			motion.TriggerCondition = val.Value
		case yaml.MappingNode:
			var body struct {
				TriggerCondition string `yaml:"trigger_condition"`
			}
			if err := val.Decode(&body); err != nil {
				return fmt.Errorf("motion %q: %w", key.Value, err)
			}
			motion.TriggerCondition = body.TriggerCondition
		default:
			return fmt.Errorf("line %d: motion %q must be a string or mapping", val.Line, key.Value)
		}
		out = append(out, motion)
	}

	*m = out
	return nil
}

// Names returns motion names in table order
func (m Motions) Names() []string {
	names := make([]string, len(m))
	for i, motion := range m {
		names[i] = motion.Name
	}
	return names
}

// Has reports whether name is a configured motion
func (m Motions) Has(name string) bool {
	for _, motion := range m {
		if motion.Name == name {
			return true
		}
	}
	return false
}
