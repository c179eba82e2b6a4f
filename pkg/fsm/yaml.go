package fsm

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type yamlGraph struct {
	EntityType string    `yaml:"entity_type"`
	States     yaml.Node `yaml:"states"`
}

// ParseConfigYAML builds a string-typed graph from YAML. State order in the
// document is preserved:
//
//	entity_type: nda
//	states:
//	  NDA_REQUESTED:
//	    - to: NDA_DRAFTED
//	      required_role: contracts_team
//	  NDA_DRAFTED: []
func ParseConfigYAML(data []byte) (Config[string], error) {
	var g yamlGraph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return Config[string]{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if g.States.Kind != yaml.MappingNode {
		return Config[string]{}, fmt.Errorf("%w: states must be a mapping", ErrInvalidConfig)
	}

	opts := make([]ConfigOption[string], 0, len(g.States.Content)/2)
	for i := 0; i+1 < len(g.States.Content); i += 2 {
		name := g.States.Content[i].Value
		var edges []Edge[string]
		if err := g.States.Content[i+1].Decode(&edges); err != nil {
			return Config[string]{}, fmt.Errorf("%w: state %q: %v", ErrInvalidConfig, name, err)
		}
		if len(edges) == 0 {
			opts = append(opts, Terminal(name))
			continue
		}
		opts = append(opts, From(name, edges...))
	}

	return NewConfig(EntityType(g.EntityType), opts...)
}
