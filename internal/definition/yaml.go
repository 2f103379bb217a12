package definition

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// LoadYAML decodes a YAML definition.
func LoadYAML(src []byte) (*Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(src, &d); err != nil {
		return nil, fmt.Errorf("decoding yaml definition: %w", err)
	}
	return d.normalize()
}
