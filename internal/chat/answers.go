package chat

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadAnswers reads a YAML mapping of field name to answer. Scalars are
// taken as written, so 01234 stays "01234".
func LoadAnswers(path string) (map[string]string, error) {
	data, err := os.ReadFile(path) // #nosec G304 - answers file given on the command line
	if err != nil {
		return nil, fmt.Errorf("failed to read answers file: %w", err)
	}
	return ParseAnswers(data)
}

// ParseAnswers decodes a YAML mapping of field name to answer
func ParseAnswers(data []byte) (map[string]string, error) {
	var nodes map[string]yaml.Node
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("failed to parse answers: %w", err)
	}

	answers := make(map[string]string, len(nodes))
	for name, node := range nodes {
		if node.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("answer for %q must be a single value", name)
		}
		answers[name] = node.Value
	}
	return answers, nil
}
