package format

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

// PrettyPrintYAML encodes v as YAML with a two space indent.
func PrettyPrintYAML(v any) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(v); err != nil {
		return "", err
	}
	if err := encoder.Close(); err != nil {
		return "", err
	}

	return buf.String(), nil
}
