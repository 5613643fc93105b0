package report

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

const yamlIndent = 2

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(v)
	if err != nil {
		return renderError(FormatJSON, err)
	}

	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(yamlIndent)

	err := enc.Encode(v)
	if err != nil {
		return renderError(FormatYAML, err)
	}

	err = enc.Close()
	if err != nil {
		return renderError(FormatYAML, err)
	}

	return nil
}
