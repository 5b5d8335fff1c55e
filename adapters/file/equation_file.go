package file

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"orcacast/domain/behavior"
	"orcacast/ports"
)

// EquationFile reads behavior equations from a YAML or JSON document. Both layouts
// are accepted: a top-level list of equations, or a mapping with an "equations" list.
type EquationFile struct {
	path string
}

// NewEquationFile creates a file-backed equation source
func NewEquationFile(path string) ports.EquationSource {
	return &EquationFile{path: path}
}

type equationDocument struct {
	Equations []behavior.Equation `yaml:"equations"`
}

// Describe names the source
func (f *EquationFile) Describe() string {
	return "file:" + f.path
}

// FetchEquations reads and decodes the file. Unknown fields are rejected so that a
// misspelt key fails the load instead of silently zeroing a coefficient.
func (f *EquationFile) FetchEquations(ctx context.Context) ([]behavior.Equation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch ext := strings.ToLower(filepath.Ext(f.path)); ext {
	case ".yaml", ".yml", ".json":
	default:
		return nil, fmt.Errorf("unsupported equation file type: %s", ext)
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read equation file: %w", err)
	}
	return ParseEquations(data)
}

// ParseEquations decodes a YAML/JSON equation document
func ParseEquations(data []byte) ([]behavior.Equation, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse equation document: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	if node.Content[0].Kind == yaml.SequenceNode {
		var list []behavior.Equation
		if err := strictDecode(data, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var doc equationDocument
	if err := strictDecode(data, &doc); err != nil {
		return nil, err
	}
	return doc.Equations, nil
}

func strictDecode(data []byte, out interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to decode equation document: %w", err)
	}
	return nil
}
