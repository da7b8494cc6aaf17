package directory

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("directory.schema.json", schemaJSON)

// Format is a directory file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

type file struct {
	Stacks []Stack `json:"stacks"`
}

// Load reads a directory file, picking the decoder from the extension.
func Load(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("directory: failed to read %s: %w", path, err)
	}

	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, format)
}

// Parse decodes, validates and builds a directory.
func Parse(data []byte, format Format) (*Directory, error) {
	var raw any
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	case FormatTOML:
		err = toml.Unmarshal(data, &raw)
	case FormatJSON:
		err = sonic.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalid, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s: %v", ErrInvalid, format, err)
	}

	// Round-trip through JSON so the validator and the struct decoder see the
	// same plain values whichever parser produced them.
	normalized, err := sonic.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var doc any
	if err := sonic.Unmarshal(normalized, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var f file
	if err := sonic.Unmarshal(normalized, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return New(f.Stacks...)
}

func formatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unsupported file extension %q", ErrInvalid, filepath.Ext(path))
}
