package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/tally/pkg/jsonschema"
)

//go:embed schema.json
var schemaJSON []byte

var configSchema = jsonschema.MustCompile("tally-config.json", schemaJSON)

// Schema returns the JSON Schema configuration files are checked against.
func Schema() []byte {
	out := make([]byte, len(schemaJSON))
	copy(out, schemaJSON)
	return out
}

// LoadConfig reads, parses, defaults and validates the file at path.
//
// The file format is determined by extension:
//   - .json -> JSON
//   - anything else -> YAML
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := ParseConfig(data, path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig checks data against the configuration schema and decodes it.
// Defaults are not applied.
func ParseConfig(data []byte, path string) (*Config, error) {
	isJSON := strings.ToLower(filepath.Ext(path)) == ".json"

	doc, err := decodeGeneric(data, isJSON)
	if err != nil {
		return nil, err
	}
	if err := configSchema.Validate(doc); err != nil {
		var verrs jsonschema.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, schemaErrors(verrs)
		}
		return nil, err
	}

	var cfg Config
	if isJSON {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// decodeGeneric returns data as the maps and slices encoding/json would
// produce, which is what the schema validator expects.
func decodeGeneric(data []byte, isJSON bool) (any, error) {
	var doc any
	if isJSON {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
		return emptyAsObject(doc), nil
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	doc = nil
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return emptyAsObject(doc), nil
}

// emptyAsObject treats an empty document as an empty configuration.
func emptyAsObject(doc any) any {
	if doc == nil {
		return map[string]any{}
	}
	return doc
}

func schemaErrors(verrs jsonschema.ValidationErrors) *ValidationErrors {
	errs := &ValidationErrors{}
	for _, e := range verrs {
		errs.Add("", "schema: "+e.Error())
	}
	return errs
}
