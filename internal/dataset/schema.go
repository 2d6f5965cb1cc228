package dataset

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// fileSchema describes the expected JSON shape of one dataset file.
type fileSchema struct {
	Name       string
	Definition map[string]any
}

var indexSchema = &fileSchema{
	Name: "index",
	Definition: map[string]any{
		"type":          "object",
		"minProperties": 1,
		"additionalProperties": map[string]any{
			"oneOf": []any{
				map[string]any{
					"type":     "array",
					"minItems": 1,
					"items":    map[string]any{"type": "string", "minLength": 1},
				},
				map[string]any{
					"type":                 "object",
					"minProperties":        1,
					"propertyNames":        map[string]any{"pattern": "^[0-9]+$"},
					"additionalProperties": map[string]any{"type": "string", "minLength": 1},
				},
			},
		},
	},
}

var tagNamesSchema = &fileSchema{
	Name: "tagnames",
	Definition: map[string]any{
		"type":     "object",
		"required": []any{"tagnames"},
		"properties": map[string]any{
			"tagnames": map[string]any{
				"type":                 "object",
				"minProperties":        1,
				"propertyNames":        map[string]any{"pattern": "^[0-9]+$"},
				"additionalProperties": map[string]any{"type": "string", "minLength": 1},
			},
		},
	},
}

var choicesSchema = &fileSchema{
	Name: "choices",
	Definition: map[string]any{
		"type": "object",
		"additionalProperties": map[string]any{
			"type":     "object",
			"required": []any{"options", "correct"},
			"properties": map[string]any{
				"options": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				"correct": map[string]any{"type": "string"},
			},
		},
	},
}

// schemaCache caches compiled schemas by name.
var schemaCache sync.Map // map[string]*jsonschema.Schema

// validate checks raw JSON against the schema.
func validate(schema *fileSchema, raw []byte) error {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	compiled, err := compiledSchema(schema)
	if err != nil {
		return fmt.Errorf("compile schema %q: %w", schema.Name, err)
	}

	if err := compiled.Validate(parsed); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func compiledSchema(schema *fileSchema) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(schema.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	// The compiler wants a decoded JSON value, not Go maps with typed slices.
	defBytes, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	var defParsed any
	if err := json.Unmarshal(defBytes, &defParsed); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://quail/%s.json", schema.Name)
	if err := c.AddResource(url, defParsed); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(schema.Name, compiled)
	return compiled, nil
}
