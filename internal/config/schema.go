package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// profileSchema is the JSON Schema every profile document must satisfy
// before unmarshaling. It catches structural mistakes (wrong types,
// unknown fields, missing sections) with precise locations; semantic
// checks live in Profile.Validate.
const profileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "required": ["endpoint", "stages"],
  "properties": {
    "name": {"type": "string"},
    "endpoint": {
      "type": "object",
      "additionalProperties": false,
      "required": ["url", "payloadFile"],
      "properties": {
        "url": {"type": "string", "minLength": 1},
        "payloadFile": {"type": "string", "minLength": 1},
        "contentType": {"type": "string"},
        "timeout": {"type": "string"},
        "model": {"type": "string"},
        "variants": {"type": "integer", "minimum": 0}
      }
    },
    "stages": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["duration", "users", "spawnRate"],
        "properties": {
          "duration": {"type": "string", "minLength": 1},
          "users": {"type": "integer", "minimum": 0},
          "spawnRate": {"type": "number", "exclusiveMinimum": 0},
          "name": {"type": "string"}
        }
      }
    },
    "tickInterval": {"type": "string"},
    "waitTime": {
      "type": "object",
      "additionalProperties": false,
      "required": ["min", "max"],
      "properties": {
        "min": {"type": "string"},
        "max": {"type": "string"}
      }
    },
    "metricsAddr": {"type": "string"}
  }
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func compiledProfileSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("profile.json", strings.NewReader(profileSchema)); err != nil {
			compileErr = fmt.Errorf("invalid profile schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("profile.json")
	})
	return compiledSchema, compileErr
}

// validateSchema checks raw profile data against the profile schema.
// YAML documents are decoded to plain maps first; yaml.v3 produces
// string-keyed maps, which the schema validator accepts directly.
func validateSchema(data []byte, path string) error {
	schema, err := compiledProfileSchema()
	if err != nil {
		return err
	}

	var doc interface{}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("invalid JSON profile: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("invalid YAML profile: %w", err)
		}
	}

	if err := schema.Validate(doc); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			errs := &ValidationErrors{}
			collectSchemaErrors(ve, errs)
			if errs.HasErrors() {
				return errs
			}
		}
		return fmt.Errorf("profile schema validation failed: %w", err)
	}
	return nil
}

func collectSchemaErrors(err *jsonschema.ValidationError, errs *ValidationErrors) {
	if len(err.Causes) == 0 {
		field := strings.TrimPrefix(err.InstanceLocation, "/")
		field = strings.ReplaceAll(field, "/", ".")
		errs.Add(field, err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, errs)
	}
}
