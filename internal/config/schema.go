package config

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v2"
)

const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["tokenPath", "wikiSpaceId", "sync"],
  "properties": {
    "tokenPath": {"type": "string", "minLength": 1},
    "wikiSpaceId": {"type": "string", "minLength": 1},
    "auth": {
      "type": "object",
      "properties": {
        "clientId": {"type": "string"},
        "clientSecret": {"type": "string"}
      },
      "additionalProperties": false
    },
    "sync": {
      "type": "object",
      "required": ["folderPath"],
      "properties": {
        "folderPath": {"type": "string", "minLength": 1},
        "pollIntervalSeconds": {
          "oneOf": [
            {"type": "number", "minimum": 0},
            {"type": "boolean", "const": false}
          ]
        },
        "initialSync": {"type": "boolean"},
        "eventEndpoint": {"type": "string"},
        "deleteRemoteOnLocalDelete": {"type": "boolean"}
      },
      "additionalProperties": false
    }
  },
  "additionalProperties": false
}`

var compiledSchema = func() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(configSchema))
	if err != nil {
		panic(fmt.Sprintf("config schema does not parse: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", doc); err != nil {
		panic(fmt.Sprintf("config schema rejected: %v", err))
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		panic(fmt.Sprintf("config schema does not compile: %v", err))
	}
	return schema
}()

// validateSchema checks the raw YAML document against the embedded schema so
// misconfigurations fail at startup with a pointed message.
func validateSchema(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if err := compiledSchema.Validate(normalizeYAML(raw)); err != nil {
		return err
	}
	return nil
}

// normalizeYAML converts the interface-keyed maps yaml.v2 produces into the
// string-keyed form the schema validator expects.
func normalizeYAML(value any) any {
	switch typed := value.(type) {
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[fmt.Sprintf("%v", key)] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeYAML(item)
		}
		return out
	case int:
		return float64(typed)
	default:
		return value
	}
}
