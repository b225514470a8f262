package agent

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidateJSON compiles schemaJSON and validates payload against it. Used by
// llmagent implementations to reject an LLM's structured response before it
// is unmarshaled into a typed output and returned to a node runner — a
// schema-validation failure is treated as an ordinary agent-level error.
func ValidateJSON(schemaJSON, payload []byte) error {
	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return fmt.Errorf("agent: unmarshal schema: %w", err)
	}
	var payloadDoc any
	if err := json.Unmarshal(payload, &payloadDoc); err != nil {
		return fmt.Errorf("agent: unmarshal payload: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", schemaDoc); err != nil {
		return fmt.Errorf("agent: add schema resource: %w", err)
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("agent: compile schema: %w", err)
	}
	if err := schema.Validate(payloadDoc); err != nil {
		return fmt.Errorf("agent: schema validation failed: %w", err)
	}
	return nil
}
