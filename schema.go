package unphp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonschema"
)

// ValidateJSON checks converted output against a JSON Schema. Useful when
// the serialized records are expected to have a known shape and a silent
// mis-decode would be worse than an error.
func ValidateJSON(jsonText string, schemaJSON []byte) error {
	compiler := jsonschema.NewCompiler()
	validator, err := compiler.Compile(schemaJSON)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	var obj any
	if err := json.Unmarshal([]byte(jsonText), &obj); err != nil {
		return fmt.Errorf("failed to parse output for validation: %w", err)
	}

	result := validator.Validate(obj)
	if !result.IsValid() {
		var errMsgs []string
		for field, validationErr := range result.Errors {
			errMsgs = append(errMsgs, fmt.Sprintf("%s: %s", field, validationErr.Message))
		}
		return fmt.Errorf("validation failed: %s", strings.Join(errMsgs, "; "))
	}

	return nil
}
