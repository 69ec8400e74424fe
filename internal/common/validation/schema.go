package validation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ListEnvelopeSchema describes {field: [ {...}, ... ]}.
func ListEnvelopeSchema(field string) map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{field},
		"properties": map[string]interface{}{
			field: map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "object"},
			},
		},
	}
}

// ObjectEnvelopeSchema describes {field: {...}}.
func ObjectEnvelopeSchema(field string) map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{field},
		"properties": map[string]interface{}{
			field: map[string]interface{}{"type": "object"},
		},
	}
}

var schemaCache sync.Map // name -> *gojsonschema.Schema

// ValidateDocument checks body against the schema registered under name, compiling and caching
// it on first use.
func ValidateDocument(name string, schemaMap map[string]interface{}, body []byte) (*ValidationResult, error) {
	schema, err := compiled(name, schemaMap)
	if err != nil {
		return nil, err
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	return out, nil
}

func compiled(name string, schemaMap map[string]interface{}) (*gojsonschema.Schema, error) {
	if s, ok := schemaCache.Load(name); ok {
		return s.(*gojsonschema.Schema), nil
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	actual, _ := schemaCache.LoadOrStore(name, schema)
	return actual.(*gojsonschema.Schema), nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			return true
		}
	}
	return false
}

// OnlyFieldErrors reports whether every error concerns the named field, i.e. the document
// itself has the right shape.
func (vr *ValidationResult) OnlyFieldErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == "(root)" && err.Code == "required" && strings.Contains(err.Message, field) {
			continue
		}
		if err.Field != field && !strings.HasPrefix(err.Field, field+".") {
			return false
		}
	}
	return true
}
