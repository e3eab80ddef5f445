package validation

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// JSONSchema describes a tool's argument object. It marshals to the JSON
// Schema subset accepted by chat completion function definitions.
type JSONSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties"`
}

type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
	MinLength   *int     `json:"minLength,omitempty"`
	MaxLength   *int     `json:"maxLength,omitempty"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ToMap returns the schema as a generic map, the form function definitions take.
func (s JSONSchema) ToMap() map[string]interface{} {
	raw, _ := json.Marshal(s)
	var m map[string]interface{}
	_ = json.Unmarshal(raw, &m)
	return m
}

// ValidateArguments checks a raw JSON argument document against schema.
// A document that is not valid JSON yields a single INVALID_JSON error.
func ValidateArguments(schema JSONSchema, args []byte) *ValidationResult {
	if len(strings.TrimSpace(string(args))) == 0 {
		args = []byte("{}")
	}
	if !json.Valid(args) {
		return &ValidationResult{
			Errors: []ValidationError{{Field: "(root)", Message: "arguments are not valid JSON", Code: "INVALID_JSON"}},
		}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema.ToMap())
	documentLoader := gojsonschema.NewBytesLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &ValidationResult{
			Errors: []ValidationError{{Field: "(root)", Message: err.Error(), Code: "SCHEMA_ERROR"}},
		}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return &ValidationResult{Valid: result.Valid(), Errors: errs}
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// ValidateURL reports whether raw is an absolute http or https URL.
func ValidateURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
