// Package jsonschema checks response bodies against JSON Schema documents.
package jsonschema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationErrors represents a collection of validation errors
type ValidationErrors []error

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Schema is a compiled schema, safe for concurrent use.
type Schema struct {
	name     string
	compiled *jsonschema.Schema
}

// Compile parses schemaStr under the resource name.
func Compile(name, schemaStr string) (*Schema, error) {
	if name == "" {
		name = "schema.json"
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schemaStr)); err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", name, err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", name, err)
	}
	return &Schema{name: name, compiled: compiled}, nil
}

// Name returns the resource name the schema was compiled under.
func (s *Schema) Name() string {
	return s.name
}

// Check validates body. It returns nil when the body conforms, and a
// ValidationErrors listing every violation otherwise.
func (s *Schema) Check(body []byte) error {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return ValidationErrors{fmt.Errorf("invalid JSON: %w", err)}
	}
	if err := s.compiled.Validate(doc); err != nil {
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			if errs := extractValidationErrors(verr); len(errs) > 0 {
				return errs
			}
		}
		return ValidationErrors{err}
	}
	return nil
}

// Validate compiles schemaStr and checks jsonStr against it in one go.
func Validate(jsonStr, schemaStr string) (bool, error) {
	s, err := Compile("", schemaStr)
	if err != nil {
		return false, err
	}
	var doc interface{}
	if err := json.Unmarshal([]byte(jsonStr), &doc); err != nil {
		return false, fmt.Errorf("invalid JSON: %w", err)
	}
	return s.compiled.Validate(doc) == nil, nil
}

// extractValidationErrors flattens a jsonschema.ValidationError tree
func extractValidationErrors(err *jsonschema.ValidationError) ValidationErrors {
	var errors ValidationErrors

	if err.Message != "" {
		errors = append(errors, fmt.Errorf("validation error at %s: %s", err.InstanceLocation, err.Message))
	}
	for _, childErr := range err.Causes {
		errors = append(errors, extractValidationErrors(childErr)...)
	}

	return errors
}
