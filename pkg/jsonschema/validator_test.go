package jsonschema

import (
	"errors"
	"strings"
	"testing"
)

const orderSchema = `{
	"type": "object",
	"properties": {
		"orderId": { "type": "string" },
		"qty": { "type": "integer", "minimum": 1 },
		"state": { "enum": ["ACCEPTED", "DONE"] }
	},
	"required": ["orderId", "state"]
}`

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		schema        string
		json          string
		expectedValid bool
		expectedError bool
	}{
		{
			name:          "Valid order",
			schema:        orderSchema,
			json:          `{"orderId": "O-1", "qty": 2, "state": "DONE"}`,
			expectedValid: true,
		},
		{
			name:          "Missing required property",
			schema:        orderSchema,
			json:          `{"qty": 2}`,
			expectedValid: false,
		},
		{
			name:          "Wrong enum value",
			schema:        orderSchema,
			json:          `{"orderId": "O-1", "state": "LOST"}`,
			expectedValid: false,
		},
		{
			name:          "Invalid schema",
			schema:        `{"type": "invalid-type"}`,
			json:          `{}`,
			expectedError: true,
		},
		{
			name:          "Invalid JSON",
			schema:        orderSchema,
			json:          `{"orderId":`,
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, err := Validate(tt.json, tt.schema)
			if tt.expectedError {
				if err == nil {
					t.Fatalf("expected error, got valid=%v", valid)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if valid != tt.expectedValid {
				t.Errorf("Validate() = %v, want %v", valid, tt.expectedValid)
			}
		})
	}
}

func TestSchema_Check(t *testing.T) {
	s, err := Compile("order.json", orderSchema)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if s.Name() != "order.json" {
		t.Errorf("Name() = %q", s.Name())
	}

	if err := s.Check([]byte(`{"orderId": "O-1", "state": "ACCEPTED"}`)); err != nil {
		t.Errorf("expected conforming body, got %v", err)
	}

	err = s.Check([]byte(`{"qty": 0, "state": "ACCEPTED"}`))
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T %v", err, err)
	}
	if len(verrs) == 0 {
		t.Fatal("expected at least one violation")
	}
	msg := verrs.Error()
	if !strings.Contains(msg, "validation error at") {
		t.Errorf("unexpected message %q", msg)
	}

	if err := s.Check([]byte("not json")); err == nil {
		t.Error("expected error for non-JSON body")
	}
}

func TestCompile_DefaultName(t *testing.T) {
	s, err := Compile("", `{"type": "string"}`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if s.Name() != "schema.json" {
		t.Errorf("Name() = %q, want schema.json", s.Name())
	}
}
