package jsonpath

import (
	"errors"
	"testing"
)

const account = `{
	"id": "ACC-1",
	"balance": 30,
	"owner": {"name": "Jane", "city": "Anytown"},
	"cards": [
		{"type": "debit", "last4": "1234"},
		{"type": "credit", "last4": "5678"}
	],
	"active": true,
	"limits": [10, 20, 30],
	"note": null
}`

func TestExtract(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		expected      string
		expectedError bool
	}{
		{name: "Simple property", path: "$.id", expected: "ACC-1"},
		{name: "Numeric property", path: "$.balance", expected: "30"},
		{name: "Boolean property", path: "$.active", expected: "true"},
		{name: "Nested property", path: "$.owner.city", expected: "Anytown"},
		{name: "Array element", path: "$.limits[1]", expected: "20"},
		{name: "Object in array", path: "$.cards[1].last4", expected: "5678"},
		{name: "Bracket notation", path: "$['owner']['name']", expected: "Jane"},
		{name: "Null value", path: "$.note", expected: "null"},
		{name: "gjson passthrough", path: "cards.#", expected: "2"},
		{name: "Missing path", path: "$.missing", expectedError: true},
		{name: "Empty path", path: "", expectedError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract([]byte(account), tt.path)
			if tt.expectedError {
				if err == nil {
					t.Fatalf("Extract(%q) expected error, got %q", tt.path, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Extract(%q) unexpected error: %v", tt.path, err)
			}
			if got != tt.expected {
				t.Errorf("Extract(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestExtract_InvalidBody(t *testing.T) {
	if _, err := Extract(nil, "$.id"); err == nil {
		t.Error("expected error for empty body")
	}
	if _, err := Extract([]byte("<html>"), "$.id"); err == nil {
		t.Error("expected error for non-JSON body")
	}
}

func TestMatch(t *testing.T) {
	body := []byte(account)

	if err := Match(body, nil); err != nil {
		t.Errorf("no expectations should match, got %v", err)
	}
	if err := Match(body, map[string]string{"$.id": "ACC-1", "$.cards": "*"}); err != nil {
		t.Errorf("expected match, got %v", err)
	}

	err := Match(body, map[string]string{"$.id": "ACC-2", "$.gone": "*", "$.active": "true"})
	var mm *MismatchError
	if !errors.As(err, &mm) {
		t.Fatalf("expected *MismatchError, got %v", err)
	}
	if len(mm.Failures) != 2 {
		t.Errorf("expected 2 failures, got %d: %v", len(mm.Failures), mm.Failures)
	}
}

func TestToGjson(t *testing.T) {
	tests := map[string]string{
		"$":                  "@this",
		"$.a.b":              "a.b",
		"$[0].name":          "0.name",
		"$.items[2].id":      "items.2.id",
		`$["key"].v`:         "key.v",
		"already.gjson.path": "already.gjson.path",
	}
	for in, want := range tests {
		if got := ToGjson(in); got != want {
			t.Errorf("ToGjson(%q) = %q, want %q", in, got, want)
		}
	}
}
