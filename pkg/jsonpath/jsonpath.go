// Package jsonpath evaluates a small JSONPath subset against response bodies.
package jsonpath

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Extract returns the value at path in body. A JSON null is returned as
// "null".
func Extract(body []byte, path string) (string, error) {
	if len(body) == 0 {
		return "", fmt.Errorf("empty JSON body")
	}
	if path == "" {
		return "", fmt.Errorf("empty JSONPath expression")
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("invalid JSON body")
	}

	result := gjson.GetBytes(body, ToGjson(path))
	if !result.Exists() {
		return "", fmt.Errorf("path not found: %s", path)
	}
	if result.Type == gjson.Null {
		return "null", nil
	}
	return result.String(), nil
}

// MismatchError lists every expectation a body failed.
type MismatchError struct {
	Failures []string
}

func (e *MismatchError) Error() string {
	return "expectation mismatch: " + strings.Join(e.Failures, "; ")
}

// Match checks that each path in expect resolves to the expected string
// value. A "*" expectation only requires the path to exist.
func Match(body []byte, expect map[string]string) error {
	if len(expect) == 0 {
		return nil
	}

	paths := make([]string, 0, len(expect))
	for p := range expect {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var failures []string
	for _, p := range paths {
		want := expect[p]
		got, err := Extract(body, p)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", p, err))
			continue
		}
		if want != "*" && got != want {
			failures = append(failures, fmt.Sprintf("%s: got %q, want %q", p, got, want))
		}
	}
	if len(failures) > 0 {
		return &MismatchError{Failures: failures}
	}
	return nil
}

// ToGjson converts a JSONPath expression ($.users[0].name) to gjson syntax
// (users.0.name). Paths without a leading '$' are assumed to be gjson
// already and are returned unchanged.
func ToGjson(path string) string {
	if !strings.HasPrefix(path, "$") {
		return path
	}
	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return "@this"
	}

	// $['name'] and $["name"]
	r := strings.NewReplacer(`['`, ".", `']`, "", `["`, ".", `"]`, "", "[", ".", "]", "")
	path = r.Replace(path)
	return strings.TrimPrefix(path, ".")
}
