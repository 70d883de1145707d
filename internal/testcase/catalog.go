package testcase

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/replay/internal/executor"
	"github.com/wesleyorama2/replay/internal/failure"
	"github.com/wesleyorama2/replay/pkg/jsonpath"
	"github.com/wesleyorama2/replay/pkg/jsonschema"
)

// Catalog is the declarative list of test cases.
type Catalog struct {
	TestCases []Definition `yaml:"testCases" json:"testCases"`
}

// Definition declares one test case.
type Definition struct {
	ID          string `yaml:"id" json:"id"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Auth requires a login with the credential in the first parameter.
	Auth bool `yaml:"auth,omitempty" json:"auth,omitempty"`
	// RetryPending defaults to true.
	RetryPending *bool             `yaml:"retryPending,omitempty" json:"retryPending,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Steps        []StepDefinition  `yaml:"steps" json:"steps"`
}

// StepDefinition declares one request of a test case. String fields may use
// placeholders: {0}, {1}, ... for parameters, {token}, {user}, {thread},
// {tag}, {parity} (0 or 1) and {parity:a|b} (a on even, b on odd repeats).
type StepDefinition struct {
	Name     string            `yaml:"name,omitempty" json:"name,omitempty"`
	Method   string            `yaml:"method" json:"method"`
	Resource string            `yaml:"resource" json:"resource"`
	Query    map[string]string `yaml:"query,omitempty" json:"query,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body     string            `yaml:"body,omitempty" json:"body,omitempty"`
	// Expect maps JSONPath expressions to expected values ("*" = present).
	Expect map[string]string `yaml:"expect,omitempty" json:"expect,omitempty"`
	// Schema is an inline JSON Schema the response body must satisfy.
	Schema string `yaml:"schema,omitempty" json:"schema,omitempty"`
}

// LoadCatalog reads a catalog file (.yaml, .yml or .json) and builds a
// registry from it.
func LoadCatalog(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &failure.ConfigurationError{Source: path, Err: err}
	}
	reg, err := ParseCatalog(data, path)
	if err != nil {
		return nil, &failure.ConfigurationError{Source: path, Err: err}
	}
	return reg, nil
}

// ParseCatalog parses catalog data; the format follows the extension of
// path and defaults to YAML.
func ParseCatalog(data []byte, path string) (*Registry, error) {
	var cat Catalog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cat); err != nil {
			return nil, fmt.Errorf("failed to parse JSON catalog: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cat); err != nil {
			return nil, fmt.Errorf("failed to parse YAML catalog: %w", err)
		}
	}
	return cat.Registry()
}

// Validate reports every structural problem of the catalog.
func (c *Catalog) Validate() error {
	errs := &failure.ValidationErrors{}
	if len(c.TestCases) == 0 {
		errs.Add("testCases", "at least one test case is required")
	}
	seen := make(map[string]bool)
	for i, def := range c.TestCases {
		field := fmt.Sprintf("testCases[%d]", i)
		if def.ID == "" {
			errs.Add(field+".id", "id is required")
		} else if seen[def.ID] {
			errs.Addf(field+".id", "duplicate id %s", def.ID)
		}
		seen[def.ID] = true
		if strings.ContainsAny(def.ID, ", #") {
			errs.Addf(field+".id", "id %q must not contain commas, spaces or '#'", def.ID)
		}
		if len(def.Steps) == 0 {
			errs.Add(field+".steps", "at least one step is required")
		}
		for j, st := range def.Steps {
			sf := fmt.Sprintf("%s.steps[%d]", field, j)
			if st.Resource == "" {
				errs.Add(sf+".resource", "resource is required")
			}
			switch strings.ToUpper(st.Method) {
			case "", "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS":
			default:
				errs.Addf(sf+".method", "unsupported method %s", st.Method)
			}
		}
	}
	return errs.ErrOrNil()
}

// Registry validates the catalog, compiles its analyzers and returns a
// registry of the declared test cases.
func (c *Catalog) Registry() (*Registry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	reg := &Registry{cases: make(map[string]TestCase, len(c.TestCases))}
	for _, def := range c.TestCases {
		tc, err := newDeclared(def)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(tc); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// declared is a TestCase backed by a catalog Definition.
type declared struct {
	def     Definition
	schemas []*jsonschema.Schema
}

func newDeclared(def Definition) (*declared, error) {
	d := &declared{def: def, schemas: make([]*jsonschema.Schema, len(def.Steps))}
	for i, st := range def.Steps {
		if st.Schema == "" {
			continue
		}
		s, err := jsonschema.Compile(fmt.Sprintf("%s-%d.json", def.ID, i), st.Schema)
		if err != nil {
			return nil, fmt.Errorf("test case %s step %d: %w", def.ID, i, err)
		}
		d.schemas[i] = s
	}
	return d, nil
}

func (d *declared) ID() string          { return d.def.ID }
func (d *declared) Description() string { return d.def.Description }
func (d *declared) RequiresAuth() bool  { return d.def.Auth }

func (d *declared) RetryPending() bool {
	return d.def.RetryPending == nil || *d.def.RetryPending
}

func (d *declared) Build(inv *Invocation) ([]*executor.Submission, error) {
	subs := make([]*executor.Submission, 0, len(d.def.Steps))
	for _, st := range d.def.Steps {
		sub := &executor.Submission{
			Resource:   expand(st.Resource, inv),
			Method:     strings.ToUpper(st.Method),
			Headers:    make(map[string]string, len(d.def.Headers)+len(st.Headers)+1),
			TestCaseID: d.def.ID,
			Input:      inv.Input(),
			Tag:        inv.Tag,
			Thread:     inv.Thread,
			Parity:     inv.Parity,
		}
		if d.def.Auth && inv.Token != "" {
			sub.Headers["Authorization"] = inv.Token
		}
		for k, v := range d.def.Headers {
			sub.Headers[k] = expand(v, inv)
		}
		for k, v := range st.Headers {
			sub.Headers[k] = expand(v, inv)
		}
		if st.Body != "" {
			sub.Body = []byte(expand(st.Body, inv))
		}
		if len(st.Query) > 0 {
			sub.Query = make(url.Values, len(st.Query))
			for k, v := range st.Query {
				sub.Query.Set(k, expand(v, inv))
			}
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (d *declared) Analyze(step int, res *executor.Result) error {
	if step < 0 || step >= len(d.def.Steps) || res == nil {
		return nil
	}
	if err := jsonpath.Match(res.Body, d.def.Steps[step].Expect); err != nil {
		return err
	}
	if s := d.schemas[step]; s != nil {
		return s.Check(res.Body)
	}
	return nil
}

var placeholder = regexp.MustCompile(`\{([a-z0-9]+)(?::([^{}]*))?\}`)

// expand substitutes placeholders in s. Unknown placeholders are left as-is.
func expand(s string, inv *Invocation) string {
	if !strings.Contains(s, "{") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		sub := placeholder.FindStringSubmatch(m)
		name, arg := sub[1], sub[2]
		if i, err := strconv.Atoi(name); err == nil {
			return inv.Param(i)
		}
		switch name {
		case "token":
			return inv.Token
		case "user":
			return inv.User
		case "thread":
			return inv.Thread
		case "tag":
			return inv.Tag
		case "parity":
			if arg != "" {
				even, odd, _ := strings.Cut(arg, "|")
				if inv.Parity {
					return odd
				}
				return even
			}
			if inv.Parity {
				return "1"
			}
			return "0"
		}
		return m
	})
}
