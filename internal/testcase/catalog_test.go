package testcase

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/replay/internal/executor"
	"github.com/wesleyorama2/replay/internal/failure"
)

const sampleCatalog = `
testCases:
  - id: C01
    description: fetch an order
    steps:
      - method: get
        resource: /orders/{0}
        query:
          view: "{parity:summary|full}"
        expect:
          $.id: "{0}"
  - id: C02
    description: submit an order
    auth: true
    retryPending: false
    headers:
      X-Channel: web
    steps:
      - name: create
        method: POST
        resource: /orders
        body: '{"sku":"{1}","user":"{user}","flip":{parity}}'
        schema: '{"type":"object","required":["orderId"]}'
      - name: status
        method: GET
        resource: /orders/{1}/status
`

func TestParseCatalog(t *testing.T) {
	reg, err := ParseCatalog([]byte(sampleCatalog), "catalog.yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	c01, err := reg.Resolve("C01")
	require.NoError(t, err)
	assert.Equal(t, "fetch an order", c01.Description())
	assert.False(t, c01.RequiresAuth())
	assert.True(t, c01.RetryPending())

	c02, err := reg.Resolve("C02")
	require.NoError(t, err)
	assert.True(t, c02.RequiresAuth())
	assert.False(t, c02.RetryPending())

	ids := []string{}
	for _, tc := range reg.List() {
		ids = append(ids, tc.ID())
	}
	assert.Equal(t, []string{"C01", "C02"}, ids)
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	reg, err := ParseCatalog([]byte(sampleCatalog), "catalog.yml")
	require.NoError(t, err)

	_, err = reg.Resolve("Z99")
	assert.True(t, errors.Is(err, ErrUnknownTestCase))
}

func TestBuild_Placeholders(t *testing.T) {
	reg, err := ParseCatalog([]byte(sampleCatalog), "catalog.yaml")
	require.NoError(t, err)
	c01, _ := reg.Resolve("C01")
	c02, _ := reg.Resolve("C02")

	inv := &Invocation{TestCaseID: "C01", Params: []string{"O-7"}, Thread: "T02", Tag: "N"}
	subs, err := c01.Build(inv)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "GET", subs[0].Method)
	assert.Equal(t, "/orders/O-7", subs[0].Resource)
	assert.Equal(t, "summary", subs[0].Query.Get("view"))
	assert.Equal(t, "T02", subs[0].Thread)
	assert.Equal(t, "O-7", subs[0].Input)

	inv.Parity = true
	subs, err = c01.Build(inv)
	require.NoError(t, err)
	assert.Equal(t, "full", subs[0].Query.Get("view"))
	assert.True(t, subs[0].Parity)

	inv2 := &Invocation{TestCaseID: "C02", Params: []string{"alice:pw", "SKU-1"}, User: "alice", Token: "tok123"}
	subs, err = c02.Build(inv2)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, `{"sku":"SKU-1","user":"alice","flip":0}`, string(subs[0].Body))
	assert.Equal(t, "tok123", subs[0].Headers["Authorization"])
	assert.Equal(t, "web", subs[0].Headers["X-Channel"])
	assert.Equal(t, "/orders/SKU-1/status", subs[1].Resource)
	assert.Nil(t, subs[1].Body)
}

func TestExpand(t *testing.T) {
	inv := &Invocation{Params: []string{"a", "b"}, Token: "t", User: "u", Thread: "T01", Tag: "X"}
	tests := map[string]string{
		"{0}/{1}/{2}":     "a/b/",
		"{token}:{user}":  "t:u",
		"{thread}-{tag}":  "T01-X",
		"{parity}":        "0",
		"{parity:l|r}":    "l",
		"{unknown}":       "{unknown}",
		`{"k":"{0}"}`:     `{"k":"a"}`,
		"no placeholders": "no placeholders",
	}
	for in, want := range tests {
		assert.Equal(t, want, expand(in, inv), in)
	}
}

func TestAnalyze(t *testing.T) {
	reg, err := ParseCatalog([]byte(sampleCatalog), "catalog.yaml")
	require.NoError(t, err)
	c01, _ := reg.Resolve("C01")
	c02, _ := reg.Resolve("C02")

	// Expectation values are matched literally, not expanded.
	assert.Error(t, c01.Analyze(0, &executor.Result{Body: []byte(`{"id":"O-7"}`)}))
	assert.NoError(t, c02.Analyze(0, &executor.Result{Body: []byte(`{"orderId":"O-7"}`)}))
	assert.Error(t, c02.Analyze(0, &executor.Result{Body: []byte(`{"state":"x"}`)}))
	assert.NoError(t, c02.Analyze(1, &executor.Result{Body: []byte(`anything`)}))
	assert.NoError(t, c02.Analyze(5, nil))
}

func TestCatalog_Validate(t *testing.T) {
	cat := &Catalog{TestCases: []Definition{
		{ID: "A01", Steps: []StepDefinition{{Method: "GET", Resource: "/a"}}},
		{ID: "A01", Steps: []StepDefinition{{Method: "FETCH"}}},
		{ID: "bad id"},
	}}

	err := cat.Validate()
	var verrs *failure.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	// duplicate id, unsupported method, missing resource, bad id, no steps
	assert.Len(t, verrs.Errors, 5)

	assert.Error(t, (&Catalog{}).Validate())
}

func TestParseCatalog_InvalidSchema(t *testing.T) {
	data := `{"testCases":[{"id":"S01","steps":[{"method":"GET","resource":"/s","schema":"{\"type\":\"nope\"}"}]}]}`
	_, err := ParseCatalog([]byte(data), "catalog.json")
	assert.Error(t, err)
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o644))

	reg, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	_, err = LoadCatalog(filepath.Join(dir, "missing.yaml"))
	var cerr *failure.ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	reg, err := ParseCatalog([]byte(sampleCatalog), "catalog.yaml")
	require.NoError(t, err)
	c01, _ := reg.Resolve("C01")
	assert.Error(t, reg.Register(c01))
}
