package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/replay/internal/failure"
	"github.com/wesleyorama2/replay/internal/status"
)

const sampleYAML = `
env: staging
headers:
  X-Client: replay
environments:
  staging:
    baseUrl: https://staging.example.com/api
    headers:
      X-Client: staging-replay
  prod:
    baseUrl: https://api.example.com
timeout: 5s
maxTries: 15
status:
  pass: 200-204
login:
  resource: /session
  tokenPath: $.data.token
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_File(t *testing.T) {
	v, err := New(writeFile(t, "replay.yaml", sampleYAML))
	require.NoError(t, err)
	s, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, s.Timeout)
	assert.Equal(t, 15, s.MaxTries)
	assert.Equal(t, "/session", s.Login.Resource)
	assert.Equal(t, "$.data.token", s.Login.TokenPath)
	assert.Equal(t, "POST", s.Login.Method)
	assert.Equal(t, []string{"prod", "staging"}, s.EnvironmentNames())

	env, err := s.Target()
	require.NoError(t, err)
	assert.Equal(t, "https://staging.example.com/api", env.BaseURL)
	assert.Equal(t, "staging-replay", env.Headers["x-client"])

	c, err := s.Classifier()
	require.NoError(t, err)
	assert.Equal(t, status.Range{Min: 200, Max: 204}, c.Pass)
	assert.Equal(t, status.DefaultPending, c.Pending)
	assert.Equal(t, status.DefaultNotModified, c.NotModified)
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	v, err := New("")
	require.NoError(t, err)
	s, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, s.Timeout)
	assert.Equal(t, 5, s.MaxTries)
	assert.Equal(t, "testcases.yaml", s.Catalog)
	assert.False(t, s.Insecure)
	c, err := s.Classifier()
	require.NoError(t, err)
	assert.Equal(t, status.DefaultClassifier(), c)

	_, err = s.Target()
	assert.ErrorIs(t, err, ErrNoEnvironment)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("REPLAY_MAXTRIES", "9")
	t.Setenv("REPLAY_ENV", "https://direct.example.com")
	t.Setenv("REPLAY_INSECURE", "true")

	v, err := New(writeFile(t, "replay.yaml", sampleYAML))
	require.NoError(t, err)
	s, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 9, s.MaxTries)
	assert.True(t, s.Insecure)
	env, err := s.Target()
	require.NoError(t, err)
	assert.Equal(t, "https://direct.example.com", env.BaseURL)
	assert.Equal(t, "replay", env.Headers["x-client"])
}

func TestNew_MissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope.yaml"))
	var cerr *failure.ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}

func TestValidate(t *testing.T) {
	s := &Settings{
		Environments: map[string]Environment{
			"empty": {},
			"bad":   {BaseURL: "not a url"},
		},
		Timeout:  -time.Second,
		MaxTries: 0,
		MaxRPS:   -1,
		Status:   StatusSettings{Pass: "300-200"},
		Login:    LoginSettings{Method: "FETCH"},
	}
	errs := Validate(s)
	assert.Len(t, errs.Errors, 7)

	v, err := New(writeFile(t, "bad.yaml", "maxTries: 0\n"))
	require.NoError(t, err)
	_, err = Load(v)
	var cerr *failure.ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Contains(t, err.Error(), "maxTries")
}
