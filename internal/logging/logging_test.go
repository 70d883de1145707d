package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(Options{Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)
	defer closer.Close()

	log.WithField("thread", "T01").Debug("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "T01", entry["thread"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNew_TextDefaults(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(Options{Output: &buf})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())

	log.Debug("hidden")
	log.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, closer, err := New(Options{File: path})
	require.NoError(t, err)
	log.Warn("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestNew_Invalid(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)
	_, _, err = New(Options{Format: "xml"})
	assert.Error(t, err)
	_, _, err = New(Options{File: filepath.Join(t.TempDir(), "missing", "app.log")})
	assert.Error(t, err)
}
