// Package config loads the run settings from an optional YAML file, REPLAY_
// environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wesleyorama2/replay/internal/failure"
	"github.com/wesleyorama2/replay/internal/status"
)

// EnvPrefix is the prefix of environment variables read into the settings.
const EnvPrefix = "REPLAY"

// DefaultFile is looked up in the working directory when no file is given.
const DefaultFile = "replay.yaml"

// Keys shared with the command line flags.
const (
	KeyEnv      = "env"
	KeyCatalog  = "catalog"
	KeyTimeout  = "timeout"
	KeyMaxTries = "maxTries"
	KeyMaxRPS   = "maxRps"
	KeyThink    = "think"
	KeyInsecure = "insecure"
)

// Settings are the run settings that do not describe the load itself.
type Settings struct {
	Environments map[string]Environment `mapstructure:"environments"`
	// Env selects an entry of Environments, case-insensitively. A value
	// starting with http:// or https:// is used as the base URL directly.
	Env     string            `mapstructure:"env"`
	Headers map[string]string `mapstructure:"headers"`
	Catalog string            `mapstructure:"catalog"`

	Timeout  time.Duration `mapstructure:"timeout"`
	MaxTries int           `mapstructure:"maxTries"`
	MaxRPS   float64       `mapstructure:"maxRps"`
	Think    time.Duration `mapstructure:"think"`
	// Insecure skips TLS certificate verification of the target.
	Insecure bool `mapstructure:"insecure"`

	Status StatusSettings `mapstructure:"status"`
	Login  LoginSettings  `mapstructure:"login"`
}

// Environment is a named target service.
type Environment struct {
	BaseURL string            `mapstructure:"baseUrl"`
	Headers map[string]string `mapstructure:"headers"`
}

// StatusSettings configure the pass/pending classification.
type StatusSettings struct {
	// Pass is an inclusive range such as "200-202".
	Pass        string `mapstructure:"pass"`
	NotModified int    `mapstructure:"notModified"`
	Pending     int    `mapstructure:"pending"`
}

// LoginSettings describe the login endpoint used by test cases that require
// authentication.
type LoginSettings struct {
	Method    string            `mapstructure:"method"`
	Resource  string            `mapstructure:"resource"`
	Body      string            `mapstructure:"body"`
	TokenPath string            `mapstructure:"tokenPath"`
	Headers   map[string]string `mapstructure:"headers"`
}

// SetDefaults registers the default of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyEnv, "default")
	v.SetDefault(KeyCatalog, "testcases.yaml")
	v.SetDefault(KeyTimeout, 30*time.Second)
	v.SetDefault(KeyMaxTries, 5)
	v.SetDefault(KeyMaxRPS, 0)
	v.SetDefault(KeyThink, 0)
	v.SetDefault(KeyInsecure, false)
	v.SetDefault("status.pass", "200-202")
	v.SetDefault("status.notModified", status.DefaultNotModified)
	v.SetDefault("status.pending", status.DefaultPending)
	v.SetDefault("login.method", "POST")
	v.SetDefault("login.tokenPath", "$.token")
}

// New returns a viper instance reading REPLAY_ variables and, when present,
// the config file. An explicit file that cannot be read is an error; the
// default file is optional.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file == "" {
		if _, err := os.Stat(DefaultFile); err != nil {
			return v, nil
		}
		file = DefaultFile
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return nil, &failure.ConfigurationError{Source: file, Err: err}
	}
	return v, nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, &failure.ConfigurationError{Source: source(v), Err: fmt.Errorf("error parsing settings: %w", err)}
	}
	if errs := Validate(&s); errs.HasErrors() {
		return nil, &failure.ConfigurationError{Source: source(v), Err: errs}
	}
	return &s, nil
}

func source(v *viper.Viper) string {
	if f := v.ConfigFileUsed(); f != "" {
		return f
	}
	return "settings"
}

// ErrNoEnvironment is returned when the selected environment is unknown.
var ErrNoEnvironment = errors.New("environment not found")

// Target returns the selected environment with the global headers merged
// under its own.
func (s *Settings) Target() (Environment, error) {
	if strings.HasPrefix(s.Env, "http://") || strings.HasPrefix(s.Env, "https://") {
		return Environment{BaseURL: s.Env, Headers: merge(s.Headers, nil)}, nil
	}
	env, ok := s.Environments[strings.ToLower(s.Env)]
	if !ok {
		return Environment{}, fmt.Errorf("%w: %s (known: %s)", ErrNoEnvironment, s.Env, strings.Join(s.EnvironmentNames(), ", "))
	}
	env.Headers = merge(s.Headers, env.Headers)
	return env, nil
}

// EnvironmentNames returns the configured environment names, sorted.
func (s *Settings) EnvironmentNames() []string {
	names := make([]string, 0, len(s.Environments))
	for n := range s.Environments {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Classifier builds the status classifier. Settings that passed Validate
// always yield one.
func (s *Settings) Classifier() (status.Classifier, error) {
	pass, err := status.ParseRange(s.Status.Pass)
	if err != nil {
		return status.Classifier{}, err
	}
	return status.Classifier{Pass: pass, NotModified: s.Status.NotModified, Pending: s.Status.Pending}, nil
}

func merge(base, over map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}
