package config

import (
	"net/url"
	"strings"

	"github.com/wesleyorama2/replay/internal/failure"
	"github.com/wesleyorama2/replay/internal/status"
)

var methods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// Validate checks the settings and returns every problem found.
func Validate(s *Settings) *failure.ValidationErrors {
	errs := &failure.ValidationErrors{}

	for name, env := range s.Environments {
		if env.BaseURL == "" {
			errs.Add("environments."+name+".baseUrl", "baseUrl is required")
			continue
		}
		if u, err := url.Parse(env.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs.Addf("environments."+name+".baseUrl", "invalid URL: %s", env.BaseURL)
		}
	}

	if s.Timeout < 0 {
		errs.Addf("timeout", "must not be negative, got %v", s.Timeout)
	}
	if s.MaxTries < 1 {
		errs.Addf("maxTries", "must be at least 1, got %d", s.MaxTries)
	}
	if s.MaxRPS < 0 {
		errs.Addf("maxRps", "must not be negative, got %v", s.MaxRPS)
	}
	if s.Think < 0 {
		errs.Addf("think", "must not be negative, got %v", s.Think)
	}

	if _, err := status.ParseRange(s.Status.Pass); err != nil {
		errs.Add("status.pass", err.Error())
	}
	if s.Status.Pending < 0 {
		errs.Addf("status.pending", "invalid status code: %d", s.Status.Pending)
	}
	if s.Status.NotModified < 0 {
		errs.Addf("status.notModified", "invalid status code: %d", s.Status.NotModified)
	}

	if m := s.Login.Method; m != "" && !methods[strings.ToUpper(m)] {
		errs.Addf("login.method", "invalid method: %s", m)
	}

	return errs
}
