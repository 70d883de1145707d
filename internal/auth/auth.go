// Package auth obtains the session token a directive needs before its test
// case can run.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/wesleyorama2/replay/internal/executor"
	"github.com/wesleyorama2/replay/internal/failure"
	"github.com/wesleyorama2/replay/pkg/jsonpath"
)

// LoginTestCaseID labels login requests in the execution log.
const LoginTestCaseID = "LOGIN"

var tokenPattern = regexp.MustCompile(`^[\da-z]{40}$`)

// IsToken reports whether s already looks like an issued session token
// (40 lower-case hex-like characters).
func IsToken(s string) bool {
	return tokenPattern.MatchString(s)
}

// SplitCredential splits a "user:secret" parameter.
func SplitCredential(param string) (user, secret string) {
	user, secret, _ = strings.Cut(param, ":")
	return user, secret
}

// Authenticator exchanges a credential for a session token.
type Authenticator interface {
	Login(ctx context.Context, user, secret string) (string, error)
}

// Session is the identity an invocation runs as.
type Session struct {
	User  string
	Token string
}

// Resolve turns the credential parameter of a directive into a session. In
// token mode, or when the secret already is a token, no login happens.
// Failures are returned as *failure.AuthenticationError.
func Resolve(ctx context.Context, a Authenticator, testCaseID, credential string, tokenMode bool) (*Session, error) {
	user, secret := SplitCredential(credential)
	if tokenMode || IsToken(secret) {
		if secret == "" {
			return nil, &failure.AuthenticationError{TestCaseID: testCaseID, User: user, Err: errors.New("empty token")}
		}
		return &Session{User: user, Token: secret}, nil
	}
	if a == nil {
		return nil, &failure.AuthenticationError{TestCaseID: testCaseID, User: user, Err: errors.New("no login configured")}
	}
	token, err := a.Login(ctx, user, secret)
	if err == nil && token == "" {
		err = errors.New("login returned no token")
	}
	if err != nil {
		return nil, &failure.AuthenticationError{TestCaseID: testCaseID, User: user, Err: err}
	}
	return &Session{User: user, Token: token}, nil
}

// HTTPLogin posts the credential to a login endpoint and reads the token
// from the JSON response.
type HTTPLogin struct {
	Executor executor.Executor
	Method   string
	Resource string
	// Body may reference {user} and {secret}.
	Body string
	// TokenPath is the JSONPath of the token in the response.
	TokenPath string
	Headers   map[string]string
	// Thread is copied into the submission for the execution log.
	Thread string
}

// DefaultLoginBody is used when HTTPLogin.Body is empty.
const DefaultLoginBody = `{"username":"{user}","password":"{secret}"}`

// Login implements Authenticator.
func (h *HTTPLogin) Login(ctx context.Context, user, secret string) (string, error) {
	body := h.Body
	if body == "" {
		body = DefaultLoginBody
	}
	r := strings.NewReplacer("{user}", jsonEscape(user), "{secret}", jsonEscape(secret))
	method := h.Method
	if method == "" {
		method = http.MethodPost
	}

	res, err := h.Executor.Submit(ctx, &executor.Submission{
		Resource:   h.Resource,
		Method:     method,
		Headers:    h.Headers,
		Body:       []byte(r.Replace(body)),
		TestCaseID: LoginTestCaseID,
		Input:      user,
		Tag:        "N",
		Thread:     h.Thread,
	})
	if err != nil {
		return "", fmt.Errorf("login request: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", fmt.Errorf("login rejected with status %d", res.StatusCode)
	}
	path := h.TokenPath
	if path == "" {
		path = "$.token"
	}
	token, err := jsonpath.Extract(res.Body, path)
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return token, nil
}

// ForThread returns a copy of h that labels its requests with thread.
func (h *HTTPLogin) ForThread(thread string) Authenticator {
	c := *h
	c.Thread = thread
	return &c
}

func jsonEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return r.Replace(s)
}
