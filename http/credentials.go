package http

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// TokenSource supplies the bearer credential for a request. Implementations
// are consulted once per request, so a credential refreshed elsewhere is
// picked up by an already running poller.
type TokenSource interface {
	// Token returns the current access token, or "" when there is none.
	Token() (string, error)
}

// StaticToken is a fixed token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token() (string, error) { return string(s), nil }

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() (string, error)

// Token implements TokenSource.
func (f TokenFunc) Token() (string, error) { return f() }

// FileTokenSource reads the token from a file on every call.
// A missing file means "not logged in" and yields an empty token.
type FileTokenSource struct {
	Path string
}

// Token implements TokenSource.
func (s FileTokenSource) Token() (string, error) {
	if s.Path == "" {
		return "", nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read token file %s: %w", s.Path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ChainTokens returns the first non-empty token from the given sources.
// It lets an environment-provided token take precedence over the token file.
func ChainTokens(sources ...TokenSource) TokenSource {
	return TokenFunc(func() (string, error) {
		for _, src := range sources {
			if src == nil {
				continue
			}
			token, err := src.Token()
			if err != nil {
				return "", err
			}
			if token != "" {
				return token, nil
			}
		}
		return "", nil
	})
}
