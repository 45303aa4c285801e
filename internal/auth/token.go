package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// TokenProvider obtains a bearer token for the object store.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// CredentialError is returned when a bearer token could not be obtained.
type CredentialError struct {
	// Source names the credential mechanism, e.g. the command that was run.
	Source string
	// Detail is the diagnostic text reported by the credential tool.
	Detail string
	Err    error
}

func (e *CredentialError) Error() string {
	msg := fmt.Sprintf("fetch access token from %s", e.Source)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

type providerSource struct {
	ctx      context.Context
	provider TokenProvider
}

// TokenSource adapts p to an oauth2.TokenSource. Each call to Token asks p
// again; wrap the result in oauth2.ReuseTokenSource if caching is wanted.
func TokenSource(ctx context.Context, p TokenProvider) oauth2.TokenSource {
	return &providerSource{ctx: ctx, provider: p}
}

func (s *providerSource) Token() (*oauth2.Token, error) {
	tok, err := s.provider.Token(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}

// StaticProvider always returns the same token.
type StaticProvider string

func (s StaticProvider) Token(context.Context) (string, error) {
	if s == "" {
		return "", &CredentialError{Source: "static token", Detail: "token is empty"}
	}
	return string(s), nil
}
