package auth

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	storage "google.golang.org/api/storage/v1"
)

// Scope requested for every Google credential.
const Scope = storage.DevstorageReadWriteScope

// GoogleProvider takes tokens from an oauth2 token source backed by Google
// credentials. Unlike CommandProvider it keeps the token until it expires.
type GoogleProvider struct {
	source oauth2.TokenSource
	name   string
}

// NewADCProvider uses Application Default Credentials.
func NewADCProvider(ctx context.Context) (*GoogleProvider, error) {
	creds, err := google.FindDefaultCredentials(ctx, Scope)
	if err != nil {
		return nil, &CredentialError{Source: "application default credentials", Err: err}
	}
	return NewOAuth2Provider("application default credentials", creds.TokenSource), nil
}

// NewServiceAccountProvider reads a service account JSON key from path.
func NewServiceAccountProvider(ctx context.Context, path string) (*GoogleProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CredentialError{Source: "service account key", Err: err}
	}
	return NewServiceAccountProviderFromJSON(ctx, data)
}

// NewServiceAccountProviderFromJSON builds a provider from the contents of a
// service account key.
func NewServiceAccountProviderFromJSON(ctx context.Context, credentialsJSON []byte) (*GoogleProvider, error) {
	config, err := google.JWTConfigFromJSON(credentialsJSON, Scope)
	if err != nil {
		return nil, &CredentialError{
			Source: "service account key",
			Err:    fmt.Errorf("unable to parse service account key: %w", err),
		}
	}
	return NewOAuth2Provider("service account "+config.Email, config.TokenSource(ctx)), nil
}

// NewOAuth2Provider wraps src, reusing each token until it expires. Every
// Google credential mode is built on it.
func NewOAuth2Provider(name string, src oauth2.TokenSource) *GoogleProvider {
	return &GoogleProvider{source: oauth2.ReuseTokenSource(nil, src), name: name}
}

func (p *GoogleProvider) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &CredentialError{Source: p.name, Err: err}
	}
	tok, err := p.source.Token()
	if err != nil {
		return "", &CredentialError{Source: p.name, Err: err}
	}
	if tok.AccessToken == "" {
		return "", &CredentialError{Source: p.name, Detail: "empty access token"}
	}
	return tok.AccessToken, nil
}
