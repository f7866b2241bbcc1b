package domain

import (
	"time"

	oauth2 "golang.org/x/oauth2"
)

// CredentialType partitions networks by how their credentials are issued
type CredentialType string

const (
	CredentialOAuth  CredentialType = "oauth"
	CredentialAPIKey CredentialType = "api_key"
)

// NetworkCredentials is the unified credential shape returned by the broker.
// Exactly one of AccessToken or APIKey is populated.
type NetworkCredentials struct {
	Network      string         `json:"network"`
	AccessToken  string         `json:"access_token,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	APIKey       string         `json:"api_key,omitempty"`
	APISecret    string         `json:"api_secret,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// IsExpired is true iff ExpiresAt is set and now is at or past it
func (c *NetworkCredentials) IsExpired() bool {
	return c.IsExpiredAt(time.Now())
}

// IsExpiredAt evaluates expiry against a supplied clock reading
func (c *NetworkCredentials) IsExpiredAt(now time.Time) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return !now.Before(*c.ExpiresAt)
}

// Type reports which credential kind is populated
func (c *NetworkCredentials) Type() CredentialType {
	if c != nil && c.APIKey != "" {
		return CredentialAPIKey
	}
	return CredentialOAuth
}

// OAuth2Token converts an access-token credential to an oauth2 token.
// It returns nil for API-key credentials.
func (c *NetworkCredentials) OAuth2Token() *oauth2.Token {
	if c == nil || c.AccessToken == "" {
		return nil
	}
	tok := &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
	}
	if c.ExpiresAt != nil {
		tok.Expiry = *c.ExpiresAt
	}
	return tok
}

// TokenSource returns a static oauth2 token source for downstream HTTP clients
func (c *NetworkCredentials) TokenSource() oauth2.TokenSource {
	tok := c.OAuth2Token()
	if tok == nil {
		return nil
	}
	return oauth2.StaticTokenSource(tok)
}

// OAuthToken is what the credential system of record returns for OAuth networks
type OAuthToken struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// APIKeyCredentials is what the credential system of record returns for API-key networks
type APIKeyCredentials struct {
	APIKey string         `json:"api_key"`
	Secret string         `json:"secret,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// ProviderConnection is one connected provider as reported by a connection registry
type ProviderConnection struct {
	Provider     string     `json:"provider"`
	Valid        bool       `json:"valid"`
	LastVerified *time.Time `json:"last_verified,omitempty"`
}

// ProviderStatus is the per-network connection view, recomputed on demand
type ProviderStatus struct {
	Network             string     `json:"network"`
	DisplayName         string     `json:"display_name"`
	Connected           bool       `json:"connected"`
	HasValidCredentials bool       `json:"has_valid_credentials"`
	LastVerified        *time.Time `json:"last_verified,omitempty"`
}
