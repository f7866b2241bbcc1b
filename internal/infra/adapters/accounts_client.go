package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	config "github.com/inference-gateway/adgate/config"
	domain "github.com/inference-gateway/adgate/internal/domain"
	services "github.com/inference-gateway/adgate/internal/services"
)

// ServiceKeyHeader authenticates this service to the accounts collaborator
const ServiceKeyHeader = "X-Service-Key"

// HTTPDoer is satisfied by *http.Client and services.RetryableHTTPClient
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// AccountsClient talks to the accounts service, the system of record for
// connected providers and their credentials. It implements
// domain.CredentialSource and domain.ConnectionRegistry.
type AccountsClient struct {
	baseURL    string
	serviceKey string
	client     HTTPDoer
}

var (
	_ domain.CredentialSource   = (*AccountsClient)(nil)
	_ domain.ConnectionRegistry = (*AccountsClient)(nil)
)

// NewAccountsClient creates a client using the retryable HTTP client
func NewAccountsClient(cfg config.AccountsConfig) *AccountsClient {
	return NewAccountsClientWithDoer(cfg.BaseURL, cfg.ServiceKey, services.NewRetryableHTTPClient(cfg.Timeout, cfg.Retry))
}

// NewAccountsClientWithDoer creates a client over an arbitrary transport
func NewAccountsClientWithDoer(baseURL, serviceKey string, doer HTTPDoer) *AccountsClient {
	return &AccountsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		client:     doer,
	}
}

type oauthTokenResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	ExpiresAt    json.RawMessage `json:"expires_at,omitempty"`
}

// GetOAuthToken fetches the current access token for an OAuth provider
func (c *AccountsClient) GetOAuthToken(ctx context.Context, userID, organizationID, provider string) (*domain.OAuthToken, error) {
	path := fmt.Sprintf("/v1/users/%s/oauth/%s/token", url.PathEscape(userID), url.PathEscape(provider))

	var resp oauthTokenResponse
	if err := c.get(ctx, path, organizationID, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("oauth token for %s: %w", provider, domain.ErrNotFound)
	}

	expiresAt, err := parseTimestamp(resp.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("invalid expires_at in oauth token response: %w", err)
	}

	return &domain.OAuthToken{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

type adSourceCredentialsResponse struct {
	Credentials map[string]any `json:"credentials"`
}

// GetAPIKeyCredentials fetches the key/secret pair stored for an ad source
func (c *AccountsClient) GetAPIKeyCredentials(ctx context.Context, userID, organizationID, adSource string) (*domain.APIKeyCredentials, error) {
	path := fmt.Sprintf("/v1/users/%s/ad-sources/%s/credentials", url.PathEscape(userID), url.PathEscape(adSource))

	var resp adSourceCredentialsResponse
	if err := c.get(ctx, path, organizationID, &resp); err != nil {
		return nil, err
	}

	creds := &domain.APIKeyCredentials{Extra: map[string]any{}}
	for k, v := range resp.Credentials {
		switch k {
		case "api_key":
			creds.APIKey, _ = v.(string)
		case "secret", "api_secret":
			creds.Secret, _ = v.(string)
		default:
			creds.Extra[k] = v
		}
	}
	if creds.APIKey == "" {
		return nil, fmt.Errorf("api key for %s: %w", adSource, domain.ErrNotFound)
	}
	if len(creds.Extra) == 0 {
		creds.Extra = nil
	}
	return creds, nil
}

type providerEntry struct {
	Provider     string          `json:"provider"`
	AdSource     string          `json:"ad_source"`
	Name         string          `json:"name"`
	Valid        *bool           `json:"valid"`
	LastVerified json.RawMessage `json:"last_verified"`
}

// UnmarshalJSON accepts either a bare provider id or an object
func (p *providerEntry) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		p.Provider = id
		return nil
	}
	type alias providerEntry
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = providerEntry(a)
	return nil
}

func (p providerEntry) toConnection() (domain.ProviderConnection, error) {
	id := p.Provider
	if id == "" {
		id = p.AdSource
	}
	if id == "" {
		id = p.Name
	}

	valid := true
	if p.Valid != nil {
		valid = *p.Valid
	}

	verified, err := parseTimestamp(p.LastVerified)
	if err != nil {
		return domain.ProviderConnection{}, err
	}

	return domain.ProviderConnection{Provider: id, Valid: valid, LastVerified: verified}, nil
}

// ListOAuthProviders lists the OAuth providers the user has connected
func (c *AccountsClient) ListOAuthProviders(ctx context.Context, userID, organizationID string) ([]domain.ProviderConnection, error) {
	var resp struct {
		Providers []providerEntry `json:"providers"`
	}
	path := fmt.Sprintf("/v1/users/%s/oauth/providers", url.PathEscape(userID))
	if err := c.get(ctx, path, organizationID, &resp); err != nil {
		return nil, err
	}
	return toConnections(resp.Providers)
}

// ListAdSources lists the API-key ad sources the user has connected
func (c *AccountsClient) ListAdSources(ctx context.Context, userID, organizationID string) ([]domain.ProviderConnection, error) {
	var resp struct {
		AdSources []providerEntry `json:"ad_sources"`
	}
	path := fmt.Sprintf("/v1/users/%s/ad-sources", url.PathEscape(userID))
	if err := c.get(ctx, path, organizationID, &resp); err != nil {
		return nil, err
	}
	return toConnections(resp.AdSources)
}

func toConnections(entries []providerEntry) ([]domain.ProviderConnection, error) {
	out := make([]domain.ProviderConnection, 0, len(entries))
	for _, e := range entries {
		conn, err := e.toConnection()
		if err != nil {
			return nil, fmt.Errorf("invalid provider entry: %w", err)
		}
		if conn.Provider == "" {
			continue
		}
		out = append(out, conn)
	}
	return out, nil
}

func (c *AccountsClient) get(ctx context.Context, path, organizationID string, out any) error {
	endpoint := c.baseURL + path
	if organizationID != "" {
		endpoint += "?" + url.Values{"organization_id": {organizationID}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build accounts request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.serviceKey != "" {
		req.Header.Set(ServiceKeyHeader, c.serviceKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("accounts request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("accounts service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode accounts response: %w", err)
	}
	return nil
}

// parseTimestamp accepts RFC 3339 strings, unix seconds, or null
func parseTimestamp(raw json.RawMessage) (*time.Time, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" || s == `""` {
		return nil, nil
	}

	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, str)
		if err != nil {
			return nil, err
		}
		return &t, nil
	}

	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("unsupported timestamp %s", s)
	}
	t := time.Unix(int64(secs), 0).UTC()
	return &t, nil
}
