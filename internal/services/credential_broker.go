package services

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	config "github.com/inference-gateway/adgate/config"
	domain "github.com/inference-gateway/adgate/internal/domain"
	logger "github.com/inference-gateway/adgate/internal/logger"
	metrics "github.com/inference-gateway/adgate/internal/metrics"
	zap "go.uber.org/zap"
)

// DefaultRefreshBuffer is how far ahead of expiry a cached credential is refetched
const DefaultRefreshBuffer = 5 * time.Minute

type credentialKey struct {
	network        string
	userID         string
	organizationID string
}

type cachedCredential struct {
	creds *domain.NetworkCredentials
	// refreshAt is the instant after which the entry must be refetched
	refreshAt time.Time
}

// CredentialBroker fetches short-lived network credentials just in time and
// keeps an expiry-aware in-memory cache. Credentials are never persisted.
type CredentialBroker struct {
	source        domain.CredentialSource
	networks      *NetworkTable
	refreshBuffer time.Duration
	staticTTL     time.Duration
	now           func() time.Time

	mu    sync.RWMutex
	cache map[credentialKey]cachedCredential
}

// NewCredentialBroker creates a broker over the credential system of record
func NewCredentialBroker(source domain.CredentialSource, networks *NetworkTable, cfg config.CredentialsConfig) *CredentialBroker {
	buffer := cfg.RefreshBuffer
	if buffer <= 0 {
		buffer = DefaultRefreshBuffer
	}
	return &CredentialBroker{
		source:        source,
		networks:      networks,
		refreshBuffer: buffer,
		staticTTL:     cfg.StaticTTL,
		now:           time.Now,
		cache:         make(map[credentialKey]cachedCredential),
	}
}

// WithClock replaces the broker's time source
func (b *CredentialBroker) WithClock(now func() time.Time) *CredentialBroker {
	b.now = now
	return b
}

// GetCredentials returns a credential for the network. It fails with
// *domain.CredentialsNotFoundError when no usable record exists (including
// collaborator transport failures) and *domain.CredentialsExpiredError when
// the record has already expired.
func (b *CredentialBroker) GetCredentials(ctx context.Context, userID, organizationID, network string) (*domain.NetworkCredentials, error) {
	network = b.canonicalNetwork(network)
	log := logger.L(ctx).With(zap.String("network", network), zap.String("user_id", userID))

	info, ok := b.networks.Lookup(network)
	if !ok {
		log.Info("credentials not found", zap.String("cause", "unknown network"))
		metrics.RecordCredentialFailure(network, "not_found")
		return nil, &domain.CredentialsNotFoundError{Network: network, DisplayName: network}
	}

	key := credentialKey{network: network, userID: userID, organizationID: organizationID}
	if creds, ok := b.cached(key); ok {
		metrics.RecordCredentialCacheHit()
		log.Debug("credentials served from cache",
			zap.Bool("has_access_token", creds.AccessToken != ""),
			zap.Bool("has_api_key", creds.APIKey != ""))
		return creds, nil
	}
	metrics.RecordCredentialCacheMiss()

	creds, err := b.fetch(ctx, info, userID, organizationID)
	if err != nil {
		b.Invalidate(network, userID, organizationID)
		if errors.Is(err, domain.ErrNotFound) {
			log.Info("credentials not found")
			metrics.RecordCredentialFailure(network, "not_found")
		} else {
			log.Warn("credential lookup failed", zap.Error(err))
			metrics.RecordCredentialFailure(network, "transport")
		}
		return nil, &domain.CredentialsNotFoundError{Network: network, DisplayName: info.DisplayName}
	}

	now := b.now()
	if creds.IsExpiredAt(now) {
		b.Invalidate(network, userID, organizationID)
		log.Info("credentials expired", zap.Time("expired_at", *creds.ExpiresAt))
		metrics.RecordCredentialFailure(network, "expired")
		return nil, &domain.CredentialsExpiredError{Network: network, DisplayName: info.DisplayName, ExpiredAt: *creds.ExpiresAt}
	}

	b.store(key, creds, now)

	log.Debug("credentials fetched",
		zap.Bool("has_access_token", creds.AccessToken != ""),
		zap.Bool("has_api_key", creds.APIKey != ""),
		zap.Bool("has_expiry", creds.ExpiresAt != nil))

	return copyCredentials(creds), nil
}

// GetCredentialsForTool resolves the network from a tool name and fetches its credential
func (b *CredentialBroker) GetCredentialsForTool(ctx context.Context, userID, organizationID, toolName string) (*domain.NetworkCredentials, error) {
	network, _ := b.networks.ExtractNetwork(toolName)
	return b.GetCredentials(ctx, userID, organizationID, network)
}

func (b *CredentialBroker) fetch(ctx context.Context, info NetworkInfo, userID, organizationID string) (*domain.NetworkCredentials, error) {
	provider := b.networks.ProviderFor(info.Network)

	switch info.CredentialType {
	case domain.CredentialAPIKey:
		res, err := b.source.GetAPIKeyCredentials(ctx, userID, organizationID, provider)
		if err != nil {
			return nil, err
		}
		if res == nil || res.APIKey == "" {
			return nil, domain.ErrNotFound
		}
		return &domain.NetworkCredentials{
			Network:   info.Network,
			APIKey:    res.APIKey,
			APISecret: res.Secret,
			Extra:     maps.Clone(res.Extra),
		}, nil
	default:
		res, err := b.source.GetOAuthToken(ctx, userID, organizationID, provider)
		if err != nil {
			return nil, err
		}
		if res == nil || res.AccessToken == "" {
			return nil, domain.ErrNotFound
		}
		expiresAt := res.ExpiresAt
		if expiresAt == nil {
			expiresAt = jwtExpiry(res.AccessToken)
		}
		return &domain.NetworkCredentials{
			Network:      info.Network,
			AccessToken:  res.AccessToken,
			RefreshToken: res.RefreshToken,
			ExpiresAt:    expiresAt,
		}, nil
	}
}

// jwtExpiry reads the exp claim of a JWT access token without verifying it.
// Opaque tokens yield nil.
func jwtExpiry(token string) *time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time
	return &t
}

func (b *CredentialBroker) cached(key credentialKey) (*domain.NetworkCredentials, bool) {
	b.mu.RLock()
	entry, ok := b.cache[key]
	b.mu.RUnlock()
	if !ok || !b.now().Before(entry.refreshAt) {
		return nil, false
	}
	return copyCredentials(entry.creds), true
}

// store caches a credential until refreshBuffer before its expiry. Credentials
// without an expiry are cached for staticTTL, or not at all when it is zero.
func (b *CredentialBroker) store(key credentialKey, creds *domain.NetworkCredentials, now time.Time) {
	var refreshAt time.Time
	switch {
	case creds.ExpiresAt != nil:
		refreshAt = creds.ExpiresAt.Add(-b.refreshBuffer)
	case b.staticTTL > 0:
		refreshAt = now.Add(b.staticTTL)
	default:
		return
	}
	if !now.Before(refreshAt) {
		return
	}

	b.mu.Lock()
	b.cache[key] = cachedCredential{creds: copyCredentials(creds), refreshAt: refreshAt}
	b.mu.Unlock()
}

// Invalidate drops the cached credential for one network and user
func (b *CredentialBroker) Invalidate(network, userID, organizationID string) {
	key := credentialKey{network: b.canonicalNetwork(network), userID: userID, organizationID: organizationID}
	b.mu.Lock()
	delete(b.cache, key)
	b.mu.Unlock()
}

// InvalidateUser drops every cached credential of a user, e.g. on disconnect
func (b *CredentialBroker) InvalidateUser(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for key := range b.cache {
		if key.userID == userID {
			delete(b.cache, key)
			removed++
		}
	}
	return removed
}

// InvalidateAll empties the cache
func (b *CredentialBroker) InvalidateAll() {
	b.mu.Lock()
	b.cache = make(map[credentialKey]cachedCredential)
	b.mu.Unlock()
}

// CacheSize returns the number of cached credentials
func (b *CredentialBroker) CacheSize() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.cache)
}

// canonicalNetwork maps provider ids (gam) to tool networks (admanager)
func (b *CredentialBroker) canonicalNetwork(network string) string {
	if _, ok := b.networks.Lookup(network); ok {
		return network
	}
	if n, ok := b.networks.NetworkForProvider(network); ok {
		return n
	}
	return network
}

func copyCredentials(c *domain.NetworkCredentials) *domain.NetworkCredentials {
	if c == nil {
		return nil
	}
	out := *c
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		out.ExpiresAt = &t
	}
	out.Extra = maps.Clone(c.Extra)
	return &out
}
