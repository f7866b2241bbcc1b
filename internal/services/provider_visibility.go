package services

import (
	"context"
	"sort"
	"sync"

	domain "github.com/inference-gateway/adgate/internal/domain"
	logger "github.com/inference-gateway/adgate/internal/logger"
	sdk "github.com/inference-gateway/sdk"
	zap "go.uber.org/zap"
)

// NetworkSet is a set of connected network identifiers
type NetworkSet map[string]struct{}

// Has reports whether the network is in the set
func (s NetworkSet) Has(network string) bool {
	_, ok := s[network]
	return ok
}

// Sorted returns the networks in lexical order
func (s NetworkSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ProviderVisibilityFilter decides which tools a user may see based on the
// providers they have connected. Nothing is cached: every check queries the
// connection registry so a disconnect takes effect on the next call.
type ProviderVisibilityFilter struct {
	registry domain.ConnectionRegistry
	networks *NetworkTable
}

// NewProviderVisibilityFilter creates a visibility filter
func NewProviderVisibilityFilter(registry domain.ConnectionRegistry, networks *NetworkTable) *ProviderVisibilityFilter {
	return &ProviderVisibilityFilter{registry: registry, networks: networks}
}

type connectionSnapshot struct {
	network    string
	connection domain.ProviderConnection
}

// connections queries both registries concurrently. A failing source
// contributes nothing instead of failing the lookup.
func (f *ProviderVisibilityFilter) connections(ctx context.Context, userID, organizationID string) []connectionSnapshot {
	sources := []struct {
		name string
		list func(context.Context, string, string) ([]domain.ProviderConnection, error)
	}{
		{name: "oauth", list: f.registry.ListOAuthProviders},
		{name: "ad_sources", list: f.registry.ListAdSources},
	}

	results := make([][]domain.ProviderConnection, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conns, err := src.list(ctx, userID, organizationID)
			if err != nil {
				logger.L(ctx).Warn("connection registry unavailable",
					zap.String("source", src.name),
					zap.String("user_id", userID),
					zap.Error(err))
				return
			}
			results[i] = conns
		}()
	}
	wg.Wait()

	var out []connectionSnapshot
	for _, conns := range results {
		for _, c := range conns {
			network, ok := f.networks.NetworkForProvider(c.Provider)
			if !ok {
				continue
			}
			out = append(out, connectionSnapshot{network: network, connection: c})
		}
	}
	return out
}

// GetConnectedProviders returns the union of networks connected through
// either registry
func (f *ProviderVisibilityFilter) GetConnectedProviders(ctx context.Context, userID, organizationID string) NetworkSet {
	set := NetworkSet{}
	for _, c := range f.connections(ctx, userID, organizationID) {
		set[c.network] = struct{}{}
	}
	return set
}

// GetProviderStatuses returns one status per known network
func (f *ProviderVisibilityFilter) GetProviderStatuses(ctx context.Context, userID, organizationID string) []domain.ProviderStatus {
	byNetwork := make(map[string]domain.ProviderStatus)
	for _, c := range f.connections(ctx, userID, organizationID) {
		st := byNetwork[c.network]
		st.Connected = true
		st.HasValidCredentials = st.HasValidCredentials || c.connection.Valid
		if c.connection.LastVerified != nil && (st.LastVerified == nil || c.connection.LastVerified.After(*st.LastVerified)) {
			t := *c.connection.LastVerified
			st.LastVerified = &t
		}
		byNetwork[c.network] = st
	}

	infos := f.networks.Networks()
	out := make([]domain.ProviderStatus, 0, len(infos))
	for _, info := range infos {
		st := byNetwork[info.Network]
		st.Network = info.Network
		st.DisplayName = info.DisplayName
		out = append(out, st)
	}
	return out
}

// IsToolVisible reports whether a tool may be shown given a connected set.
// Tools without a network prefix are cross-network and always visible.
func (f *ProviderVisibilityFilter) IsToolVisible(toolName string, connected NetworkSet) bool {
	network, ok := f.networks.ExtractNetwork(toolName)
	if !ok {
		return true
	}
	return connected.Has(network)
}

// FilterToolNames keeps the names whose network is connected
func (f *ProviderVisibilityFilter) FilterToolNames(ctx context.Context, names []string, userID, organizationID string) []string {
	connected := f.GetConnectedProviders(ctx, userID, organizationID)
	out := make([]string, 0, len(names))
	for _, name := range names {
		if f.IsToolVisible(name, connected) {
			out = append(out, name)
		}
	}
	return out
}

// GetVisibleTools filters tool definitions down to those the user may call
func (f *ProviderVisibilityFilter) GetVisibleTools(ctx context.Context, tools []sdk.ChatCompletionTool, userID, organizationID string) []sdk.ChatCompletionTool {
	connected := f.GetConnectedProviders(ctx, userID, organizationID)
	out := make([]sdk.ChatCompletionTool, 0, len(tools))
	for _, tool := range tools {
		if f.IsToolVisible(tool.Function.Name, connected) {
			out = append(out, tool)
		}
	}

	logger.L(ctx).Debug("filtered tool list",
		zap.String("user_id", userID),
		zap.Strings("connected", connected.Sorted()),
		zap.Int("total", len(tools)),
		zap.Int("visible", len(out)))

	return out
}

// VerifyToolAccess re-checks visibility right before execution. It fails with
// *domain.ProviderNotConnectedError when the tool's network is not connected.
func (f *ProviderVisibilityFilter) VerifyToolAccess(ctx context.Context, toolName, userID, organizationID string) error {
	network, ok := f.networks.ExtractNetwork(toolName)
	if !ok {
		return nil
	}

	connected := f.GetConnectedProviders(ctx, userID, organizationID)
	if connected.Has(network) {
		return nil
	}

	logger.L(ctx).Info("tool hidden by visibility filter",
		zap.String("tool", toolName),
		zap.String("network", network),
		zap.String("user_id", userID))

	return &domain.ProviderNotConnectedError{
		Network:     network,
		DisplayName: f.networks.DisplayName(network),
		ToolName:    toolName,
	}
}
