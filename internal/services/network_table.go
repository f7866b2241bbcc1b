package services

import (
	"sort"
	"strings"

	domain "github.com/inference-gateway/adgate/internal/domain"
)

// NetworkInfo describes one ad network the gate knows about
type NetworkInfo struct {
	// Network is the identifier used in tool names and annotations
	Network string
	// Prefixes are the tool-name prefixes (without trailing underscore) that map to Network
	Prefixes []string
	// Provider is the identifier the credential system of record uses
	Provider       string
	CredentialType domain.CredentialType
	DisplayName    string
}

// DefaultNetworks is the built-in network table
var DefaultNetworks = []NetworkInfo{
	{Network: "admob", Prefixes: []string{"admob"}, Provider: "admob", CredentialType: domain.CredentialOAuth, DisplayName: "AdMob"},
	{Network: "admanager", Prefixes: []string{"admanager", "gam", "google_ad_manager"}, Provider: "gam", CredentialType: domain.CredentialOAuth, DisplayName: "Google Ad Manager"},
	{Network: "applovin", Prefixes: []string{"applovin", "applovin_max"}, Provider: "applovin", CredentialType: domain.CredentialAPIKey, DisplayName: "AppLovin"},
	{Network: "unity", Prefixes: []string{"unity", "unity_ads"}, Provider: "unity", CredentialType: domain.CredentialAPIKey, DisplayName: "Unity Ads"},
	{Network: "ironsource", Prefixes: []string{"ironsource", "levelplay"}, Provider: "ironsource", CredentialType: domain.CredentialAPIKey, DisplayName: "ironSource"},
	{Network: "mintegral", Prefixes: []string{"mintegral"}, Provider: "mintegral", CredentialType: domain.CredentialAPIKey, DisplayName: "Mintegral"},
	{Network: "liftoff", Prefixes: []string{"liftoff", "vungle"}, Provider: "liftoff", CredentialType: domain.CredentialAPIKey, DisplayName: "Liftoff"},
	{Network: "inmobi", Prefixes: []string{"inmobi"}, Provider: "inmobi", CredentialType: domain.CredentialAPIKey, DisplayName: "InMobi"},
	{Network: "pangle", Prefixes: []string{"pangle"}, Provider: "pangle", CredentialType: domain.CredentialAPIKey, DisplayName: "Pangle"},
	{Network: "dtexchange", Prefixes: []string{"dtexchange", "dt_exchange"}, Provider: "dtexchange", CredentialType: domain.CredentialAPIKey, DisplayName: "DT Exchange"},
	{Network: "meta", Prefixes: []string{"meta", "meta_audience_network"}, Provider: "meta", CredentialType: domain.CredentialAPIKey, DisplayName: "Meta Audience Network"},
	{Network: "chartboost", Prefixes: []string{"chartboost"}, Provider: "chartboost", CredentialType: domain.CredentialAPIKey, DisplayName: "Chartboost"},
	{Network: "moloco", Prefixes: []string{"moloco"}, Provider: "moloco", CredentialType: domain.CredentialAPIKey, DisplayName: "Moloco"},
}

type prefixEntry struct {
	prefix  string
	network string
}

// NetworkTable resolves tool names, network aliases and provider ids. It is
// immutable after construction and shared by the classifier, broker and
// visibility filter so all three extract networks identically.
type NetworkTable struct {
	networks   map[string]NetworkInfo
	byProvider map[string]string
	prefixes   []prefixEntry
}

// NewNetworkTable builds a table from the given network descriptions
func NewNetworkTable(networks []NetworkInfo) *NetworkTable {
	t := &NetworkTable{
		networks:   make(map[string]NetworkInfo, len(networks)),
		byProvider: make(map[string]string, len(networks)),
	}

	for _, n := range networks {
		t.networks[n.Network] = n
		t.byProvider[strings.ToLower(n.Provider)] = n.Network
		t.byProvider[strings.ToLower(n.Network)] = n.Network
		for _, p := range n.Prefixes {
			t.byProvider[strings.ToLower(p)] = n.Network
			t.prefixes = append(t.prefixes, prefixEntry{prefix: strings.ToLower(p) + "_", network: n.Network})
		}
	}

	sort.SliceStable(t.prefixes, func(i, j int) bool {
		return len(t.prefixes[i].prefix) > len(t.prefixes[j].prefix)
	})

	return t
}

// NewDefaultNetworkTable builds the table of built-in networks
func NewDefaultNetworkTable() *NetworkTable {
	return NewNetworkTable(DefaultNetworks)
}

// ExtractNetwork returns the network for a tool name by longest-prefix match.
// Unmatched names return domain.UnknownNetwork and false.
func (t *NetworkTable) ExtractNetwork(toolName string) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(toolName))
	for _, p := range t.prefixes {
		if strings.HasPrefix(name, p.prefix) && len(name) > len(p.prefix) {
			return p.network, true
		}
	}
	return domain.UnknownNetwork, false
}

// StripPrefix returns the part of the tool name after its network prefix
func (t *NetworkTable) StripPrefix(toolName string) string {
	name := strings.ToLower(strings.TrimSpace(toolName))
	for _, p := range t.prefixes {
		if strings.HasPrefix(name, p.prefix) && len(name) > len(p.prefix) {
			return name[len(p.prefix):]
		}
	}
	return name
}

// Lookup returns the description of a network
func (t *NetworkTable) Lookup(network string) (NetworkInfo, bool) {
	n, ok := t.networks[network]
	return n, ok
}

// ProviderFor maps a tool network to the provider id used by the credential store
func (t *NetworkTable) ProviderFor(network string) string {
	if n, ok := t.networks[network]; ok && n.Provider != "" {
		return n.Provider
	}
	return network
}

// NetworkForProvider maps a registry provider id back to a tool network.
// Unknown ids return false and are treated as unconnected.
func (t *NetworkTable) NetworkForProvider(provider string) (string, bool) {
	network, ok := t.byProvider[strings.ToLower(strings.TrimSpace(provider))]
	return network, ok
}

// DisplayName returns the human-readable network name
func (t *NetworkTable) DisplayName(network string) string {
	if n, ok := t.networks[network]; ok && n.DisplayName != "" {
		return n.DisplayName
	}
	return network
}

// CredentialType reports how the network issues credentials
func (t *NetworkTable) CredentialType(network string) (domain.CredentialType, bool) {
	n, ok := t.networks[network]
	if !ok {
		return "", false
	}
	return n.CredentialType, true
}

// Networks returns all known networks sorted by identifier
func (t *NetworkTable) Networks() []NetworkInfo {
	out := make([]NetworkInfo, 0, len(t.networks))
	for _, n := range t.networks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Network < out[j].Network })
	return out
}
