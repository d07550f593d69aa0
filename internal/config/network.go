package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NetworkID is the closed set of networks a run may target.
type NetworkID string

const (
	NetworkBSC        NetworkID = "bsc"
	NetworkBSCTestnet NetworkID = "bsc_testnet"
	NetworkLocal      NetworkID = "local"
)

// knownNetworks maps every supported network to its chain id.
var knownNetworks = map[NetworkID]uint64{
	NetworkBSC:        56,
	NetworkBSCTestnet: 97,
	NetworkLocal:      31337,
}

var (
	// ErrUnknownNetwork is returned for any network identifier outside the
	// known set or absent from the loaded configuration.
	ErrUnknownNetwork = errors.New("unknown network")
	// ErrIncompleteProfile is returned when a network definition is missing
	// data every later stage relies on.
	ErrIncompleteProfile = errors.New("incomplete network profile")
)

// ParseNetworkID validates a raw network selector.
func ParseNetworkID(raw string) (NetworkID, error) {
	id := NetworkID(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownNetworks[id]; !ok {
		return "", fmt.Errorf("%w: %q (known: %s)", ErrUnknownNetwork, raw, strings.Join(KnownNetworks(), ", "))
	}
	return id, nil
}

// KnownNetworks returns the supported network identifiers, sorted.
func KnownNetworks() []string {
	ids := make([]string, 0, len(knownNetworks))
	for id := range knownNetworks {
		ids = append(ids, string(id))
	}
	slices.Sort(ids)
	return ids
}

// ChainID returns the chain id the network is expected to report.
func (id NetworkID) ChainID() uint64 {
	return knownNetworks[id]
}

// ExplorerConfig points at the source-verification service of a network.
type ExplorerConfig struct {
	APIURL    string
	APIKeyEnv string
}

// NetworkDefinition is the raw, unvalidated `network` block.
type NetworkDefinition struct {
	ID         string
	ChainID    uint64
	RPCURL     string
	ProxyAdmin string
	Explorer   ExplorerConfig
	Addresses  map[string]string
}

// NetworkProfile is a resolved, immutable view of one network. All
// accessors return copies.
type NetworkProfile struct {
	id         NetworkID
	chainID    uint64
	rpcURL     string
	explorer   ExplorerConfig
	proxyAdmin common.Address
	addresses  map[string]common.Address
}

func (p *NetworkProfile) ID() NetworkID            { return p.id }
func (p *NetworkProfile) ChainID() uint64          { return p.chainID }
func (p *NetworkProfile) RPCURL() string           { return p.rpcURL }
func (p *NetworkProfile) Explorer() ExplorerConfig { return p.explorer }

// ProxyAdmin returns the admin contract of pre-existing proxies, if the
// network declares one.
func (p *NetworkProfile) ProxyAdmin() (common.Address, bool) {
	return p.proxyAdmin, p.proxyAdmin != (common.Address{})
}

// Address looks up a pre-existing address by its configured key.
func (p *NetworkProfile) Address(name string) (common.Address, bool) {
	addr, ok := p.addresses[name]
	return addr, ok
}

// Names returns every address key in sorted order.
func (p *NetworkProfile) Names() []string {
	names := make([]string, 0, len(p.addresses))
	for name := range p.addresses {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Addresses returns a copy of the address table.
func (p *NetworkProfile) Addresses() map[string]common.Address {
	out := make(map[string]common.Address, len(p.addresses))
	for k, v := range p.addresses {
		out[k] = v
	}
	return out
}

// Missing returns the network references the profile cannot satisfy.
func (p *NetworkProfile) Missing(refs []Reference) []string {
	var missing []string
	for _, ref := range refs {
		if ref.Root != RootNetwork {
			continue
		}
		if _, ok := p.addresses[ref.Name]; !ok && !slices.Contains(missing, ref.Name) {
			missing = append(missing, ref.Name)
		}
	}
	return missing
}

// Resolver maps network identifiers to resolved profiles. It has no side
// effects and may be called any number of times.
type Resolver struct {
	networks map[string]*NetworkDefinition
}

// NewResolver creates a resolver over the networks of a loaded model.
func NewResolver(m *Model) *Resolver {
	return &Resolver{networks: m.Networks}
}

// Resolve returns the fully populated profile for the network.
func (r *Resolver) Resolve(raw string) (*NetworkProfile, error) {
	id, err := ParseNetworkID(raw)
	if err != nil {
		return nil, err
	}
	def, ok := r.networks[string(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no network block in the loaded configuration", ErrUnknownNetwork, id)
	}

	if def.ChainID != id.ChainID() {
		return nil, fmt.Errorf("%w: network %q declares chain_id %d, expected %d", ErrIncompleteProfile, id, def.ChainID, id.ChainID())
	}
	if def.RPCURL == "" {
		return nil, fmt.Errorf("%w: network %q has no rpc_url", ErrIncompleteProfile, id)
	}

	profile := &NetworkProfile{
		id:        id,
		chainID:   def.ChainID,
		rpcURL:    def.RPCURL,
		explorer:  def.Explorer,
		addresses: make(map[string]common.Address, len(def.Addresses)),
	}
	if def.ProxyAdmin != "" {
		addr, err := parseAddress(def.ProxyAdmin)
		if err != nil {
			return nil, fmt.Errorf("%w: network %q proxy_admin: %w", ErrIncompleteProfile, id, err)
		}
		profile.proxyAdmin = addr
	}
	for name, raw := range def.Addresses {
		addr, err := parseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: network %q address %q: %w", ErrIncompleteProfile, id, name, err)
		}
		profile.addresses[name] = addr
	}
	return profile, nil
}

func parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%q is not a hex address", raw)
	}
	addr := common.HexToAddress(raw)
	if addr == (common.Address{}) {
		return common.Address{}, errors.New("zero address")
	}
	return addr, nil
}
