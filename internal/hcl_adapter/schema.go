package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot is a struct used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Settings    []*settingsBlock   `hcl:"settings,block"`
	Networks    []*networkBlock    `hcl:"network,block"`
	Constants   []*constantsBlock  `hcl:"constants,block"`
	Components  []*componentBlock  `hcl:"component,block"`
	Allocations []*allocationBlock `hcl:"allocation,block"`
	Wires       []*wireBlock       `hcl:"wire,block"`
	Upgrades    []*upgradeBlock    `hcl:"upgrade,block"`
	Checks      []*checkBlock      `hcl:"check,block"`
	Remain      hcl.Body           `hcl:",remain"`
}

type settingsBlock struct {
	HeldAuthorities []string `hcl:"held_authorities,optional"`
}

type networkBlock struct {
	Name       string            `hcl:"name,label"`
	ChainID    uint64            `hcl:"chain_id"`
	RPCURL     string            `hcl:"rpc_url"`
	ProxyAdmin string            `hcl:"proxy_admin,optional"`
	Explorer   *explorerBlock    `hcl:"explorer,block"`
	Addresses  map[string]string `hcl:"addresses,optional"`
}

type explorerBlock struct {
	APIURL    string `hcl:"api_url"`
	APIKeyEnv string `hcl:"api_key_env,optional"`
}

// constantsBlock holds free-form literal attributes.
type constantsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type componentBlock struct {
	Name        string         `hcl:"name,label"`
	Contract    string         `hcl:"contract"`
	Role        string         `hcl:"role"`
	Initializer string         `hcl:"initializer,optional"`
	Args        hcl.Expression `hcl:"args,optional"`
	UnsafeAllow []string       `hcl:"unsafe_allow,optional"`
}

type allocationBlock struct {
	Vault         hcl.Expression   `hcl:"vault"`
	Method        string           `hcl:"method,optional"`
	MaxWeight     *uint64          `hcl:"max_weight,optional"`
	MaxStrategies hcl.Expression   `hcl:"max_strategies,optional"`
	CapTotal      bool             `hcl:"cap_total,optional"`
	Authority     string           `hcl:"authority,optional"`
	Strategies    []*strategyBlock `hcl:"strategy,block"`
}

type strategyBlock struct {
	Name   string         `hcl:"name,label"`
	Weight hcl.Expression `hcl:"weight"`
}

type wireBlock struct {
	Name      string         `hcl:"name,label"`
	Target    hcl.Expression `hcl:"target"`
	Method    string         `hcl:"method"`
	Args      hcl.Expression `hcl:"args,optional"`
	Authority string         `hcl:"authority,optional"`
	Phase     string         `hcl:"phase,optional"`
}

type upgradeBlock struct {
	Name      string         `hcl:"name,label"`
	Contract  string         `hcl:"contract"`
	Proxy     hcl.Expression `hcl:"proxy"`
	Authority string         `hcl:"authority,optional"`
}

type checkBlock struct {
	Name   string         `hcl:"name,label"`
	Target hcl.Expression `hcl:"target"`
	Method string         `hcl:"method"`
	Args   hcl.Expression `hcl:"args,optional"`
	Expect hcl.Expression `hcl:"expect,optional"`
}
