package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/kiko1842/vaultwire/internal/config"
)

// DeployedComponent is an upgradeable component created by this run. The
// proxy address is its durable identity; the implementation behind it may
// be replaced later.
type DeployedComponent struct {
	Name           string
	Contract       string
	Role           config.Role
	Proxy          common.Address
	Implementation common.Address
	UnsafeAllow    []string
}

// StagedImplementation is a new implementation deployed for an existing
// proxy. Upgraded reports whether the proxy was repointed in this run.
type StagedImplementation struct {
	Name           string
	Contract       string
	Proxy          common.Address
	Implementation common.Address
	Upgraded       bool
}
