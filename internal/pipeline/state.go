package pipeline

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/kiko1842/vaultwire/internal/allocation"
	"github.com/kiko1842/vaultwire/internal/config"
	"github.com/kiko1842/vaultwire/internal/model"
	"github.com/kiko1842/vaultwire/internal/wiring"
	"github.com/zclconf/go-cty/cty"
)

// Stage is a named point in the run's state machine.
type Stage string

const (
	StageConfigResolved        Stage = "ConfigResolved"
	StageTokenDeployed         Stage = "TokenDeployed"
	StageVaultDeployed         Stage = "VaultDeployed"
	StageStrategiesDeployed    Stage = "StrategiesDeployed"
	StageWired                 Stage = "Wired"
	StageImplementationsStaged Stage = "ImplementationsStaged"
	StageVerified              Stage = "Verified"
	StageDone                  Stage = "Done"
)

// Stages lists every stage in execution order.
var Stages = []Stage{
	StageConfigResolved,
	StageTokenDeployed,
	StageVaultDeployed,
	StageStrategiesDeployed,
	StageWired,
	StageImplementationsStaged,
	StageVerified,
	StageDone,
}

// State is everything a run has produced so far.
type State struct {
	RunID    string
	Network  *config.NetworkProfile
	Deployer common.Address

	Components   []*model.DeployedComponent
	Staged       []*model.StagedImplementation
	Allocation   []allocation.Entry
	IdleWeight   uint64
	Wiring       []wiring.StepResult
	Deferred     []model.Deferral
	Verification []model.VerificationOutcome
	Checks       []model.CheckOutcome
	Completed    []Stage
}

// LastCompleted returns the most recent completed stage, or "" before the
// first one.
func (s *State) LastCompleted() Stage {
	if len(s.Completed) == 0 {
		return ""
	}
	return s.Completed[len(s.Completed)-1]
}

// Terminal reports whether the run reached Done.
func (s *State) Terminal() bool {
	return s.LastCompleted() == StageDone
}

// Component looks up a deployed component by name.
func (s *State) Component(name string) (*model.DeployedComponent, bool) {
	for _, c := range s.Components {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// scope builds the view of the state that expressions may read.
func (s *State) scope(constants map[string]cty.Value) *config.Scope {
	sc := &config.Scope{
		Network:         s.Network,
		Deployer:        s.Deployer,
		Constants:       constants,
		Components:      make(map[string]common.Address, len(s.Components)),
		Implementations: make(map[string]common.Address, len(s.Components)+len(s.Staged)),
	}
	for _, c := range s.Components {
		sc.Components[c.Name] = c.Proxy
		sc.Implementations[c.Name] = c.Implementation
	}
	for _, st := range s.Staged {
		sc.Implementations[st.Name] = st.Implementation
	}
	return sc
}
