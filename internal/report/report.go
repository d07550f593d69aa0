// Package report turns the final state of a run into a summary for humans
// (console), machines (YAML) and the archive (object storage).
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kiko1842/vaultwire/internal/allocation"
	"github.com/kiko1842/vaultwire/internal/pipeline"
)

// Outcome is the overall result of a run.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeAborted Outcome = "aborted"
)

// Report is the serializable summary of a run.
type Report struct {
	RunID         string    `yaml:"run_id"`
	Network       string    `yaml:"network,omitempty"`
	ChainID       uint64    `yaml:"chain_id,omitempty"`
	Deployer      string    `yaml:"deployer,omitempty"`
	Outcome       Outcome   `yaml:"outcome"`
	FailedStage   string    `yaml:"failed_stage,omitempty"`
	Error         string    `yaml:"error,omitempty"`
	LastCompleted string    `yaml:"last_completed,omitempty"`
	Completed     []string  `yaml:"completed"`
	GeneratedAt   time.Time `yaml:"generated_at"`

	Components   []Component    `yaml:"components"`
	Staged       []Staged       `yaml:"staged_implementations,omitempty"`
	Allocation   []Allocation   `yaml:"allocation,omitempty"`
	IdleWeight   uint64         `yaml:"idle_weight,omitempty"`
	Deferred     []Deferred     `yaml:"deferred,omitempty"`
	Checks       []Check        `yaml:"checks,omitempty"`
	Verification []Verification `yaml:"verification,omitempty"`
}

type Component struct {
	Name           string `yaml:"name"`
	Contract       string `yaml:"contract"`
	Role           string `yaml:"role"`
	Proxy          string `yaml:"proxy"`
	Implementation string `yaml:"implementation"`
}

type Staged struct {
	Name           string `yaml:"name"`
	Contract       string `yaml:"contract"`
	Proxy          string `yaml:"proxy"`
	Implementation string `yaml:"implementation"`
	Upgraded       bool   `yaml:"upgraded"`
}

type Allocation struct {
	Strategy string `yaml:"strategy"`
	Address  string `yaml:"address"`
	Weight   uint64 `yaml:"weight"`
	Percent  string `yaml:"percent"`
}

// Deferred is a call left for an authority the run does not hold.
type Deferred struct {
	Stage     string   `yaml:"stage"`
	Step      string   `yaml:"step"`
	Authority string   `yaml:"authority"`
	Target    string   `yaml:"target"`
	Method    string   `yaml:"method"`
	Args      []string `yaml:"args,omitempty"`
	Calldata  string   `yaml:"calldata"`
}

type Check struct {
	Name   string `yaml:"name"`
	Target string `yaml:"target"`
	Method string `yaml:"method"`
	Passed bool   `yaml:"passed"`
	Got    string `yaml:"got,omitempty"`
	Detail string `yaml:"detail,omitempty"`
}

type Verification struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Status  string `yaml:"status"`
	Detail  string `yaml:"detail,omitempty"`
}

// FromState builds the report for a finished run. runErr is the error
// returned by the driver, if any.
func FromState(st *pipeline.State, runErr error) Report {
	r := Report{
		RunID:         st.RunID,
		Outcome:       OutcomeDone,
		LastCompleted: string(st.LastCompleted()),
		Completed:     make([]string, 0, len(st.Completed)),
		GeneratedAt:   time.Now().UTC(),
		Components:    make([]Component, 0, len(st.Components)),
		IdleWeight:    st.IdleWeight,
	}
	if st.Network != nil {
		r.Network = string(st.Network.ID())
		r.ChainID = st.Network.ChainID()
	}
	if st.Deployer != (common.Address{}) {
		r.Deployer = st.Deployer.Hex()
	}
	if runErr != nil {
		r.Outcome = OutcomeAborted
		r.Error = runErr.Error()
		var abort *pipeline.AbortError
		if errors.As(runErr, &abort) {
			r.FailedStage = string(abort.Stage)
		}
	}
	for _, s := range st.Completed {
		r.Completed = append(r.Completed, string(s))
	}

	for _, c := range st.Components {
		r.Components = append(r.Components, Component{
			Name:           c.Name,
			Contract:       c.Contract,
			Role:           string(c.Role),
			Proxy:          c.Proxy.Hex(),
			Implementation: c.Implementation.Hex(),
		})
	}
	for _, s := range st.Staged {
		r.Staged = append(r.Staged, Staged{
			Name:           s.Name,
			Contract:       s.Contract,
			Proxy:          s.Proxy.Hex(),
			Implementation: s.Implementation.Hex(),
			Upgraded:       s.Upgraded,
		})
	}
	for _, e := range st.Allocation {
		r.Allocation = append(r.Allocation, Allocation{
			Strategy: e.Name,
			Address:  e.Address.Hex(),
			Weight:   e.Weight,
			Percent:  percent(e.Weight),
		})
	}
	for _, d := range st.Deferred {
		def := Deferred{
			Stage:     d.Stage,
			Step:      d.Step,
			Authority: d.Authority,
			Target:    d.Target.Hex(),
			Method:    d.Method,
			Calldata:  d.Calldata.String(),
		}
		for _, a := range d.Args {
			def.Args = append(def.Args, fmt.Sprint(a))
		}
		r.Deferred = append(r.Deferred, def)
	}
	for _, c := range st.Checks {
		check := Check{
			Name:   c.Name,
			Target: c.Target.Hex(),
			Method: c.Method,
			Passed: c.Passed,
			Detail: c.Detail,
		}
		if c.Got != nil {
			check.Got = formatValues(c.Got)
		}
		r.Checks = append(r.Checks, check)
	}
	for _, v := range st.Verification {
		r.Verification = append(r.Verification, Verification{
			Name:    v.Name,
			Address: v.Address.Hex(),
			Status:  string(v.Status),
			Detail:  v.Detail,
		})
	}
	return r
}

func percent(weight uint64) string {
	return fmt.Sprintf("%.2f%%", float64(weight)*100/float64(allocation.Scale))
}

func formatValues(values []any) string {
	if len(values) == 1 {
		return fmt.Sprint(values[0])
	}
	return fmt.Sprint(values)
}
