// Package allocation keeps the strategy weights a vault distributes its
// deposits across.
//
// Weights are basis points on a 1,000,000 scale (1,000,000 = 100%). Each
// weight is bounded by the table's maximum; the sum is only bounded when the
// table is created with CapTotal. A sum below the scale leaves the remainder
// idle in the vault. Registering a strategy again replaces its weight in
// place.
package allocation

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
)

// Scale is the weight that represents the whole of the vault's deposits.
const Scale uint64 = 1_000_000

var (
	ErrWeightAboveMax    = errors.New("weight above maximum")
	ErrTooManyStrategies = errors.New("too many strategies")
	ErrTotalAboveScale   = errors.New("total allocation above 100%")
)

// Entry is one registered strategy.
type Entry struct {
	Name    string
	Address common.Address
	Weight  uint64
}

// Table is an ordered allocation table. It is not safe for concurrent use.
type Table struct {
	maxWeight     uint64
	maxStrategies int
	capTotal      bool
	entries       []Entry
}

// Option configures a Table.
type Option func(*Table)

// CapTotal rejects registrations that bring the sum of weights above Scale.
func CapTotal() Option {
	return func(t *Table) { t.capTotal = true }
}

// New creates an empty table. maxWeight bounds every single weight and
// maxStrategies bounds the number of distinct strategies.
func New(maxWeight uint64, maxStrategies int, opts ...Option) (*Table, error) {
	if maxWeight == 0 || maxWeight > Scale {
		return nil, fmt.Errorf("max weight must be within 1..%d, got %d", Scale, maxWeight)
	}
	if maxStrategies < 1 {
		return nil, fmt.Errorf("max strategies must be at least 1, got %d", maxStrategies)
	}
	t := &Table{maxWeight: maxWeight, maxStrategies: maxStrategies}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Register sets the weight of a strategy. A strategy that is already
// registered keeps its position and gets the new weight.
func (t *Table) Register(name string, addr common.Address, weight uint64) error {
	if weight > t.maxWeight {
		return fmt.Errorf("%w: strategy %q weight %d exceeds %d", ErrWeightAboveMax, name, weight, t.maxWeight)
	}

	idx := slices.IndexFunc(t.entries, func(e Entry) bool { return e.Address == addr })
	if idx < 0 && len(t.entries) >= t.maxStrategies {
		return fmt.Errorf("%w: cannot register %q, limit is %d", ErrTooManyStrategies, name, t.maxStrategies)
	}

	if t.capTotal {
		total := weight
		for i, e := range t.entries {
			if i != idx {
				total += e.Weight
			}
		}
		if total > Scale {
			return fmt.Errorf("%w: registering %q brings the total to %d", ErrTotalAboveScale, name, total)
		}
	}

	if idx >= 0 {
		t.entries[idx].Name = name
		t.entries[idx].Weight = weight
		return nil
	}
	t.entries = append(t.entries, Entry{Name: name, Address: addr, Weight: weight})
	return nil
}

// Entries returns the registrations in first-registration order.
func (t *Table) Entries() []Entry {
	return slices.Clone(t.entries)
}

// Weight returns the registered weight of a strategy.
func (t *Table) Weight(addr common.Address) (uint64, bool) {
	for _, e := range t.entries {
		if e.Address == addr {
			return e.Weight, true
		}
	}
	return 0, false
}

// Total is the sum of all registered weights.
func (t *Table) Total() uint64 {
	var total uint64
	for _, e := range t.entries {
		total += e.Weight
	}
	return total
}

// Remainder is the share of deposits left idle in the vault; zero when
// the weights add up to Scale or more.
func (t *Table) Remainder() uint64 {
	total := t.Total()
	if total >= Scale {
		return 0
	}
	return Scale - total
}

// Len returns the number of registered strategies.
func (t *Table) Len() int {
	return len(t.entries)
}
