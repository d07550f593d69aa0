package model

import "github.com/ethereum/go-ethereum/common"

// VerificationStatus is the tri-state result of submitting one address to
// a source-verification service.
type VerificationStatus string

const (
	VerificationVerified     VerificationStatus = "verified"
	VerificationFailed       VerificationStatus = "failed"
	VerificationNotAttempted VerificationStatus = "not_attempted"
)

// VerificationOutcome is recorded per implementation address and never
// fails a run.
type VerificationOutcome struct {
	Name     string
	Contract string
	Address  common.Address
	Status   VerificationStatus
	Detail   string
}

// CheckOutcome is the result of one post-deploy read-only check.
type CheckOutcome struct {
	Name   string
	Target common.Address
	Method string
	Got    []any
	Passed bool
	Detail string
}
