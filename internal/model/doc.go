// Package model holds the values produced while a deployment runs:
// deployed components, staged implementations, deferred steps and
// verification outcomes. Definitions read from configuration live in the
// config package; everything here is the result of talking to a ledger.
package model
