// Package config defines the format-agnostic deployment model for the
// application, along with the core interfaces (Loader, Converter) for
// loading and interpreting configuration from various sources.
//
// The `config.Model` is the single source of truth for the `pipeline`
// package. It carries network definitions, constants, and the ordered
// pipeline definition (components, allocation, wiring, upgrades, checks).
// Argument expressions stay unevaluated until a stage evaluates them
// against a Scope, so that references to components produced earlier in
// the same run can be resolved. Concrete implementations of the
// interfaces, such as for HCL, are provided in separate packages.
package config
