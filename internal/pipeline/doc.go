// Package pipeline drives a deployment run through its ordered stages:
//
//	ConfigResolved → TokenDeployed → VaultDeployed → StrategiesDeployed →
//	Wired → ImplementationsStaged → Verified → Done
//
// Each stage function receives the run's State and returns it, extended
// with what the stage produced. Nothing is kept outside the State. Steps
// that need an authority the run does not hold are recorded as deferrals
// and the run still reaches Done. Any other failure aborts the run at once
// with an *AbortError naming the failed stage, the last completed stage and
// every component produced so far. Nothing is rolled back.
package pipeline
