// Package flows contains the orchestration logic for login, refresh, logout,
// and access verification, decoupled from the root package through explicit
// dependency structs.
//
// Each flow is a pure function over its Deps: the root engine wires codec,
// ledger, and clock closures once at Build time and maps the returned failure
// kinds onto its exported error taxonomy, metrics, and audit events. Keeping
// the flows free of root imports keeps them independently testable and breaks
// the import cycle.
package flows
