// Package flows contains the orchestrators behind every Engine operation.
//
// Each flow function (RunSubmitCredentials, RunValidate, RunResolveRequest,
// etc.) accepts a typed dependency struct and returns results without
// side-effects beyond those dependencies. The Engine builds the dependency
// structs once and stays thin.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the credential store, token codec,
// second-factor verifier, limiters, notification sender, audit dispatcher and
// metrics. They do NOT own any of these resources; ownership stays with the
// Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import adminauth (to avoid import cycles). Sentinel errors, event names
//     and metric ids arrive through the Errors, Events and Metrics structs.
package flows
