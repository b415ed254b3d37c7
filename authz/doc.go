// Package authz defines the permission model the database server uses to gate
// operations, the [Authorizer] capability that evaluates permission requests,
// and an instrumented decorator that measures the latency of those checks.
//
// # Architecture boundaries
//
// authz is a boundary package: the actual decision engine (token verification,
// policy evaluation) lives behind the [Authorizer] interface and is supplied
// by the hosting process. This package owns only the value types, the
// interface contract, and the measurement decorator.
//
// # What this package must NOT do
//
//   - Inspect or translate errors returned by a wrapped [Authorizer]; the
//     decorator is a strict pass-through.
//   - Retry, cache, or otherwise re-shape permission checks. Recovery is the
//     inner implementation's concern.
//   - Hold per-call state. Concurrent Permissions calls share nothing but the
//     metric recorders, which are safe for concurrent observation.
package authz
