// Package audit relays security-relevant events from the engine to a sink
// without blocking the request path.
//
// The package owns buffering and delivery only. Which events exist, and when
// they fire, is decided by the engine.
package audit
