// Package rate implements Redis fixed-window counters for the unauthenticated
// entry points: failed credential attempts (per email and optionally per IP)
// and password-reset requests (per email).
//
// # Window semantics
//
// INCR + EXPIRE on the first hit. Key prefixes:
//   - aa:rl:l:  login per email
//   - aa:rl:li: login per IP
//   - aa:rl:r:  reset requests per email
package rate
