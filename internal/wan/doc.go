// Package wan reads WAN interface and default-route state from the router,
// derives the per-connection view, and performs the two mutations the
// dashboard offers: switching the preferred connection and pulsing an
// interface to force it to renegotiate.
//
// Neither mutation is atomic. The router API is a sequence of independent
// commands, so both operations report per-step outcomes instead of hiding
// partial progress behind a single error.
package wan
