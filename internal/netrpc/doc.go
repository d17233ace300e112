// Package netrpc provides the JSON-over-HTTP helpers the balancer uses to
// talk to storage daemons.
//
// The balancer's core (node/group/couple model, weight engine, placement
// planner, lifecycle writer) never opens a socket itself — it calls through
// the small client surface in this package, which is the only place that
// knows about timeouts, status codes, and JSON framing. Swapping the wire
// protocol (to the real storage-daemon RPC, for instance) means replacing
// this package, not the core.
package netrpc
