// Package balancer is the operator request facade: it wires every core
// package (clustermodel, topology, weight, placement, lifecycle,
// namespace, clusterlock, audit) into one Service that implements the
// operator RPC surface, and an http.go handler layer that exposes it over
// a plain net/http.ServeMux with JSON bodies and errs.Kind mapped to
// status codes.
package balancer
