// Package storage provides the small key-value persistence the balancer
// control plane itself needs, distinct from the storage-daemon boundary
// (internal/netrpc, internal/lifecycle.GroupMetaClient) that actually
// holds object data and per-group meta blobs. HTTPMetaClient, in this
// package, is the client side of that boundary: it implements
// lifecycle.GroupMetaClient over internal/netrpc.
//
// The state kept here is small: the MASTERMIND_MAX_GROUP_KEY high-water
// mark get_next_group_number reserves ranges from, and the namespace
// settings blobs. MemoryStore backs tests; BoltStore backs a durable
// balancerd, sharing its data directory with the raft log/stable stores in
// internal/clusterlock.
package storage
