// Package weight implements the balancer's weight engine: it turns a
// set of same-size, same-namespace candidate couples into a weight map
// suitable for weighted-random client routing.
//
// The algorithm runs in five passes over the candidate set — participation
// filter, head/tail partition, target admission count, raw score, floor —
// each one a pure function of the couples' current CoupleSnapshots and the
// engine Config. Nothing here touches the network or the cluster registry;
// callers pull fresh snapshots from clustermodel and hand them in.
package weight
