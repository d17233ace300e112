// Package topology builds and queries the cluster's fault-domain tree:
// the rooted hierarchy of datacenters, hosts, and disks that the
// placement planner spreads a couple's members across.
//
// The tree is rebuilt from scratch for each snapshot of the external
// inventory feed rather than maintained incrementally — inventories are small
// (hundreds to low thousands of hosts) and rebuilding avoids an entire class
// of incremental-update bugs. Each planning pass works on a clone of the
// current tree. Interior types the operator hasn't configured as
// accountable levels are elided: their children are reparented to their own
// parent, so the tree always has exactly the levels {root, configured
// levels..., host, hdd}.
package topology
