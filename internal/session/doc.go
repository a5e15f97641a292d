// Package session owns the authoritative state of every monitored call.
// It implements the Active→Ended lifecycle state machine, per-identifier
// serialized mutation, read-only snapshots, and a bounded recent-history
// list of ended calls.
package session
