// Package event defines the typed events emitted by the monitoring engine
// and the hub that fans them out to live subscribers. Delivery preserves
// per-session ordering and never blocks a producer on a slow subscriber.
package event
