// Package history persists finished calls to Postgres so the recent
// call list survives restarts.
package history
