// Package server exposes the service's HTTP API and the two
// WebSocket endpoints: /media receives telephony media streams and
// /notify pushes call events to frontend clients.
package server
