// Package monitor drives live call analysis. It owns the call
// lifecycle: media frames are buffered for archival and cut into
// segments, each segment is transcribed and scored, and every state
// change is published to the event hub. One worker goroutine per call
// keeps updates for a session strictly ordered.
package monitor
