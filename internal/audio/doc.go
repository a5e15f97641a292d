// Package audio handles per-call audio accumulation and container encoding.
// It implements ordered chunk buffering with a drain/discard finalization
// protocol and encoding of raw PCM-16 audio into WAV containers for archival.
package audio
