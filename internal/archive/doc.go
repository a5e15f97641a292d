// Package archive finalizes ended calls: it drains buffered audio,
// encodes it as a WAV recording and uploads it to S3-compatible
// object storage.
package archive
