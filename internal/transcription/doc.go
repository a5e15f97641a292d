// Package transcription provides the HTTP client used to turn call
// audio segments into text. Requests are rate limited with a
// semaphore and retried with exponential backoff.
package transcription
