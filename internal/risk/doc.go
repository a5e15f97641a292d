// Package risk scores call transcripts for scam likelihood.
// It wraps the external classifier service, derives coarse risk bands from
// continuous scores, and implements the one-shot alert decision.
package risk
