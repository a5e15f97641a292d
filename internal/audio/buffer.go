package audio

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
)

const numShards = 32

// ErrEmptySession indicates a drain of a session with no buffered chunks.
// It means the caller never sent audio (or already drained), not a buffer
// fault.
var ErrEmptySession = errors.New("no buffered audio for session")

// ChunkBuffer accumulates raw PCM audio fragments per call session. Chunks
// keep arrival order: the buffer assigns each one a monotonically increasing
// sequence index and replays them in exactly that order on drain. Sessions
// are distributed over lock shards so buffering for one call never contends
// with another.
type ChunkBuffer struct {
	shards [numShards]chunkShard
}

type chunkShard struct {
	mu       sync.Mutex
	sessions map[string]*chunkList
}

type chunkList struct {
	chunks   [][]byte
	byteSize int
}

// BufferStats describes a single session's buffered audio.
type BufferStats struct {
	ChunkCount int `json:"chunk_count"`
	ByteSize   int `json:"byte_size"`
}

// NewChunkBuffer creates an empty chunk buffer.
func NewChunkBuffer() *ChunkBuffer {
	b := &ChunkBuffer{}
	for i := range b.shards {
		b.shards[i].sessions = make(map[string]*chunkList)
	}
	return b
}

func (b *ChunkBuffer) shardFor(sessionID string) *chunkShard {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return &b.shards[h.Sum32()%numShards]
}

// Append stores one audio fragment for the session and returns the chunk
// count after the append. The data is copied; callers may reuse their
// buffer. PCM-16 data must have even length.
func (b *ChunkBuffer) Append(sessionID string, data []byte) (int, error) {
	if sessionID == "" {
		return 0, fmt.Errorf("session id cannot be empty")
	}
	if len(data)%2 != 0 {
		return 0, fmt.Errorf("audio data length must be even (got %d bytes)", len(data))
	}

	sh := b.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	list, ok := sh.sessions[sessionID]
	if !ok {
		list = &chunkList{}
		sh.sessions[sessionID] = list
	}

	chunk := make([]byte, len(data))
	copy(chunk, data)
	list.chunks = append(list.chunks, chunk)
	list.byteSize += len(chunk)

	return len(list.chunks), nil
}

// Drain removes and returns every chunk for the session in append order.
// The session's memory is released entirely; a subsequent Append starts a
// fresh, empty sequence even when the identifier is reused. Draining a
// session with zero chunks fails with ErrEmptySession.
func (b *ChunkBuffer) Drain(sessionID string) ([][]byte, error) {
	sh := b.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	list, ok := sh.sessions[sessionID]
	if !ok || len(list.chunks) == 0 {
		delete(sh.sessions, sessionID)
		return nil, fmt.Errorf("%w: %s", ErrEmptySession, sessionID)
	}

	chunks := list.chunks
	delete(sh.sessions, sessionID)
	return chunks, nil
}

// Discard drops all buffered audio for the session, used when a call is
// abandoned without finalization. Unknown sessions are a no-op.
func (b *ChunkBuffer) Discard(sessionID string) {
	sh := b.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.sessions, sessionID)
}

// Stats returns the chunk count and byte size buffered for the session.
func (b *ChunkBuffer) Stats(sessionID string) BufferStats {
	sh := b.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	list, ok := sh.sessions[sessionID]
	if !ok {
		return BufferStats{}
	}
	return BufferStats{ChunkCount: len(list.chunks), ByteSize: list.byteSize}
}

// SessionCount returns the number of sessions holding buffered audio.
func (b *ChunkBuffer) SessionCount() int {
	count := 0
	for i := range b.shards {
		sh := &b.shards[i]
		sh.mu.Lock()
		count += len(sh.sessions)
		sh.mu.Unlock()
	}
	return count
}
