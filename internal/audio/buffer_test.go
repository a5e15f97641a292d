package audio

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestAppendAndDrainPreservesOrder(t *testing.T) {
	buf := NewChunkBuffer()

	chunks := [][]byte{{1, 2}, {3, 4}, {5, 6}}
	for i, chunk := range chunks {
		count, err := buf.Append("CA123", chunk)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if count != i+1 {
			t.Errorf("Expected chunk count %d, got %d", i+1, count)
		}
	}

	drained, err := buf.Drain("CA123")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(drained) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(drained))
	}
	for i, chunk := range chunks {
		if !bytes.Equal(drained[i], chunk) {
			t.Errorf("Chunk %d: expected %v, got %v", i, chunk, drained[i])
		}
	}
}

func TestAppendCopiesData(t *testing.T) {
	buf := NewChunkBuffer()

	data := []byte{1, 2}
	buf.Append("CA123", data)
	data[0] = 99

	drained, _ := buf.Drain("CA123")
	if drained[0][0] != 1 {
		t.Errorf("Expected buffered chunk to be isolated from caller mutation")
	}
}

func TestAppendValidation(t *testing.T) {
	buf := NewChunkBuffer()

	if _, err := buf.Append("", []byte{1, 2}); err == nil {
		t.Errorf("Expected error for empty session id")
	}

	if _, err := buf.Append("CA123", []byte{1, 2, 3}); err == nil {
		t.Errorf("Expected error for odd-length PCM data")
	}
}

func TestDrainEmptySession(t *testing.T) {
	buf := NewChunkBuffer()

	_, err := buf.Drain("missing")
	if !errors.Is(err, ErrEmptySession) {
		t.Errorf("Expected ErrEmptySession, got %v", err)
	}
}

func TestDrainReleasesSession(t *testing.T) {
	buf := NewChunkBuffer()

	buf.Append("CA123", []byte{1, 2})
	if _, err := buf.Drain("CA123"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// A second drain finds nothing.
	if _, err := buf.Drain("CA123"); !errors.Is(err, ErrEmptySession) {
		t.Errorf("Expected ErrEmptySession after drain, got %v", err)
	}

	// Reusing the identifier starts a fresh sequence.
	count, err := buf.Append("CA123", []byte{7, 8})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if count != 1 {
		t.Errorf("Expected fresh sequence after drain, got count %d", count)
	}
}

func TestDiscard(t *testing.T) {
	buf := NewChunkBuffer()

	buf.Append("CA123", []byte{1, 2})
	buf.Discard("CA123")

	if _, err := buf.Drain("CA123"); !errors.Is(err, ErrEmptySession) {
		t.Errorf("Expected ErrEmptySession after discard, got %v", err)
	}

	// Discarding an unknown session is a no-op.
	buf.Discard("missing")
}

func TestStats(t *testing.T) {
	buf := NewChunkBuffer()

	buf.Append("CA123", []byte{1, 2, 3, 4})
	buf.Append("CA123", []byte{5, 6})

	stats := buf.Stats("CA123")
	if stats.ChunkCount != 2 {
		t.Errorf("Expected 2 chunks, got %d", stats.ChunkCount)
	}
	if stats.ByteSize != 6 {
		t.Errorf("Expected 6 bytes, got %d", stats.ByteSize)
	}

	if empty := buf.Stats("missing"); empty.ChunkCount != 0 || empty.ByteSize != 0 {
		t.Errorf("Expected zero stats for unknown session, got %+v", empty)
	}
}

func TestSessionCount(t *testing.T) {
	buf := NewChunkBuffer()

	buf.Append("CA1", []byte{1, 2})
	buf.Append("CA2", []byte{3, 4})

	if count := buf.SessionCount(); count != 2 {
		t.Errorf("Expected 2 sessions, got %d", count)
	}

	buf.Drain("CA1")
	if count := buf.SessionCount(); count != 1 {
		t.Errorf("Expected 1 session after drain, got %d", count)
	}
}

func TestConcurrentAppendsDistinctSessions(t *testing.T) {
	buf := NewChunkBuffer()

	const sessions = 16
	const chunksPerSession = 100

	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		id := fmt.Sprintf("CA%03d", i)
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < chunksPerSession; j++ {
				if _, err := buf.Append(id, []byte{byte(j), byte(j >> 8)}); err != nil {
					t.Errorf("Unexpected error for %s: %v", id, err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	for i := 0; i < sessions; i++ {
		id := fmt.Sprintf("CA%03d", i)
		stats := buf.Stats(id)
		if stats.ChunkCount != chunksPerSession {
			t.Errorf("Expected %d chunks for %s, got %d", chunksPerSession, id, stats.ChunkCount)
		}
	}
}
