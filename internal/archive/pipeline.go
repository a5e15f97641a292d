package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2006-sk/Backend-hackharvard/internal/audio"
	"github.com/2006-sk/Backend-hackharvard/internal/event"
)

var (
	// ErrNoAudioChunks means the session had no buffered audio to archive.
	ErrNoAudioChunks = errors.New("no audio chunks for session")

	// ErrArchivalFailed means the recording could not be uploaded
	// after all retries. The call's lifecycle result is unaffected.
	ErrArchivalFailed = errors.New("archival failed")
)

// Result describes a completed archival.
type Result struct {
	SessionID string  `json:"streamSid"`
	URL       string  `json:"url"`
	Filename  string  `json:"filename"`
	SizeBytes int     `json:"size_bytes"`
	Duration  float64 `json:"duration"`
}

// PipelineConfig contains finalization pipeline configuration.
type PipelineConfig struct {
	SampleRate    int
	MaxRetries    int
	RetryInterval time.Duration
}

// Pipeline drains a session's audio, encodes it and uploads the
// recording. The drain consumes the buffered audio, but the encoded
// artifact is retained until it uploads successfully, so a failed
// archival can be retried without losing the recording.
type Pipeline struct {
	chunks   *audio.ChunkBuffer
	uploader Uploader
	hub      *event.Hub
	logger   *slog.Logger
	config   PipelineConfig

	mu      sync.Mutex
	pending map[string][]byte // encoded artifacts awaiting upload
}

// NewPipeline creates a finalization pipeline.
func NewPipeline(chunks *audio.ChunkBuffer, uploader Uploader, hub *event.Hub, logger *slog.Logger, config PipelineConfig) *Pipeline {
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = time.Second
	}

	return &Pipeline{
		chunks:   chunks,
		uploader: uploader,
		hub:      hub,
		logger:   logger,
		config:   config,
		pending:  make(map[string][]byte),
	}
}

// Finalize archives the session's audio and announces the recording.
// The WAV artifact is built once; only the upload is retried. On
// ArchivalFailed the artifact stays pending and a later Finalize
// retries the upload without needing the drained chunks back.
func (p *Pipeline) Finalize(ctx context.Context, sessionID string) (*Result, error) {
	wavData, err := p.encodedArtifact(sessionID)
	if err != nil {
		return nil, err
	}

	filename := sessionID + ".wav"
	key := "recordings/" + filename

	url, err := p.upload(ctx, key, wavData)
	if err != nil {
		p.logger.Error("Recording upload failed, artifact retained",
			slog.String("session_id", sessionID),
			slog.Int("size_bytes", len(wavData)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrArchivalFailed, err)
	}

	p.mu.Lock()
	delete(p.pending, sessionID)
	p.mu.Unlock()

	duration := float64(len(wavData)-audio.WAVHeaderSize) / float64(p.config.SampleRate*2)

	result := &Result{
		SessionID: sessionID,
		URL:       url,
		Filename:  filename,
		SizeBytes: len(wavData),
		Duration:  duration,
	}

	p.logger.Info("Recording archived",
		slog.String("session_id", sessionID),
		slog.String("url", url),
		slog.Int("size_bytes", result.SizeBytes),
		slog.Float64("duration", duration))

	if p.hub != nil {
		p.hub.Publish(event.NewAudioReady(sessionID, url, filename, int64(result.SizeBytes)))
	}

	return result, nil
}

// Discard drops any buffered audio and any retained artifact without
// archiving them.
func (p *Pipeline) Discard(sessionID string) {
	p.chunks.Discard(sessionID)

	p.mu.Lock()
	delete(p.pending, sessionID)
	p.mu.Unlock()
}

// encodedArtifact returns the session's WAV artifact, building it from
// the buffered chunks unless a previous upload attempt left one pending.
func (p *Pipeline) encodedArtifact(sessionID string) ([]byte, error) {
	p.mu.Lock()
	wavData, ok := p.pending[sessionID]
	p.mu.Unlock()
	if ok {
		return wavData, nil
	}

	segments, err := p.chunks.Drain(sessionID)
	if err != nil {
		if errors.Is(err, audio.ErrEmptySession) {
			return nil, fmt.Errorf("%w: %s", ErrNoAudioChunks, sessionID)
		}
		return nil, err
	}

	total := 0
	for _, seg := range segments {
		total += len(seg)
	}
	pcm := make([]byte, 0, total)
	for _, seg := range segments {
		pcm = append(pcm, seg...)
	}

	wavData, err = audio.EncodeWAV(pcm, p.config.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recording: %w", err)
	}

	p.mu.Lock()
	p.pending[sessionID] = wavData
	p.mu.Unlock()

	return wavData, nil
}

func (p *Pipeline) upload(ctx context.Context, key string, data []byte) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := p.config.RetryInterval * time.Duration(1<<(attempt-1))
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		url, err := p.uploader.Upload(ctx, key, data, "audio/wav")
		if err == nil {
			return url, nil
		}

		lastErr = err
		p.logger.Warn("Upload attempt failed",
			slog.String("key", key),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))
	}

	return "", fmt.Errorf("upload failed after %d attempts: %w", p.config.MaxRetries+1, lastErr)
}
