package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2006-sk/Backend-hackharvard/internal/archive"
	"github.com/2006-sk/Backend-hackharvard/internal/audio"
	"github.com/2006-sk/Backend-hackharvard/internal/event"
	"github.com/2006-sk/Backend-hackharvard/internal/history"
	"github.com/2006-sk/Backend-hackharvard/internal/metrics"
	"github.com/2006-sk/Backend-hackharvard/internal/risk"
	"github.com/2006-sk/Backend-hackharvard/internal/session"
	"github.com/2006-sk/Backend-hackharvard/internal/transcription"
)

// Config contains monitoring engine configuration.
type Config struct {
	SampleRate      int
	SegmentDuration time.Duration
	SessionTimeout  time.Duration
	CleanupInterval time.Duration
}

// Engine coordinates the live analysis of monitored calls.
type Engine struct {
	store       *session.Store
	chunks      *audio.ChunkBuffer
	hub         *event.Hub
	evaluator   *risk.Evaluator
	transcriber transcription.Transcriber
	pipeline    *archive.Pipeline
	recorder    history.Recorder
	metrics     *metrics.Metrics
	logger      *slog.Logger
	config      Config

	mu      sync.Mutex
	workers map[string]*callWorker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// callWorker serializes transcription and scoring for one call. done is
// closed when the analysis loop has drained the segment queue and exited.
type callWorker struct {
	id       string
	segments chan []byte
	done     chan struct{}

	mu      sync.Mutex
	pending []byte
	closed  bool
}

// enqueue hands a segment to the analysis loop without blocking. The
// closed check and the send happen under the worker mutex so a
// concurrent close can never turn the send into a panic.
func (w *callWorker) enqueue(segment []byte) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return true // call is ending, segment is intentionally dropped
	}

	select {
	case w.segments <- segment:
		return true
	default:
		return false
	}
}

// close stops the analysis loop after it drains the queued segments.
// Safe to call more than once.
func (w *callWorker) close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed {
		w.closed = true
		close(w.segments)
	}
}

// NewEngine creates a monitoring engine. Call Start to begin the
// background cleanup loop and Stop to shut everything down.
func NewEngine(
	store *session.Store,
	chunks *audio.ChunkBuffer,
	hub *event.Hub,
	evaluator *risk.Evaluator,
	transcriber transcription.Transcriber,
	pipeline *archive.Pipeline,
	recorder history.Recorder,
	m *metrics.Metrics,
	logger *slog.Logger,
	config Config,
) *Engine {
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if config.SegmentDuration <= 0 {
		config.SegmentDuration = 5 * time.Second
	}
	if config.SessionTimeout <= 0 {
		config.SessionTimeout = 5 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		store:       store,
		chunks:      chunks,
		hub:         hub,
		evaluator:   evaluator,
		transcriber: transcriber,
		pipeline:    pipeline,
		recorder:    recorder,
		metrics:     m,
		logger:      logger,
		config:      config,
		workers:     make(map[string]*callWorker),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the expired-session cleanup loop.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.cleanupLoop()
}

// HandleStart registers a new call. Starting an already-active call
// is a no-op; reusing the identifier of a recently ended call is
// rejected with session.ErrDuplicateSession.
func (e *Engine) HandleStart(id string) error {
	now := time.Now()

	_, created, err := e.store.Start(id, now)
	if err != nil {
		e.logger.Warn("Rejected call start",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
		return err
	}
	if !created {
		e.logger.Debug("Call already active, ignoring start", slog.String("session_id", id))
		return nil
	}

	e.spawnWorker(id)

	if e.metrics != nil {
		e.metrics.RecordCallStarted()
		e.metrics.SetActiveCalls(e.store.ActiveCount())
	}

	e.hub.Publish(event.NewCallStart(id, now))

	e.logger.Info("Call started", slog.String("session_id", id))
	return nil
}

// HandleMedia ingests one µ-law media frame for an active call. The
// frame is converted to 16 kHz linear PCM, buffered for archival and
// accumulated toward the next analysis segment.
func (e *Engine) HandleMedia(id string, mulaw []byte) error {
	if len(mulaw) == 0 {
		return nil
	}

	pcm := audio.Upsample8kTo16k(audio.DecodeMuLaw(mulaw))

	if _, err := e.chunks.Append(id, pcm); err != nil {
		return fmt.Errorf("failed to buffer audio for session %s: %w", id, err)
	}
	e.store.Touch(id, time.Now())

	if e.metrics != nil {
		e.metrics.RecordMediaFrame()
	}

	e.mu.Lock()
	worker := e.workers[id]
	e.mu.Unlock()
	if worker == nil {
		// Media for an unregistered call still gets archived; there
		// is no worker to analyze it.
		return nil
	}

	segmentBytes := int(e.config.SegmentDuration.Seconds() * float64(e.config.SampleRate) * 2)

	worker.mu.Lock()
	worker.pending = append(worker.pending, pcm...)
	var segment []byte
	if len(worker.pending) >= segmentBytes {
		segment = worker.pending
		worker.pending = nil
	}
	worker.mu.Unlock()

	if segment != nil && !worker.enqueue(segment) {
		e.logger.Warn("Analysis queue full, skipping segment",
			slog.String("session_id", id),
			slog.Int("segment_bytes", len(segment)))
	}

	return nil
}

// EndCall finishes a call: the session moves to Ended, a call_end
// event is published, the call is persisted to history and the
// recording is archived in the background.
func (e *Engine) EndCall(id string) (session.Snapshot, error) {
	return e.endCall(id, true)
}

// endCall implements call teardown. Expired calls were abandoned by
// the bridge, so their buffered audio is discarded, not archived.
func (e *Engine) endCall(id string, archiveAudio bool) (session.Snapshot, error) {
	finalScore := 0.0
	if current, ok := e.store.Get(id); ok {
		finalScore = current.Score
	}

	now := time.Now()
	snap, err := e.store.End(id, finalScore, 0, now)
	if err != nil {
		return session.Snapshot{}, err
	}

	// Wait for in-flight analysis so every update that made it into the
	// store is published before call_end. Updates still queued behind
	// the End fail at ApplyUpdate and are dropped.
	if worker := e.removeWorker(id); worker != nil {
		worker.close()
		<-worker.done
	}

	duration := snap.DurationSeconds()

	if e.metrics != nil {
		e.metrics.RecordCallEnded(duration)
		e.metrics.SetActiveCalls(e.store.ActiveCount())
	}

	e.hub.Publish(event.NewCallEnd(id, finalScore, duration, now))

	e.logger.Info("Call ended",
		slog.String("session_id", id),
		slog.Float64("final_score", finalScore),
		slog.Float64("duration", duration))

	e.saveHistory(snap, "")

	if !archiveAudio {
		e.pipeline.Discard(id)
		return snap, nil
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.archiveCall(snap)
	}()

	return snap, nil
}

// Finalize archives a call's buffered audio on demand.
func (e *Engine) Finalize(ctx context.Context, id string) (*archive.Result, error) {
	start := time.Now()
	result, err := e.pipeline.Finalize(ctx, id)
	if err != nil {
		if e.metrics != nil && errors.Is(err, archive.ErrArchivalFailed) {
			e.metrics.RecordArchiveFailure()
		}
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.RecordArchiveUpload(time.Since(start).Seconds(), result.SizeBytes)
	}
	return result, nil
}

// Stop shuts down the engine and waits for in-flight work.
func (e *Engine) Stop() {
	e.cancel()

	e.mu.Lock()
	for id, worker := range e.workers {
		worker.close()
		delete(e.workers, id)
	}
	e.mu.Unlock()

	e.wg.Wait()
	e.logger.Info("Monitoring engine stopped")
}

func (e *Engine) spawnWorker(id string) {
	worker := &callWorker{
		id:       id,
		segments: make(chan []byte, 4),
		done:     make(chan struct{}),
	}

	e.mu.Lock()
	e.workers[id] = worker
	e.mu.Unlock()

	e.wg.Add(1)
	go e.analyzeLoop(worker)
}

func (e *Engine) removeWorker(id string) *callWorker {
	e.mu.Lock()
	worker := e.workers[id]
	delete(e.workers, id)
	e.mu.Unlock()
	return worker
}

// analyzeLoop processes segments for one call in order.
func (e *Engine) analyzeLoop(worker *callWorker) {
	defer e.wg.Done()
	defer close(worker.done)

	for segment := range worker.segments {
		e.analyzeSegment(worker.id, segment)
	}
}

func (e *Engine) analyzeSegment(id string, pcm []byte) {
	// Segments queued behind a call end are not worth transcribing.
	if snap, ok := e.store.Get(id); !ok || snap.State != session.StateActive {
		return
	}

	ctx, cancel := context.WithTimeout(e.ctx, 60*time.Second)
	defer cancel()

	text, ok := e.transcribeSegment(ctx, id, pcm)
	if !ok || text == "" {
		return
	}

	cleanText := risk.CleanText(text)
	if cleanText == "" {
		return
	}

	now := time.Now()

	score, band, err := e.evaluator.Evaluate(ctx, cleanText)
	if err != nil {
		// Carry the last known risk forward so the caller keeps
		// getting transcript updates during classifier outages.
		if e.metrics != nil {
			e.metrics.RecordClassificationFailure()
		}
		e.logger.Error("Classification failed",
			slog.String("session_id", id),
			slog.String("error", err.Error()))

		snap, _, staleErr := e.store.ApplyStaleUpdate(id, text, cleanText, now)
		if staleErr != nil {
			e.logger.Debug("Dropping update for inactive session",
				slog.String("session_id", id),
				slog.String("error", staleErr.Error()))
			return
		}

		e.hub.Publish(event.NewUpdate(id, text, cleanText, snap.Score, snap.Band, now))
		return
	}

	snap, alerted, err := e.store.ApplyUpdate(id, text, cleanText, score, band, now)
	if err != nil {
		e.logger.Debug("Dropping update for inactive session",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
		return
	}

	if e.metrics != nil {
		e.metrics.RecordUpdateProcessed(score)
	}

	e.hub.Publish(event.NewUpdate(id, text, cleanText, score, band, now))

	if alerted {
		if e.metrics != nil {
			e.metrics.RecordAlertFired()
		}
		e.logger.Warn("High risk alert",
			slog.String("session_id", id),
			slog.Float64("score", score),
			slog.String("band", string(band)),
			slog.Int("update_count", snap.UpdateCount))
	}
}

func (e *Engine) transcribeSegment(ctx context.Context, id string, pcm []byte) (string, bool) {
	wavData, err := audio.EncodeWAV(pcm, e.config.SampleRate)
	if err != nil {
		e.logger.Error("Failed to encode segment",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
		return "", false
	}

	duration := time.Duration(float64(len(pcm)) / float64(e.config.SampleRate*2) * float64(time.Second))

	start := time.Now()
	if e.metrics != nil {
		e.metrics.RecordTranscriptionRequest()
	}

	resp, err := e.transcriber.Transcribe(ctx, &transcription.Request{
		SessionID:  id,
		SegmentID:  fmt.Sprintf("%s-%d", id, start.UnixMilli()),
		SampleRate: e.config.SampleRate,
		Duration:   duration,
		AudioData:  wavData,
	})
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordTranscriptionFailure(time.Since(start).Seconds())
		}
		e.logger.Error("Transcription failed",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
		return "", false
	}

	if e.metrics != nil {
		e.metrics.RecordTranscriptionSuccess(time.Since(start).Seconds())
	}

	return resp.Text, true
}

// archiveCall uploads the recording for an ended call and backfills
// the recording URL into history. Archival failures never affect the
// call's lifecycle result.
func (e *Engine) archiveCall(snap session.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := e.Finalize(ctx, snap.ID)
	if err != nil {
		if errors.Is(err, archive.ErrNoAudioChunks) {
			e.logger.Debug("No audio to archive", slog.String("session_id", snap.ID))
			return
		}
		e.logger.Error("Archival failed",
			slog.String("session_id", snap.ID),
			slog.String("error", err.Error()))
		return
	}

	e.saveHistory(snap, result.URL)
}

func (e *Engine) saveHistory(snap session.Snapshot, recordingURL string) {
	if e.recorder == nil {
		return
	}

	endedAt := time.Now()
	if snap.EndTime != nil {
		endedAt = *snap.EndTime
	}

	finalScore := snap.Score
	if snap.FinalScore != nil {
		finalScore = *snap.FinalScore
	}

	call := history.Call{
		SessionID:    snap.ID,
		StartedAt:    snap.StartTime,
		EndedAt:      endedAt,
		Duration:     snap.DurationSeconds(),
		FinalScore:   finalScore,
		RiskBand:     string(snap.Band),
		Transcript:   snap.Transcript,
		RecordingURL: recordingURL,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.recorder.SaveCall(ctx, call); err != nil {
		e.logger.Error("Failed to save call history",
			slog.String("session_id", snap.ID),
			slog.String("error", err.Error()))
	}
}

// cleanupLoop ends calls that stopped sending media.
func (e *Engine) cleanupLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			expired := e.store.Expired(e.config.SessionTimeout, time.Now())
			for _, id := range expired {
				e.logger.Warn("Ending expired call", slog.String("session_id", id))
				if _, err := e.endCall(id, false); err != nil {
					e.logger.Error("Failed to end expired call",
						slog.String("session_id", id),
						slog.String("error", err.Error()))
				}
			}
		case <-e.ctx.Done():
			return
		}
	}
}
