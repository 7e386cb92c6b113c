package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/callscribe/internal/models"
	"github.com/Lllllllleong/callscribe/internal/transcript"
)

// RecordingProvider lists the finished recordings of a call.
type RecordingProvider interface {
	QueryRecordings(ctx context.Context, callType, callID string) ([]models.Recording, error)
}

// Transcriber turns a recording URL into speaker-labelled utterances.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string, speakerLabels bool) (*models.Transcript, error)
}

// ObjectStore holds the rendered transcripts.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	DownloadURL(ctx context.Context, key string) (string, error)
}

// Renderer lays out a transcript document.
type Renderer interface {
	Render(callID string, utterances []models.Utterance) ([]byte, error)
}

const (
	// LogModeDedupe replaces an existing log entry for the same call.
	LogModeDedupe = "dedupe"
	// LogModeAppend adds a new entry on every run.
	LogModeAppend = "append"
)

type PipelineConfig struct {
	CallType        string
	FetchAttempts   int
	FetchBackoff    time.Duration
	FetchMaxBackoff time.Duration
	LogMode         string
}

// PipelineFunction runs the post-call steps: transcribe, render, upload and
// distribute the download URL to every participant.
type PipelineFunction struct {
	store       DocumentStore
	recordings  RecordingProvider
	transcriber Transcriber
	objects     ObjectStore
	renderer    Renderer
	config      PipelineConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPipeline(cfg PipelineConfig, store DocumentStore, recordings RecordingProvider, transcriber Transcriber, objects ObjectStore, renderer Renderer) *PipelineFunction {
	if cfg.CallType == "" {
		cfg.CallType = models.DefaultMeetingType
	}
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = 3
	}
	if cfg.FetchBackoff <= 0 {
		cfg.FetchBackoff = 5 * time.Second
	}
	if cfg.FetchMaxBackoff < cfg.FetchBackoff {
		cfg.FetchMaxBackoff = cfg.FetchBackoff
	}
	if cfg.LogMode == "" {
		cfg.LogMode = LogModeDedupe
	}
	return &PipelineFunction{
		store:       store,
		recordings:  recordings,
		transcriber: transcriber,
		objects:     objects,
		renderer:    renderer,
		config:      cfg,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Process runs the pipeline for one recording. The returned result is never
// nil and carries the last stage reached, also when an error is returned.
func (f *PipelineFunction) Process(ctx context.Context, req *models.RecordingRequest) (*models.PipelineResult, error) {
	res := &models.PipelineResult{
		CallID:  req.CallID,
		Stage:   models.StageRecordingAvailable,
		Updated: []string{},
		Skipped: []string{},
	}
	if req.CallID == "" || req.URL == "" {
		return res, fmt.Errorf("%w: callId and url are required", ErrValidation)
	}
	logCtx := slog.With("callId", req.CallID, "recordingUrl", req.URL)
	logCtx.Info("Starting transcription pipeline.")

	res.Stage = models.StageTranscriptionRequested
	tr, err := f.transcriber.Transcribe(ctx, req.URL, true)
	if err != nil {
		logCtx.Error("Transcription failed", "error", err)
		return res, fmt.Errorf("transcription failed: %w", err)
	}
	if tr == nil || tr.Utterances == nil {
		logCtx.Error("Transcription returned no utterance list")
		return res, ErrInvalidTranscript
	}
	res.Stage = models.StageTranscriptReceived
	logCtx.Info("Transcript received.", "utterances", len(tr.Utterances))

	pdf, err := f.renderer.Render(req.CallID, tr.Utterances)
	if err != nil {
		logCtx.Error("Failed to render transcript", "error", err)
		return res, fmt.Errorf("failed to render transcript: %w", err)
	}
	res.Stage = models.StagePdfRendered

	// The meeting is resolved before anything is written so an unknown call
	// leaves no artifact behind.
	meeting, err := f.store.FindMeeting(ctx, req.CallID)
	if err != nil {
		logCtx.Error("Failed to resolve meeting", "error", err)
		return res, fmt.Errorf("failed to resolve meeting %s: %w", req.CallID, err)
	}
	res.Stage = models.StageParticipantsResolved

	key := transcript.ObjectKey(req.CallID)
	if err := f.objects.Upload(ctx, key, pdf, transcript.ContentType); err != nil {
		logCtx.Error("Failed to upload transcript", "objectKey", key, "error", err)
		return res, fmt.Errorf("failed to upload transcript: %w", err)
	}
	downloadURL, err := f.objects.DownloadURL(ctx, key)
	if err != nil {
		logCtx.Error("Failed to get download URL", "objectKey", key, "error", err)
		return res, fmt.Errorf("failed to get download URL: %w", err)
	}
	res.DownloadURL = downloadURL
	res.Stage = models.StagePdfUploaded
	logCtx.Info("Transcript uploaded.", "objectKey", key)

	entry := models.LogEntry{URL: downloadURL, CallID: req.CallID, CreatedAt: f.now()}
	dedupe := f.config.LogMode != LogModeAppend
	for _, userID := range meeting.Participants {
		if err := f.store.AppendLog(ctx, userID, entry, dedupe); err != nil {
			logCtx.Warn("Skipping participant log update", "userId", userID, "error", err)
			res.Skipped = append(res.Skipped, userID)
			continue
		}
		res.Updated = append(res.Updated, userID)
	}
	res.Stage = models.StageLogsUpdated

	if err := f.store.AppendMeetingRecording(ctx, req.CallID, req.URL); err != nil {
		logCtx.Warn("Failed to record recording URL on meeting", "error", err)
	}

	logCtx.Info("Transcription pipeline complete.", "updated", res.Updated, "skipped", res.Skipped)
	return res, nil
}

// ProcessCall looks up the recordings of a finished call and runs Process for
// each of them. A failing recording does not stop the others; their errors are
// joined.
func (f *PipelineFunction) ProcessCall(ctx context.Context, callType, callID string) ([]*models.PipelineResult, error) {
	if callID == "" {
		return nil, fmt.Errorf("%w: callId is required", ErrValidation)
	}
	if callType == "" {
		callType = f.config.CallType
	}
	logCtx := slog.With("callId", callID, "callType", callType)

	recordings, err := f.fetchRecordings(ctx, logCtx, callType, callID)
	if err != nil {
		return nil, err
	}

	var (
		results []*models.PipelineResult
		errs    []error
	)
	for _, rec := range recordings {
		res, err := f.Process(ctx, &models.RecordingRequest{CallID: callID, URL: rec.URL})
		results = append(results, res)
		if err != nil {
			errs = append(errs, fmt.Errorf("recording %s: %w", rec.Filename, err))
		}
	}
	return results, errors.Join(errs...)
}

// fetchRecordings queries the provider until it reports at least one recording,
// backing off between attempts.
func (f *PipelineFunction) fetchRecordings(ctx context.Context, logCtx *slog.Logger, callType, callID string) ([]models.Recording, error) {
	backoff := f.config.FetchBackoff
	var lastErr error

	for i := 0; i < f.config.FetchAttempts; i++ {
		recs, err := f.recordings.QueryRecordings(ctx, callType, callID)
		if err == nil && len(recs) > 0 {
			logCtx.Info("Recordings available.", "count", len(recs), "attempt", i+1)
			return recs, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = ErrNoRecordings
		}
		if i == f.config.FetchAttempts-1 {
			break
		}

		logCtx.Warn(
			"Recording fetch failed, will retry.",
			"attempt", i+1,
			"maxAttempts", f.config.FetchAttempts,
			"backoff", backoff.String(),
			"error", lastErr,
		)
		if err := f.sleep(ctx, backoff); err != nil {
			logCtx.Error("Context cancelled during backoff. Aborting retries.", "error", err)
			return nil, err
		}
		backoff = min(backoff*2, f.config.FetchMaxBackoff)
	}

	logCtx.Error("Recording fetch failed after all attempts.", "error", lastErr)
	if errors.Is(lastErr, ErrNoRecordings) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %w", ErrNoRecordings, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
