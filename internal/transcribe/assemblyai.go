// Package transcribe adapts the AssemblyAI API to the pipeline's Transcriber.
package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"
	"github.com/Lllllllleong/callscribe/internal/models"
	"github.com/Lllllllleong/callscribe/internal/services"
)

const (
	ModeSync = "sync"
	ModePoll = "poll"
)

// transcriptsAPI is the subset of aai.TranscriptService used here.
type transcriptsAPI interface {
	TranscribeFromURL(ctx context.Context, audioURL string, opts *aai.TranscriptOptionalParams) (aai.Transcript, error)
	SubmitFromURL(ctx context.Context, audioURL string, opts *aai.TranscriptOptionalParams) (aai.Transcript, error)
	Get(ctx context.Context, transcriptID string) (aai.Transcript, error)
}

type Config struct {
	APIKey string
	// Mode is ModeSync to let the SDK wait for completion, or ModePoll to
	// submit and then poll every PollInterval.
	Mode         string
	PollInterval time.Duration
}

type AssemblyAI struct {
	api          transcriptsAPI
	mode         string
	pollInterval time.Duration
}

var _ services.Transcriber = (*AssemblyAI)(nil)

func NewAssemblyAI(cfg Config) (*AssemblyAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ASSEMBLYAI_API_KEY must be set")
	}
	client := aai.NewClient(cfg.APIKey)
	return newAssemblyAI(client.Transcripts, cfg), nil
}

func newAssemblyAI(api transcriptsAPI, cfg Config) *AssemblyAI {
	if cfg.Mode == "" {
		cfg.Mode = ModeSync
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &AssemblyAI{api: api, mode: cfg.Mode, pollInterval: cfg.PollInterval}
}

func (a *AssemblyAI) Transcribe(ctx context.Context, audioURL string, speakerLabels bool) (*models.Transcript, error) {
	params := &aai.TranscriptOptionalParams{SpeakerLabels: aai.Bool(speakerLabels)}
	logCtx := slog.With("recordingUrl", audioURL, "mode", a.mode)

	var (
		t   aai.Transcript
		err error
	)
	if a.mode == ModePoll {
		t, err = a.submitAndPoll(ctx, logCtx, audioURL, params)
	} else {
		t, err = a.api.TranscribeFromURL(ctx, audioURL, params)
	}
	if err != nil {
		return nil, err
	}
	if t.Status == aai.TranscriptStatusError {
		return nil, fmt.Errorf("%w: %s", services.ErrTranscriptionFailed, deref(t.Error))
	}
	if t.Status != aai.TranscriptStatusCompleted {
		return nil, fmt.Errorf("%w: unexpected status %q", services.ErrTranscriptionFailed, t.Status)
	}
	logCtx.Info("Transcription completed.", "transcriptId", deref(t.ID))
	return toTranscript(t), nil
}

// submitAndPoll queues the transcript and checks on it until it leaves the
// queued and processing states.
func (a *AssemblyAI) submitAndPoll(ctx context.Context, logCtx *slog.Logger, audioURL string, params *aai.TranscriptOptionalParams) (aai.Transcript, error) {
	t, err := a.api.SubmitFromURL(ctx, audioURL, params)
	if err != nil {
		return t, fmt.Errorf("%w: submit: %v", services.ErrTranscriptionFailed, err)
	}
	id := deref(t.ID)
	logCtx.Info("Transcription submitted.", "transcriptId", id)

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	for t.Status == aai.TranscriptStatusQueued || t.Status == aai.TranscriptStatusProcessing {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return t, ctx.Err()
		}
		if t, err = a.api.Get(ctx, id); err != nil {
			return t, fmt.Errorf("%w: poll %s: %v", services.ErrTranscriptionFailed, id, err)
		}
	}
	return t, nil
}

// toTranscript maps the SDK transcript. A missing utterance list stays nil.
func toTranscript(t aai.Transcript) *models.Transcript {
	out := &models.Transcript{ID: deref(t.ID)}
	if t.Utterances == nil {
		return out
	}
	out.Utterances = make([]models.Utterance, 0, len(t.Utterances))
	for _, u := range t.Utterances {
		out.Utterances = append(out.Utterances, models.Utterance{Speaker: deref(u.Speaker), Text: deref(u.Text)})
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
