// Package app wires configuration, clients and services together for the
// binaries under cmd/.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/callscribe/internal/api"
	"github.com/Lllllllleong/callscribe/internal/config"
	"github.com/Lllllllleong/callscribe/internal/gcp"
	"github.com/Lllllllleong/callscribe/internal/queue"
	"github.com/Lllllllleong/callscribe/internal/services"
	"github.com/Lllllllleong/callscribe/internal/stream"
	"github.com/Lllllllleong/callscribe/internal/transcribe"
	"github.com/Lllllllleong/callscribe/internal/transcript"
)

type App struct {
	Config   config.Config
	Pipeline *services.PipelineFunction
	Jobs     *services.JobsFunction
	Router   http.Handler

	// Dispatcher is set when tasks run in this process instead of on Redis.
	Dispatcher *queue.InProcess

	closers []func() error
}

// New builds every dependency from cfg. Tasks go to Redis when REDIS_URL is
// set and run in-process otherwise.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, firestoreClient.Close)

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	a.closers = append(a.closers, storageClient.Close)

	streamClient, err := stream.NewClient(stream.Config{
		APIKey:    cfg.StreamAPIKey,
		APISecret: cfg.StreamAPISecret,
		BaseURL:   cfg.StreamBaseURL,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	transcriber, err := a.newTranscriber(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	store := gcp.NewFirestoreStore(firestoreClient, gcp.Collections{
		Users:    cfg.UsersCollection,
		Meetings: cfg.MeetingsCollection,
		Jobs:     cfg.JobsCollection,
	})
	objects := gcp.NewGCSObjectStore(storageClient, cfg.StorageBucket)

	renderer := transcript.NewRenderer()
	if cfg.TranscriptFontPath != "" {
		font, err := os.ReadFile(cfg.TranscriptFontPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to read transcript font: %w", err)
		}
		renderer.UnicodeFont = font
	}

	a.Pipeline = services.NewPipeline(services.PipelineConfig{
		CallType:        cfg.StreamCallType,
		FetchAttempts:   cfg.RecordingFetchAttempts,
		FetchBackoff:    cfg.RecordingFetchBackoff,
		FetchMaxBackoff: cfg.RecordingFetchMaxBackoff,
		LogMode:         cfg.LogAppendMode,
	}, store, streamClient, transcriber, objects, renderer)

	var client queue.Client
	if cfg.RedisURL != "" {
		ac, err := queue.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, ac.Close)
		client = ac
	} else {
		a.Dispatcher = queue.NewInProcess()
		client = a.Dispatcher
	}
	a.Jobs = services.NewJobs(services.JobsConfig{RecordingDelay: cfg.RecordingDelay}, store, client, a.Pipeline)
	if a.Dispatcher != nil {
		a.Jobs.Register(a.Dispatcher)
	}

	h := api.NewHandler(services.NewAccounts(store, streamClient), services.NewMeetings(store), a.Jobs)
	a.Router = api.NewRouter(h, cfg.AllowedOrigins)

	slog.Info("Application initialized.",
		"transcriber", cfg.Transcriber,
		"queue", queueKind(cfg),
		"logAppendMode", cfg.LogAppendMode,
	)
	return a, nil
}

func (a *App) newTranscriber(ctx context.Context, cfg config.Config) (services.Transcriber, error) {
	if cfg.Transcriber == config.TranscriberVertex {
		vc, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexRegion, cfg.VertexModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		a.closers = append(a.closers, vc.Close)
		return gcp.NewVertexTranscriber(vc), nil
	}
	return transcribe.NewAssemblyAI(transcribe.Config{
		APIKey:       cfg.AssemblyAIKey,
		Mode:         cfg.TranscriptionMode,
		PollInterval: cfg.TranscriptPollInterval,
	})
}

// Close drains in-process tasks and releases the clients in reverse order.
func (a *App) Close() error {
	var errs []error
	if a.Dispatcher != nil {
		errs = append(errs, a.Dispatcher.Stop(context.Background()))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func queueKind(cfg config.Config) string {
	if cfg.RedisURL != "" {
		return "asynq"
	}
	return "inprocess"
}
