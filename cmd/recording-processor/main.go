package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/callscribe/internal/app"
	"github.com/Lllllllleong/callscribe/internal/config"
	"github.com/Lllllllleong/callscribe/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	appInstance *app.App
	once        sync.Once
	initErr     error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("ProcessRecordingEvent", processRecordingEvent)
}

// main is required by the Go Functions Framework.
func main() {}

// processRecordingEvent runs the pipeline for a {callId, url} Pub/Sub message.
func processRecordingEvent(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		var cfg config.Config
		if cfg, initErr = config.Load(); initErr != nil {
			return
		}
		appInstance, initErr = app.New(context.Background(), cfg)
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	req, err := services.DecodeRecordingEvent(e.Data())
	if err != nil {
		// A malformed message never succeeds, so it is acknowledged.
		slog.Error("Dropping malformed event", "eventId", e.ID(), "error", err, "data", string(e.Data()))
		return nil
	}

	res, err := appInstance.Pipeline.Process(ctx, req)
	if err != nil {
		if errors.Is(err, services.ErrMeetingNotFound) || errors.Is(err, services.ErrInvalidTranscript) {
			slog.Error("Pipeline halted", "callId", req.CallID, "stage", res.Stage, "error", err)
			return nil
		}
		return err
	}
	slog.Info("Recording processed.", "callId", req.CallID, "updated", res.Updated, "skipped", res.Skipped)
	return nil
}
