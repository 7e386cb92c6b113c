package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/callscribe/internal/models"
	"github.com/Lllllllleong/callscribe/internal/queue"
	"github.com/oklog/ulid/v2"
)

// Task types handled by the pipeline workers.
const (
	TaskRecording = "pipeline:recording"
	TaskCall      = "pipeline:call"
)

const (
	jobKindRecording = "recording"
	jobKindCall      = "call"
)

type JobsConfig struct {
	// RecordingDelay is how long after a call ends the recordings are first
	// queried. The provider needs time to finalize them.
	RecordingDelay time.Duration
	Queue          string
}

// JobsFunction records pipeline runs in the jobs collection and dispatches
// them through the task queue.
type JobsFunction struct {
	store    DocumentStore
	queue    queue.Client
	pipeline *PipelineFunction
	config   JobsConfig

	newID func() string
	now   func() time.Time
}

func NewJobs(cfg JobsConfig, store DocumentStore, q queue.Client, pipeline *PipelineFunction) *JobsFunction {
	return &JobsFunction{
		store:    store,
		queue:    q,
		pipeline: pipeline,
		config:   cfg,
		newID:    func() string { return ulid.Make().String() },
		now:      time.Now,
	}
}

// Register installs the task handlers on a queue server.
func (f *JobsFunction) Register(srv queue.Server) {
	srv.Register(TaskRecording, f.HandleRecordingTask)
	srv.Register(TaskCall, f.HandleCallTask)
}

// SubmitRecording writes a PENDING job for one recording URL and queues it.
func (f *JobsFunction) SubmitRecording(ctx context.Context, req *models.RecordingRequest) (*models.PipelineJob, error) {
	if req.CallID == "" || req.URL == "" {
		return nil, fmt.Errorf("%w: callId and url are required", ErrValidation)
	}
	job := f.newJob(jobKindRecording, req.CallID, models.StageRecordingAvailable)
	job.RecordingURL = req.URL
	payload := models.RecordingTaskPayload{JobID: job.JobID, CallID: req.CallID, URL: req.URL}
	if err := f.submit(ctx, job, TaskRecording, payload, 0); err != nil {
		return nil, err
	}
	return job, nil
}

// SubmitCall writes a PENDING job for a call that just ended. The task is
// delayed so the provider can finish the recordings.
func (f *JobsFunction) SubmitCall(ctx context.Context, callID, callType string) (*models.PipelineJob, error) {
	if callID == "" {
		return nil, fmt.Errorf("%w: callId is required", ErrValidation)
	}
	job := f.newJob(jobKindCall, callID, models.StageRecordingRequested)
	payload := models.CallTaskPayload{JobID: job.JobID, CallID: callID, CallType: callType}
	if err := f.submit(ctx, job, TaskCall, payload, f.config.RecordingDelay); err != nil {
		return nil, err
	}
	return job, nil
}

func (f *JobsFunction) GetJob(ctx context.Context, jobID string) (*models.PipelineJob, error) {
	if jobID == "" {
		return nil, fmt.Errorf("%w: jobId is required", ErrValidation)
	}
	return f.store.GetJob(ctx, jobID)
}

// RunRecording processes a recording on the caller's goroutine.
func (f *JobsFunction) RunRecording(ctx context.Context, req *models.RecordingRequest) (*models.PipelineResult, error) {
	return f.pipeline.Process(ctx, req)
}

func (f *JobsFunction) newJob(kind, callID string, stage models.PipelineStage) *models.PipelineJob {
	now := f.now()
	return &models.PipelineJob{
		JobID:     f.newID(),
		Kind:      kind,
		CallID:    callID,
		Status:    models.JobPending,
		Stage:     stage,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (f *JobsFunction) submit(ctx context.Context, job *models.PipelineJob, taskType string, payload any, delay time.Duration) error {
	logCtx := slog.With("jobId", job.JobID, "callId", job.CallID, "taskType", taskType)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}
	if err := f.store.CreateJob(ctx, job); err != nil {
		logCtx.Error("Failed to create job record", "error", err)
		return fmt.Errorf("failed to create job record: %w", err)
	}
	opt := queue.EnqueueOption{TaskID: job.JobID, ProcessIn: delay, Queue: f.config.Queue}
	if _, err := f.queue.Enqueue(ctx, queue.Task{Type: taskType, Payload: body}, opt); err != nil {
		return f.handleError(ctx, logCtx, job.JobID, job.Stage, "failed to enqueue task", err)
	}
	logCtx.Info("Pipeline job queued.", "delay", delay.String())
	return nil
}

// HandleRecordingTask is the worker side of SubmitRecording.
func (f *JobsFunction) HandleRecordingTask(ctx context.Context, t queue.Task) error {
	var p models.RecordingTaskPayload
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		slog.Error("Failed to unmarshal task payload", "taskType", t.Type, "error", err)
		return queue.Permanent(fmt.Errorf("json.Unmarshal: %w", err))
	}
	logCtx := slog.With("jobId", p.JobID, "callId", p.CallID)
	f.markRunning(ctx, logCtx, p.JobID, models.StageTranscriptionRequested)

	res, err := f.pipeline.Process(ctx, &models.RecordingRequest{CallID: p.CallID, URL: p.URL})
	if err != nil {
		return queue.Permanent(f.handleError(ctx, logCtx, p.JobID, res.Stage, "pipeline run failed", err))
	}
	f.markDone(ctx, logCtx, p.JobID, res)
	return nil
}

// HandleCallTask is the worker side of SubmitCall.
func (f *JobsFunction) HandleCallTask(ctx context.Context, t queue.Task) error {
	var p models.CallTaskPayload
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		slog.Error("Failed to unmarshal task payload", "taskType", t.Type, "error", err)
		return queue.Permanent(fmt.Errorf("json.Unmarshal: %w", err))
	}
	logCtx := slog.With("jobId", p.JobID, "callId", p.CallID)
	f.markRunning(ctx, logCtx, p.JobID, models.StageRecordingRequested)

	results, err := f.pipeline.ProcessCall(ctx, p.CallType, p.CallID)
	if err != nil {
		stage := models.StageRecordingRequested
		if len(results) > 0 {
			stage = results[len(results)-1].Stage
		}
		return queue.Permanent(f.handleError(ctx, logCtx, p.JobID, stage, "pipeline run failed", err))
	}
	f.markDone(ctx, logCtx, p.JobID, mergeResults(p.CallID, results))
	return nil
}

func (f *JobsFunction) markRunning(ctx context.Context, logCtx *slog.Logger, jobID string, stage models.PipelineStage) {
	if err := f.store.UpdateJob(ctx, jobID, models.JobUpdate{Status: models.JobRunning, Stage: stage}); err != nil {
		logCtx.Warn("Failed to mark job RUNNING", "error", err)
	}
}

func (f *JobsFunction) markDone(ctx context.Context, logCtx *slog.Logger, jobID string, res *models.PipelineResult) {
	update := models.JobUpdate{
		Status:      models.JobDone,
		Stage:       res.Stage,
		DownloadURL: res.DownloadURL,
		Updated:     res.Updated,
		Skipped:     res.Skipped,
	}
	if err := f.store.UpdateJob(ctx, jobID, update); err != nil {
		logCtx.Error("CRITICAL: Failed to update job status to DONE after a successful run.", "updateError", err)
		return
	}
	logCtx.Info("Pipeline job done.", "updated", res.Updated, "skipped", res.Skipped)
}

func (f *JobsFunction) handleError(ctx context.Context, logCtx *slog.Logger, jobID string, stage models.PipelineStage, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "stage", stage, "error", originalErr)
	update := models.JobUpdate{Status: models.JobFailed, Stage: stage, ErrorDetails: fullError}
	if err := f.store.UpdateJob(ctx, jobID, update); err != nil {
		logCtx.Error("CRITICAL: Failed to update job status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}

// mergeResults folds the per-recording results of a call into one.
func mergeResults(callID string, results []*models.PipelineResult) *models.PipelineResult {
	out := &models.PipelineResult{CallID: callID, Stage: models.StageLogsUpdated, Updated: []string{}, Skipped: []string{}}
	seenU, seenS := map[string]bool{}, map[string]bool{}
	for _, r := range results {
		if r.DownloadURL != "" {
			out.DownloadURL = r.DownloadURL
		}
		for _, u := range r.Updated {
			if !seenU[u] {
				seenU[u] = true
				out.Updated = append(out.Updated, u)
			}
		}
		for _, s := range r.Skipped {
			if !seenS[s] {
				seenS[s] = true
				out.Skipped = append(out.Skipped, s)
			}
		}
	}
	return out
}
