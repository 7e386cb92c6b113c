package models

import "time"

// Job statuses, stored in the jobs collection.
const (
	JobPending = "PENDING"
	JobRunning = "RUNNING"
	JobDone    = "DONE"
	JobFailed  = "FAILED"
)

// PipelineStage names the last step a pipeline run reached.
type PipelineStage string

const (
	StageCallEnded              PipelineStage = "CallEnded"
	StageRecordingRequested     PipelineStage = "RecordingRequested"
	StageRecordingAvailable     PipelineStage = "RecordingAvailable"
	StageTranscriptionRequested PipelineStage = "TranscriptionRequested"
	StageTranscriptReceived     PipelineStage = "TranscriptReceived"
	StagePdfRendered            PipelineStage = "PdfRendered"
	StageParticipantsResolved   PipelineStage = "ParticipantsResolved"
	StagePdfUploaded            PipelineStage = "PdfUploaded"
	StageLogsUpdated            PipelineStage = "LogsUpdated"
)

// PipelineJob is the durable record of one detached pipeline run. It lets a
// client poll for the outcome instead of losing failures after a 202.
type PipelineJob struct {
	JobID        string        `firestore:"jobId" json:"jobId"`
	Kind         string        `firestore:"kind" json:"kind"`
	CallID       string        `firestore:"callId" json:"callId"`
	RecordingURL string        `firestore:"recordingUrl,omitempty" json:"recordingUrl,omitempty"`
	Status       string        `firestore:"status" json:"status"`
	Stage        PipelineStage `firestore:"stage,omitempty" json:"stage,omitempty"`
	ErrorDetails string        `firestore:"errorDetails,omitempty" json:"errorDetails,omitempty"`
	DownloadURL  string        `firestore:"downloadUrl,omitempty" json:"downloadUrl,omitempty"`
	Updated      []string      `firestore:"updated,omitempty" json:"updated,omitempty"`
	Skipped      []string      `firestore:"skipped,omitempty" json:"skipped,omitempty"`
	CreatedAt    time.Time     `firestore:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time     `firestore:"updatedAt" json:"updatedAt"`
}

// JobUpdate carries the fields written when a job changes status. Empty
// fields are left untouched.
type JobUpdate struct {
	Status       string
	Stage        PipelineStage
	ErrorDetails string
	DownloadURL  string
	Updated      []string
	Skipped      []string
}

// PipelineResult is the aggregate outcome of a run for one recording.
type PipelineResult struct {
	CallID      string        `json:"callId"`
	DownloadURL string        `json:"downloadURL,omitempty"`
	Stage       PipelineStage `json:"stage"`
	Updated     []string      `json:"updated"`
	Skipped     []string      `json:"skipped"`
}
