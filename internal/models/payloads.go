package models

import "time"

// These structs define the JSON payloads for the HTTP API and for the tasks
// passed between the API and the pipeline workers.

// RecordingRequest is the input for POST /api/recording.
type RecordingRequest struct {
	CallID string `json:"callId"`
	URL    string `json:"url"`
}

// RecordingAcceptedResponse is returned when a pipeline run has been queued.
type RecordingAcceptedResponse struct {
	Message string `json:"message"`
	JobID   string `json:"jobId"`
}

// RecordingResponse is returned by the synchronous recording variant.
type RecordingResponse struct {
	Success     string   `json:"success"`
	DownloadURL string   `json:"downloadURL"`
	Updated     []string `json:"updated"`
	Skipped     []string `json:"skipped"`
}

// CallEndedRequest is the input for POST /api/call/{callId}/ended.
type CallEndedRequest struct {
	CallType string `json:"callType"`
}

// SignupRequest is the input for POST /api/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the input for POST /api/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the video SDK token the client connects with.
type LoginResponse struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// MeetingRequest is the input for POST /api/meeting and
// POST /api/meeting-add-participant.
type MeetingRequest struct {
	CallID string `json:"callId"`
	UserID string `json:"userId"`
}

// CallDetails describes a newly created meeting.
type CallDetails struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	DocID string `json:"docId"`
}

// MeetingResponse is the output of POST /api/meeting.
type MeetingResponse struct {
	CallDetails CallDetails `json:"callDetails"`
}

// LogView is one element of the GET /api/logs/{userId} response.
type LogView struct {
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// RecordingTaskPayload is queued for every recording URL to process.
type RecordingTaskPayload struct {
	JobID  string `json:"jobId"`
	CallID string `json:"callId"`
	URL    string `json:"url"`
}

// CallTaskPayload is queued when a call ends and its recordings still have to
// be looked up with the video provider.
type CallTaskPayload struct {
	JobID    string `json:"jobId"`
	CallID   string `json:"callId"`
	CallType string `json:"callType"`
}
