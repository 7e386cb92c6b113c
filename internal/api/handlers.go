package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Lllllllleong/callscribe/internal/models"
	"github.com/Lllllllleong/callscribe/internal/services"
	"github.com/go-chi/chi/v5"
)

type Accounts interface {
	Signup(ctx context.Context, req *models.SignupRequest) (*models.User, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.User, error)
}

type Meetings interface {
	CreateMeeting(ctx context.Context, req *models.MeetingRequest) (*models.Meeting, error)
	AddParticipant(ctx context.Context, req *models.MeetingRequest) error
	Participants(ctx context.Context, callID string) ([]string, error)
	Logs(ctx context.Context, userID string) ([]models.LogView, error)
}

type Jobs interface {
	SubmitRecording(ctx context.Context, req *models.RecordingRequest) (*models.PipelineJob, error)
	SubmitCall(ctx context.Context, callID, callType string) (*models.PipelineJob, error)
	GetJob(ctx context.Context, jobID string) (*models.PipelineJob, error)
	RunRecording(ctx context.Context, req *models.RecordingRequest) (*models.PipelineResult, error)
}

type Handler struct {
	accounts Accounts
	meetings Meetings
	jobs     Jobs
}

func NewHandler(accounts Accounts, meetings Meetings, jobs Jobs) *Handler {
	return &Handler{accounts: accounts, meetings: meetings, jobs: jobs}
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var in models.SignupRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.Email == "" || in.Password == "" {
		respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	u, err := h.accounts.Signup(r.Context(), &in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, messageResponse{Message: "User created successfully", UserID: u.UserID})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in models.LoginRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.Email == "" || in.Password == "" {
		respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	u, err := h.accounts.Login(r.Context(), &in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.LoginResponse{UserID: u.UserID, Token: u.Token})
}

func (h *Handler) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	var in models.MeetingRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	in.CallID, in.UserID = normalizeID(in.CallID), normalizeID(in.UserID)
	if in.CallID == "" || in.UserID == "" {
		respondError(w, http.StatusBadRequest, "Call ID and User ID are required")
		return
	}
	m, err := h.meetings.CreateMeeting(r.Context(), &in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, models.MeetingResponse{
		CallDetails: models.CallDetails{ID: m.CallID, Type: m.Type, DocID: m.CallID},
	})
}

func (h *Handler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	var in models.MeetingRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	in.CallID, in.UserID = normalizeID(in.CallID), normalizeID(in.UserID)
	if in.CallID == "" || in.UserID == "" {
		respondError(w, http.StatusBadRequest, "Call ID and User ID are required")
		return
	}
	if err := h.meetings.AddParticipant(r.Context(), &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Success: "Participant added successfully"})
}

// Participants serves both /meeting/{callId}/participants and
// /meeting-participants?callId=.
func (h *Handler) Participants(w http.ResponseWriter, r *http.Request) {
	callID := normalizeID(chi.URLParam(r, "callId"))
	if callID == "" {
		callID = normalizeID(r.URL.Query().Get("callId"))
	}
	if callID == "" {
		respondError(w, http.StatusBadRequest, "Call ID is required")
		return
	}
	participants, err := h.meetings.Participants(r.Context(), callID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, participants)
}

// Recording queues a pipeline run and answers 202 with the job id. With
// ?sync=true the run happens inside the request and the outcome is returned.
func (h *Handler) Recording(w http.ResponseWriter, r *http.Request) {
	var in models.RecordingRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	in.CallID = normalizeID(in.CallID)
	if in.CallID == "" || in.URL == "" {
		respondError(w, http.StatusBadRequest, "Call ID and URL are required")
		return
	}

	if sync, _ := strconv.ParseBool(r.URL.Query().Get("sync")); sync {
		res, err := h.jobs.RunRecording(r.Context(), &in)
		if errors.Is(err, services.ErrInvalidTranscript) {
			respondError(w, http.StatusInternalServerError, "Transcript data is invalid")
			return
		}
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, models.RecordingResponse{
			Success:     "Recording data saved successfully",
			DownloadURL: res.DownloadURL,
			Updated:     res.Updated,
			Skipped:     res.Skipped,
		})
		return
	}

	job, err := h.jobs.SubmitRecording(r.Context(), &in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, models.RecordingAcceptedResponse{Message: "Recording processing started", JobID: job.JobID})
}

// CallEnded starts the pipeline for a finished call. The body is optional.
func (h *Handler) CallEnded(w http.ResponseWriter, r *http.Request) {
	callID := normalizeID(chi.URLParam(r, "callId"))
	var in models.CallEndedRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &in) {
		return
	}
	job, err := h.jobs.SubmitCall(r.Context(), callID, in.CallType)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, models.RecordingAcceptedResponse{Message: "Call processing scheduled", JobID: job.JobID})
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(r.Context(), normalizeID(chi.URLParam(r, "jobId")))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// Logs serves both /logs/{userId} and /fetchlogs?userId=.
func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	userID := normalizeID(chi.URLParam(r, "userId"))
	if userID == "" {
		userID = normalizeID(r.URL.Query().Get("userId"))
	}
	if userID == "" {
		respondError(w, http.StatusBadRequest, "User ID is required")
		return
	}
	logs, err := h.meetings.Logs(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}
