package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Lllllllleong/callscribe/internal/models"
	"github.com/Lllllllleong/callscribe/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAccounts struct{}

func (stubAccounts) Signup(ctx context.Context, req *models.SignupRequest) (*models.User, error) {
	if req.Email == "taken@example.com" {
		return nil, services.ErrUserExists
	}
	return &models.User{UserID: services.UserIDFromEmail(req.Email)}, nil
}

func (stubAccounts) Login(ctx context.Context, req *models.LoginRequest) (*models.User, error) {
	if req.Password != "right" {
		return nil, services.ErrInvalidCredentials
	}
	return &models.User{UserID: "alice", Token: "tok"}, nil
}

type stubMeetings struct {
	added []models.MeetingRequest
}

func (s *stubMeetings) CreateMeeting(ctx context.Context, req *models.MeetingRequest) (*models.Meeting, error) {
	if req.CallID == "dup" {
		return nil, services.ErrMeetingExists
	}
	return &models.Meeting{CallID: req.CallID, Participants: []string{req.UserID}, Type: models.DefaultMeetingType}, nil
}

func (s *stubMeetings) AddParticipant(ctx context.Context, req *models.MeetingRequest) error {
	if req.CallID == "missing" {
		return services.ErrMeetingNotFound
	}
	s.added = append(s.added, *req)
	return nil
}

func (s *stubMeetings) Participants(ctx context.Context, callID string) ([]string, error) {
	if callID == "missing" {
		return nil, services.ErrMeetingNotFound
	}
	return []string{"alice", "bob"}, nil
}

func (s *stubMeetings) Logs(ctx context.Context, userID string) ([]models.LogView, error) {
	if userID == "nobody" {
		return nil, services.ErrUserNotFound
	}
	return []models.LogView{{URL: "https://x/1.pdf", CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}}, nil
}

type stubJobs struct {
	submitted []models.RecordingRequest
	calls     []string
	runErr    error
}

func (s *stubJobs) SubmitRecording(ctx context.Context, req *models.RecordingRequest) (*models.PipelineJob, error) {
	s.submitted = append(s.submitted, *req)
	return &models.PipelineJob{JobID: "job-1", Status: models.JobPending}, nil
}

func (s *stubJobs) SubmitCall(ctx context.Context, callID, callType string) (*models.PipelineJob, error) {
	s.calls = append(s.calls, callID+"/"+callType)
	return &models.PipelineJob{JobID: "job-2", Status: models.JobPending}, nil
}

func (s *stubJobs) GetJob(ctx context.Context, jobID string) (*models.PipelineJob, error) {
	if jobID != "job-1" {
		return nil, services.ErrJobNotFound
	}
	return &models.PipelineJob{JobID: "job-1", Status: models.JobDone, Updated: []string{"alice"}}, nil
}

func (s *stubJobs) RunRecording(ctx context.Context, req *models.RecordingRequest) (*models.PipelineResult, error) {
	if s.runErr != nil {
		return &models.PipelineResult{}, s.runErr
	}
	return &models.PipelineResult{CallID: req.CallID, DownloadURL: "https://dl/x.pdf", Updated: []string{"alice"}, Skipped: []string{"carol"}}, nil
}

type testServer struct {
	handler  http.Handler
	meetings *stubMeetings
	jobs     *stubJobs
}

func newTestServer() *testServer {
	ts := &testServer{meetings: &stubMeetings{}, jobs: &stubJobs{}}
	ts.handler = NewRouter(NewHandler(stubAccounts{}, ts.meetings, ts.jobs), []string{"http://localhost:3000"})
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	rec := newTestServer().do(http.MethodGet, "/api/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecordingAsyncReturnsJob(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(http.MethodPost, "/api/recording", `{"callId":"call-abc123","url":"https://cdn/rec.mp4"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	out := decodeBody[models.RecordingAcceptedResponse](t, rec)
	assert.Equal(t, "job-1", out.JobID)
	assert.Equal(t, []models.RecordingRequest{{CallID: "call-abc123", URL: "https://cdn/rec.mp4"}}, ts.jobs.submitted)
}

func TestRecordingSync(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(http.MethodPost, "/api/recording?sync=true", `{"callId":"call-abc123","url":"https://cdn/rec.mp4"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	out := decodeBody[models.RecordingResponse](t, rec)
	assert.Equal(t, "https://dl/x.pdf", out.DownloadURL)
	assert.Equal(t, []string{"alice"}, out.Updated)
	assert.Equal(t, []string{"carol"}, out.Skipped)
	assert.Empty(t, ts.jobs.submitted)
}

func TestRecordingSyncErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
		msg  string
	}{
		{err: fmt.Errorf("resolve: %w", services.ErrMeetingNotFound), code: http.StatusNotFound, msg: "Meeting not found"},
		{err: services.ErrInvalidTranscript, code: http.StatusInternalServerError, msg: "Transcript data is invalid"},
		{err: fmt.Errorf("upload: boom"), code: http.StatusInternalServerError, msg: "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			ts := newTestServer()
			ts.jobs.runErr = tt.err
			rec := ts.do(http.MethodPost, "/api/recording?sync=true", `{"callId":"c","url":"u"}`)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.msg, decodeBody[errorResponse](t, rec).Error)
		})
	}
}

func TestRecordingValidation(t *testing.T) {
	ts := newTestServer()
	for _, body := range []string{`{"callId":"c"}`, `{"url":"u"}`, `{"callId":"c","url":"u","extra":1}`, `{`} {
		rec := ts.do(http.MethodPost, "/api/recording", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, ts.jobs.submitted)
}

func TestCallEnded(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(http.MethodPost, "/api/call/call-1/ended", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = ts.do(http.MethodPost, "/api/call/call-2/ended", `{"callType":"livestream"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"call-1/", "call-2/livestream"}, ts.jobs.calls)
}

func TestGetJob(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(http.MethodGet, "/api/jobs/job-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.JobDone, decodeBody[models.PipelineJob](t, rec).Status)

	rec = ts.do(http.MethodGet, "/api/jobs/job-9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParticipantsBothRoutes(t *testing.T) {
	ts := newTestServer()
	for _, path := range []string{"/api/meeting/call-1/participants", "/api/meeting-participants?callId=call-1"} {
		rec := ts.do(http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, []string{"alice", "bob"}, decodeBody[[]string](t, rec))
	}
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/meeting/missing/participants", "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/meeting-participants", "").Code)
}

func TestLogsBothRoutes(t *testing.T) {
	ts := newTestServer()
	for _, path := range []string{"/api/logs/alice", "/api/fetchlogs?userId=alice"} {
		rec := ts.do(http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		logs := decodeBody[[]models.LogView](t, rec)
		require.Len(t, logs, 1)
		assert.Equal(t, "https://x/1.pdf", logs[0].URL)
	}
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/logs/nobody", "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/fetchlogs", "").Code)
}

func TestMeetingEndpoints(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(http.MethodPost, "/api/meeting", `{"callId":"call-1","userId":"alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	out := decodeBody[models.MeetingResponse](t, rec)
	assert.Equal(t, models.CallDetails{ID: "call-1", Type: "default", DocID: "call-1"}, out.CallDetails)

	assert.Equal(t, http.StatusConflict, ts.do(http.MethodPost, "/api/meeting", `{"callId":"dup","userId":"alice"}`).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/meeting", `{"callId":"call-1"}`).Code)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/meeting-add-participant", `{"callId":"call-1","userId":"bob"}`).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, "/api/meeting-add-participant", `{"callId":"missing","userId":"bob"}`).Code)
	assert.Len(t, ts.meetings.added, 1)
}

func TestAccountEndpoints(t *testing.T) {
	ts := newTestServer()
	rec := ts.do(http.MethodPost, "/api/signup", `{"email":"alice@example.com","password":"right"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "alice", decodeBody[messageResponse](t, rec).UserID)

	assert.Equal(t, http.StatusConflict, ts.do(http.MethodPost, "/api/signup", `{"email":"taken@example.com","password":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/signup", `{"email":"a@example.com"}`).Code)

	rec = ts.do(http.MethodPost, "/api/login", `{"email":"alice@example.com","password":"right"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.LoginResponse{UserID: "alice", Token: "tok"}, decodeBody[models.LoginResponse](t, rec))

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPost, "/api/login", `{"email":"alice@example.com","password":"wrong"}`).Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer()
	req := httptest.NewRequest(http.MethodOptions, "/api/recording", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
