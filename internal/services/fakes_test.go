package services

import (
	"context"
	"errors"
	"sync"

	"github.com/Lllllllleong/callscribe/internal/models"
	"github.com/Lllllllleong/callscribe/internal/queue"
)

// memStore is an in-memory DocumentStore that counts writes.
type memStore struct {
	mu       sync.Mutex
	meetings map[string]*models.Meeting
	users    map[string]*models.User
	jobs     map[string]*models.PipelineJob
	writes   int

	appendErr map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		meetings:  map[string]*models.Meeting{},
		users:     map[string]*models.User{},
		jobs:      map[string]*models.PipelineJob{},
		appendErr: map[string]error{},
	}
}

func (s *memStore) addUser(ids ...string) {
	for _, id := range ids {
		s.users[id] = &models.User{UserID: id, Email: id + "@example.com", Logs: []models.LogEntry{}}
	}
}

func (s *memStore) addMeeting(callID string, participants ...string) {
	s.meetings[callID] = &models.Meeting{CallID: callID, Participants: participants, Type: models.DefaultMeetingType}
}

func (s *memStore) logs(userID string) []models.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.LogEntry(nil), s.users[userID].Logs...)
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *memStore) FindMeeting(ctx context.Context, callID string) (*models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[callID]
	if !ok {
		return nil, ErrMeetingNotFound
	}
	cp := *m
	cp.Participants = append([]string(nil), m.Participants...)
	return &cp, nil
}

func (s *memStore) CreateMeeting(ctx context.Context, m *models.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[m.CallID]; ok {
		return ErrMeetingExists
	}
	s.writes++
	cp := *m
	s.meetings[m.CallID] = &cp
	return nil
}

func (s *memStore) AddParticipant(ctx context.Context, callID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[callID]
	if !ok {
		return ErrMeetingNotFound
	}
	s.writes++
	m.AddParticipant(userID)
	return nil
}

func (s *memStore) AppendMeetingRecording(ctx context.Context, callID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[callID]
	if !ok {
		return ErrMeetingNotFound
	}
	s.writes++
	for _, r := range m.Recordings {
		if r == url {
			return nil
		}
	}
	m.Recordings = append(m.Recordings, url)
	return nil
}

func (s *memStore) FindUser(ctx context.Context, userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.UserID]; ok {
		return ErrUserExists
	}
	s.writes++
	cp := *u
	s.users[u.UserID] = &cp
	return nil
}

func (s *memStore) AppendLog(ctx context.Context, userID string, entry models.LogEntry, dedupe bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendErr[userID]; err != nil {
		return err
	}
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	s.writes++
	u.Logs = models.AppendLogEntry(u.Logs, entry, dedupe)
	return nil
}

func (s *memStore) CreateJob(ctx context.Context, j *models.PipelineJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *j
	s.jobs[j.JobID] = &cp
	return nil
}

func (s *memStore) UpdateJob(ctx context.Context, jobID string, u models.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if u.Status != "" {
		j.Status = u.Status
	}
	if u.Stage != "" {
		j.Stage = u.Stage
	}
	if u.ErrorDetails != "" {
		j.ErrorDetails = u.ErrorDetails
	}
	if u.DownloadURL != "" {
		j.DownloadURL = u.DownloadURL
	}
	if u.Updated != nil {
		j.Updated = u.Updated
	}
	if u.Skipped != nil {
		j.Skipped = u.Skipped
	}
	return nil
}

func (s *memStore) GetJob(ctx context.Context, jobID string) (*models.PipelineJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

type fakeTranscriber struct {
	transcript *models.Transcript
	err        error
	calls      []string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioURL string, speakerLabels bool) (*models.Transcript, error) {
	f.calls = append(f.calls, audioURL)
	if !speakerLabels {
		return nil, errors.New("speaker labels must be requested")
	}
	return f.transcript, f.err
}

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	uploads int
	err     error
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (o *memObjects) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.uploads++
	o.objects[key] = data
	o.types[key] = contentType
	return nil
}

func (o *memObjects) DownloadURL(ctx context.Context, key string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.objects[key]; !ok {
		return "", errors.New("object does not exist")
	}
	return "https://storage.example/" + key + "?token=t", nil
}

type fakeRecordings struct {
	responses [][]models.Recording
	errs      []error
	calls     int
}

func (r *fakeRecordings) QueryRecordings(ctx context.Context, callType, callID string) ([]models.Recording, error) {
	i := r.calls
	r.calls++
	var err error
	if i < len(r.errs) {
		err = r.errs[i]
	}
	if i < len(r.responses) {
		return r.responses[i], err
	}
	return nil, err
}

type fakeRenderer struct{}

func (fakeRenderer) Render(callID string, utterances []models.Utterance) ([]byte, error) {
	return []byte("%PDF-1.4 " + callID), nil
}

type fakeTokens struct{}

func (fakeTokens) UserToken(userID string) (string, error) { return "token-" + userID, nil }

// recordingQueue captures enqueued tasks without running them.
type recordingQueue struct {
	tasks []queue.Task
	opts  []queue.EnqueueOption
	err   error
}

func (q *recordingQueue) Enqueue(ctx context.Context, t queue.Task, opts ...queue.EnqueueOption) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.tasks = append(q.tasks, t)
	if len(opts) > 0 {
		q.opts = append(q.opts, opts[0])
	}
	return opts[0].TaskID, nil
}

func (q *recordingQueue) Close() error { return nil }
