package gcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/callscribe/internal/models"
	"github.com/Lllllllleong/callscribe/internal/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Collections struct {
	Users    string
	Meetings string
	Jobs     string
}

// FirestoreStore implements services.DocumentStore. New meetings and users are
// keyed by callId and userId; lookups still query by field so documents
// written with generated IDs are found too.
type FirestoreStore struct {
	client *firestore.Client
	cols   Collections
}

var _ services.DocumentStore = (*FirestoreStore)(nil)

func NewFirestoreStore(client *firestore.Client, cols Collections) *FirestoreStore {
	if cols.Users == "" {
		cols.Users = "users"
	}
	if cols.Meetings == "" {
		cols.Meetings = "meetings"
	}
	if cols.Jobs == "" {
		cols.Jobs = "jobs"
	}
	return &FirestoreStore{client: client, cols: cols}
}

func (s *FirestoreStore) meetingQuery(callID string) firestore.Query {
	return s.client.Collection(s.cols.Meetings).Where("callId", "==", callID).Limit(1)
}

func (s *FirestoreStore) userQuery(userID string) firestore.Query {
	return s.client.Collection(s.cols.Users).Where("userId", "==", userID).Limit(1)
}

func (s *FirestoreStore) findOne(ctx context.Context, q firestore.Query) (*firestore.DocumentSnapshot, error) {
	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (s *FirestoreStore) FindMeeting(ctx context.Context, callID string) (*models.Meeting, error) {
	doc, err := s.findOne(ctx, s.meetingQuery(callID))
	if err != nil {
		return nil, fmt.Errorf("failed to query meeting %s: %w", callID, err)
	}
	if doc == nil {
		return nil, services.ErrMeetingNotFound
	}
	var m models.Meeting
	if err := doc.DataTo(&m); err != nil {
		return nil, fmt.Errorf("failed to decode meeting %s: %w", doc.Ref.ID, err)
	}
	return &m, nil
}

func (s *FirestoreStore) CreateMeeting(ctx context.Context, m *models.Meeting) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(s.meetingQuery(m.CallID)).GetAll()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return services.ErrMeetingExists
		}
		return tx.Create(s.client.Collection(s.cols.Meetings).Doc(m.CallID), m)
	})
	if status.Code(err) == codes.AlreadyExists {
		return services.ErrMeetingExists
	}
	if err != nil && !errors.Is(err, services.ErrMeetingExists) {
		return fmt.Errorf("failed to create meeting %s: %w", m.CallID, err)
	}
	return err
}

func (s *FirestoreStore) AddParticipant(ctx context.Context, callID, userID string) error {
	doc, err := s.findOne(ctx, s.meetingQuery(callID))
	if err != nil {
		return fmt.Errorf("failed to query meeting %s: %w", callID, err)
	}
	if doc == nil {
		return services.ErrMeetingNotFound
	}
	if _, err := doc.Ref.Update(ctx, []firestore.Update{
		{Path: "participants", Value: firestore.ArrayUnion(userID)},
	}); err != nil {
		return fmt.Errorf("failed to add participant %s to %s: %w", userID, callID, err)
	}
	return nil
}

func (s *FirestoreStore) AppendMeetingRecording(ctx context.Context, callID, url string) error {
	doc, err := s.findOne(ctx, s.meetingQuery(callID))
	if err != nil {
		return fmt.Errorf("failed to query meeting %s: %w", callID, err)
	}
	if doc == nil {
		return services.ErrMeetingNotFound
	}
	_, err = doc.Ref.Update(ctx, []firestore.Update{
		{Path: "recordings", Value: firestore.ArrayUnion(url)},
	})
	return err
}

func (s *FirestoreStore) FindUser(ctx context.Context, userID string) (*models.User, error) {
	doc, err := s.findOne(ctx, s.userQuery(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to query user %s: %w", userID, err)
	}
	if doc == nil {
		return nil, services.ErrUserNotFound
	}
	return decodeUser(doc)
}

func (s *FirestoreStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	q := s.client.Collection(s.cols.Users).Where("email", "==", email).Limit(1)
	doc, err := s.findOne(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	if doc == nil {
		return nil, services.ErrUserNotFound
	}
	return decodeUser(doc)
}

func (s *FirestoreStore) CreateUser(ctx context.Context, u *models.User) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(s.userQuery(u.UserID)).GetAll()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return services.ErrUserExists
		}
		return tx.Create(s.client.Collection(s.cols.Users).Doc(u.UserID), u)
	})
	if status.Code(err) == codes.AlreadyExists {
		return services.ErrUserExists
	}
	if err != nil && !errors.Is(err, services.ErrUserExists) {
		return fmt.Errorf("failed to create user %s: %w", u.UserID, err)
	}
	return err
}

// AppendLog rewrites the user's logs inside a transaction so concurrent
// pipeline runs cannot drop each other's entries.
func (s *FirestoreStore) AppendLog(ctx context.Context, userID string, entry models.LogEntry, dedupe bool) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.Documents(s.userQuery(userID)).GetAll()
		if err != nil {
			return fmt.Errorf("failed to query user %s: %w", userID, err)
		}
		if len(docs) == 0 {
			return services.ErrUserNotFound
		}
		doc := docs[0]
		logs := normalizeLogs(doc.Data()["logs"])
		logs = models.AppendLogEntry(logs, entry, dedupe)
		return tx.Update(doc.Ref, []firestore.Update{{Path: "logs", Value: logs}})
	})
}

func (s *FirestoreStore) CreateJob(ctx context.Context, j *models.PipelineJob) error {
	if _, err := s.client.Collection(s.cols.Jobs).Doc(j.JobID).Create(ctx, j); err != nil {
		return fmt.Errorf("failed to create job %s: %w", j.JobID, err)
	}
	return nil
}

func (s *FirestoreStore) UpdateJob(ctx context.Context, jobID string, u models.JobUpdate) error {
	_, err := s.client.Collection(s.cols.Jobs).Doc(jobID).Update(ctx, jobUpdates(u, time.Now()))
	if status.Code(err) == codes.NotFound {
		return services.ErrJobNotFound
	}
	return err
}

func (s *FirestoreStore) GetJob(ctx context.Context, jobID string) (*models.PipelineJob, error) {
	doc, err := s.client.Collection(s.cols.Jobs).Doc(jobID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, services.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	var j models.PipelineJob
	if err := doc.DataTo(&j); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", jobID, err)
	}
	return &j, nil
}

func jobUpdates(u models.JobUpdate, now time.Time) []firestore.Update {
	updates := []firestore.Update{{Path: "updatedAt", Value: now}}
	if u.Status != "" {
		updates = append(updates, firestore.Update{Path: "status", Value: u.Status})
	}
	if u.Stage != "" {
		updates = append(updates, firestore.Update{Path: "stage", Value: string(u.Stage)})
	}
	if u.ErrorDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: u.ErrorDetails})
	}
	if u.DownloadURL != "" {
		updates = append(updates, firestore.Update{Path: "downloadUrl", Value: u.DownloadURL})
	}
	if u.Updated != nil {
		updates = append(updates, firestore.Update{Path: "updated", Value: u.Updated})
	}
	if u.Skipped != nil {
		updates = append(updates, firestore.Update{Path: "skipped", Value: u.Skipped})
	}
	return updates
}

// decodeUser reads a user document by hand because older documents store
// logs as bare URL strings or with ISO timestamps.
func decodeUser(doc *firestore.DocumentSnapshot) (*models.User, error) {
	data := doc.Data()
	u := &models.User{
		UserID:       asString(data["userId"]),
		Email:        asString(data["email"]),
		PasswordHash: asString(data["password"]),
		Token:        asString(data["token"]),
		Logs:         normalizeLogs(data["logs"]),
		CreatedAt:    asTime(data["createdAt"]),
	}
	if u.UserID == "" {
		u.UserID = doc.Ref.ID
	}
	return u, nil
}

// normalizeLogs converts the stored logs array into entries. Elements may be
// maps with url, createdAt and callId, or plain URL strings.
func normalizeLogs(raw any) []models.LogEntry {
	items, _ := raw.([]any)
	out := make([]models.LogEntry, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case string:
			out = append(out, models.LogEntry{URL: v})
		case map[string]any:
			out = append(out, models.LogEntry{
				URL:       asString(v["url"]),
				CallID:    asString(v["callId"]),
				CreatedAt: asTime(v["createdAt"]),
			})
		}
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
