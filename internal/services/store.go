package services

import (
	"context"

	"github.com/Lllllllleong/callscribe/internal/models"
)

// DocumentStore is the persistence the services need. Lookups that match
// nothing return ErrMeetingNotFound, ErrUserNotFound or ErrJobNotFound, and
// creates that collide return ErrMeetingExists or ErrUserExists.
type DocumentStore interface {
	FindMeeting(ctx context.Context, callID string) (*models.Meeting, error)
	CreateMeeting(ctx context.Context, m *models.Meeting) error
	AddParticipant(ctx context.Context, callID, userID string) error
	AppendMeetingRecording(ctx context.Context, callID, url string) error

	FindUser(ctx context.Context, userID string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	// AppendLog adds entry to the user's logs. With dedupe set, an existing
	// entry for the same call is replaced instead.
	AppendLog(ctx context.Context, userID string, entry models.LogEntry, dedupe bool) error

	CreateJob(ctx context.Context, j *models.PipelineJob) error
	UpdateJob(ctx context.Context, jobID string, u models.JobUpdate) error
	GetJob(ctx context.Context, jobID string) (*models.PipelineJob, error)
}
