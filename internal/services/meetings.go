package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/callscribe/internal/models"
)

type MeetingsFunction struct {
	store DocumentStore
	now   func() time.Time
}

func NewMeetings(store DocumentStore) *MeetingsFunction {
	return &MeetingsFunction{store: store, now: time.Now}
}

// CreateMeeting registers a call with its creator as the first participant.
// A second meeting with the same callId is rejected with ErrMeetingExists.
func (f *MeetingsFunction) CreateMeeting(ctx context.Context, req *models.MeetingRequest) (*models.Meeting, error) {
	if req.CallID == "" || req.UserID == "" {
		return nil, fmt.Errorf("%w: callId and userId are required", ErrValidation)
	}
	m := &models.Meeting{
		CallID:       req.CallID,
		Participants: []string{req.UserID},
		Type:         models.DefaultMeetingType,
		CreatedAt:    f.now(),
	}
	if err := f.store.CreateMeeting(ctx, m); err != nil {
		return nil, err
	}
	slog.Info("Meeting created.", "callId", m.CallID, "userId", req.UserID)
	return m, nil
}

func (f *MeetingsFunction) AddParticipant(ctx context.Context, req *models.MeetingRequest) error {
	if req.CallID == "" || req.UserID == "" {
		return fmt.Errorf("%w: callId and userId are required", ErrValidation)
	}
	return f.store.AddParticipant(ctx, req.CallID, req.UserID)
}

func (f *MeetingsFunction) Participants(ctx context.Context, callID string) ([]string, error) {
	if callID == "" {
		return nil, fmt.Errorf("%w: callId is required", ErrValidation)
	}
	m, err := f.store.FindMeeting(ctx, callID)
	if err != nil {
		return nil, err
	}
	if m.Participants == nil {
		return []string{}, nil
	}
	return m.Participants, nil
}

// Logs returns a user's transcript links in insertion order.
func (f *MeetingsFunction) Logs(ctx context.Context, userID string) ([]models.LogView, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrValidation)
	}
	u, err := f.store.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.LogView, 0, len(u.Logs))
	for _, l := range u.Logs {
		out = append(out, models.LogView{URL: l.URL, CreatedAt: l.CreatedAt})
	}
	return out, nil
}
