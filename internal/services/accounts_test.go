package services

import (
	"context"
	"testing"
	"time"

	"github.com/Lllllllleong/callscribe/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestUserIDFromEmail(t *testing.T) {
	assert.Equal(t, "alice", UserIDFromEmail("alice@example.com"))
	assert.Equal(t, "bob", UserIDFromEmail(" bob "))
	assert.Equal(t, "", UserIDFromEmail("@example.com"))
}

func TestSignupAndLogin(t *testing.T) {
	store := newMemStore()
	accounts := NewAccounts(store, fakeTokens{})
	ctx := context.Background()

	u, err := accounts.Signup(ctx, &models.SignupRequest{Email: "alice@example.com", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.UserID)
	assert.Equal(t, "token-alice", u.Token)
	assert.NotEqual(t, "s3cret", u.PasswordHash)
	cost, err := bcrypt.Cost([]byte(u.PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, 10, cost)

	_, err = accounts.Signup(ctx, &models.SignupRequest{Email: "alice@example.com", Password: "other"})
	assert.ErrorIs(t, err, ErrUserExists)

	logged, err := accounts.Login(ctx, &models.LoginRequest{Email: "alice@example.com", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "alice", logged.UserID)
	assert.Equal(t, "token-alice", logged.Token)

	_, err = accounts.Login(ctx, &models.LoginRequest{Email: "alice@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = accounts.Login(ctx, &models.LoginRequest{Email: "nobody@example.com", Password: "s3cret"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignupValidation(t *testing.T) {
	accounts := NewAccounts(newMemStore(), fakeTokens{})
	_, err := accounts.Signup(context.Background(), &models.SignupRequest{Email: "alice@example.com"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = accounts.Login(context.Background(), &models.LoginRequest{Password: "x"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMeetings(t *testing.T) {
	store := newMemStore()
	store.addUser("alice")
	meetings := NewMeetings(store)
	meetings.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	m, err := meetings.CreateMeeting(ctx, &models.MeetingRequest{CallID: "call-1", UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, m.Participants)
	assert.Equal(t, "default", m.Type)

	_, err = meetings.CreateMeeting(ctx, &models.MeetingRequest{CallID: "call-1", UserID: "bob"})
	assert.ErrorIs(t, err, ErrMeetingExists)

	require.NoError(t, meetings.AddParticipant(ctx, &models.MeetingRequest{CallID: "call-1", UserID: "bob"}))
	require.NoError(t, meetings.AddParticipant(ctx, &models.MeetingRequest{CallID: "call-1", UserID: "bob"}))
	participants, err := meetings.Participants(ctx, "call-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, participants)

	err = meetings.AddParticipant(ctx, &models.MeetingRequest{CallID: "call-x", UserID: "bob"})
	assert.ErrorIs(t, err, ErrMeetingNotFound)
	_, err = meetings.Participants(ctx, "call-x")
	assert.ErrorIs(t, err, ErrMeetingNotFound)
	_, err = meetings.Participants(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLogs(t *testing.T) {
	store := newMemStore()
	store.addUser("alice")
	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store.users["alice"].Logs = []models.LogEntry{
		{URL: "https://x/1.pdf", CallID: "c1", CreatedAt: t0},
		{URL: "https://x/2.pdf", CallID: "c2", CreatedAt: t0.Add(time.Hour)},
	}
	meetings := NewMeetings(store)

	logs, err := meetings.Logs(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []models.LogView{
		{URL: "https://x/1.pdf", CreatedAt: t0},
		{URL: "https://x/2.pdf", CreatedAt: t0.Add(time.Hour)},
	}, logs)

	_, err = meetings.Logs(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = meetings.Logs(context.Background(), "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDecodeRecordingEvent(t *testing.T) {
	// {"callId":"call-1","url":"https://cdn/rec.mp4"} in base64.
	data := []byte(`{"message":{"data":"eyJjYWxsSWQiOiJjYWxsLTEiLCJ1cmwiOiJodHRwczovL2Nkbi9yZWMubXA0In0="},"subscription":"s"}`)
	req, err := DecodeRecordingEvent(data)
	require.NoError(t, err)
	assert.Equal(t, &models.RecordingRequest{CallID: "call-1", URL: "https://cdn/rec.mp4"}, req)

	_, err = DecodeRecordingEvent([]byte(`{"message":{"data":"e30="}}`))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = DecodeRecordingEvent([]byte(`nope`))
	assert.Error(t, err)
}
