package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lllllllleong/callscribe/internal/models"
	"golang.org/x/crypto/bcrypt"
)

const passwordCost = 10

// TokenIssuer mints the token a user presents to the video SDK.
type TokenIssuer interface {
	UserToken(userID string) (string, error)
}

type AccountsFunction struct {
	store  DocumentStore
	tokens TokenIssuer
	now    func() time.Time
}

func NewAccounts(store DocumentStore, tokens TokenIssuer) *AccountsFunction {
	return &AccountsFunction{store: store, tokens: tokens, now: time.Now}
}

// UserIDFromEmail derives the userId from the local part of an email address.
func UserIDFromEmail(email string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	return local
}

// Signup creates a user with a bcrypt password hash and a video SDK token.
func (f *AccountsFunction) Signup(ctx context.Context, req *models.SignupRequest) (*models.User, error) {
	if req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	userID := UserIDFromEmail(req.Email)
	if userID == "" {
		return nil, fmt.Errorf("%w: email has no local part", ErrValidation)
	}
	logCtx := slog.With("userId", userID)

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), passwordCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	token, err := f.tokens.UserToken(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create user token: %w", err)
	}

	user := &models.User{
		UserID:       userID,
		Email:        req.Email,
		PasswordHash: string(hash),
		Token:        token,
		Logs:         []models.LogEntry{},
		CreatedAt:    f.now(),
	}
	if err := f.store.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, ErrUserExists) {
			logCtx.Error("Failed to create user", "error", err)
		}
		return nil, err
	}
	logCtx.Info("User signed up.")
	return user, nil
}

// Login checks the password and returns the stored user.
func (f *AccountsFunction) Login(ctx context.Context, req *models.LoginRequest) (*models.User, error) {
	if req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	user, err := f.store.FindUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.Token == "" {
		if user.Token, err = f.tokens.UserToken(user.UserID); err != nil {
			return nil, fmt.Errorf("failed to create user token: %w", err)
		}
	}
	return user, nil
}
