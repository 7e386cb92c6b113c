package services

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrMeetingNotFound     = errors.New("meeting not found")
	ErrMeetingExists       = errors.New("meeting already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidTranscript   = errors.New("transcript has no utterance list")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrNoRecordings        = errors.New("no recordings available for call")
	ErrJobNotFound         = errors.New("job not found")
)
