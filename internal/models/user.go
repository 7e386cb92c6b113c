package models

import "time"

// User is a registered account in the users collection. The document ID is the
// userId, which is derived from the local part of the email address.
type User struct {
	UserID       string     `firestore:"userId" json:"userId"`
	Email        string     `firestore:"email" json:"email"`
	PasswordHash string     `firestore:"password" json:"-"`
	Token        string     `firestore:"token" json:"token,omitempty"`
	Logs         []LogEntry `firestore:"logs" json:"logs"`
	CreatedAt    time.Time  `firestore:"createdAt,omitempty" json:"createdAt"`
}

// LogEntry references one transcript PDF in a user's log list.
type LogEntry struct {
	URL       string    `firestore:"url" json:"url"`
	CallID    string    `firestore:"callId,omitempty" json:"callId,omitempty"`
	CreatedAt time.Time `firestore:"createdAt" json:"createdAt"`
}

// AppendLogEntry returns logs with e added at the end. When dedupe is set and an
// entry for the same call already exists, that entry is replaced in place so
// the list keeps its insertion order and gains nothing.
func AppendLogEntry(logs []LogEntry, e LogEntry, dedupe bool) []LogEntry {
	if dedupe && e.CallID != "" {
		for i := range logs {
			if logs[i].CallID == e.CallID {
				out := make([]LogEntry, len(logs))
				copy(out, logs)
				out[i] = e
				return out
			}
		}
	}
	out := make([]LogEntry, 0, len(logs)+1)
	out = append(out, logs...)
	return append(out, e)
}
