package models

import "time"

// DefaultMeetingType is the type stored on meetings created through the API.
const DefaultMeetingType = "default"

// Meeting tracks a call created through the API. CallID is the external
// identifier shared with the video provider and doubles as the document ID.
type Meeting struct {
	CallID       string    `firestore:"callId" json:"callId"`
	Participants []string  `firestore:"participants" json:"participants"`
	Type         string    `firestore:"type" json:"type"`
	CreatedAt    time.Time `firestore:"createdAt" json:"createdAt"`
	Recordings   []string  `firestore:"recordings,omitempty" json:"recordings,omitempty"`
}

// HasParticipant reports whether userID already takes part in the meeting.
func (m *Meeting) HasParticipant(userID string) bool {
	for _, p := range m.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// AddParticipant appends userID unless it is already present. It reports
// whether the participant list changed.
func (m *Meeting) AddParticipant(userID string) bool {
	if m.HasParticipant(userID) {
		return false
	}
	m.Participants = append(m.Participants, userID)
	return true
}
