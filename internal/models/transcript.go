package models

// Recording is a finished call recording reported by the video provider.
type Recording struct {
	Filename  string `json:"filename"`
	URL       string `json:"url"`
	SessionID string `json:"session_id,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// Utterance is one speaker-labelled turn of a transcript.
type Utterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Transcript is the transient result of a transcription. Utterances is nil when
// the service did not return a sequence of utterances at all, which is
// distinct from an empty transcript.
type Transcript struct {
	ID         string      `json:"id,omitempty"`
	Utterances []Utterance `json:"utterances"`
}
