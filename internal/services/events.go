package services

import (
	"encoding/json"
	"fmt"

	"github.com/Lllllllleong/callscribe/internal/models"
)

// MessagePublishedData is the data of a google.cloud.pubsub.topic.v1.messagePublished event.
type MessagePublishedData struct {
	Message struct {
		Data       []byte            `json:"data"` // base64 in JSON, decoded by encoding/json
		Attributes map[string]string `json:"attributes,omitempty"`
		MessageID  string            `json:"messageId,omitempty"`
	} `json:"message"`
	Subscription string `json:"subscription,omitempty"`
}

// DecodeRecordingEvent extracts the {callId, url} request carried in a Pub/Sub
// message.
func DecodeRecordingEvent(data []byte) (*models.RecordingRequest, error) {
	var msg MessagePublishedData
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}
	var req models.RecordingRequest
	if err := json.Unmarshal(msg.Message.Data, &req); err != nil {
		return nil, fmt.Errorf("%w: message data is not a recording request: %v", ErrValidation, err)
	}
	if req.CallID == "" || req.URL == "" {
		return nil, fmt.Errorf("%w: callId and url are required", ErrValidation)
	}
	return &req, nil
}
