package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/Lllllllleong/callscribe/internal/models"
	"github.com/Lllllllleong/callscribe/internal/services"
)

// --- Transcriber Model Prompts ---
const TranscriberSystemPrompt = "You are a meticulous transcription engine for recorded video calls. You listen to the audio track, separate the speakers and write down exactly what each of them says."
const TranscriberUserPrompt = `Transcribe the attached call recording.

Follow these rules precisely:
1.  Split the transcript into utterances. A new utterance starts whenever the speaker changes.
2.  Label speakers with capital letters in order of first appearance: "A", "B", "C" and so on.
3.  Write the spoken words verbatim. Do not summarize, translate or correct grammar.
4.  Skip silence, music and background noise.

Return ONLY the JSON object described by the response schema.`

// utteranceSchema constrains the model output to {"utterances":[{"speaker","text"}]}.
var utteranceSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"utterances": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"speaker": {Type: genai.TypeString},
					"text":    {Type: genai.TypeString},
				},
				Required: []string{"speaker", "text"},
			},
		},
	},
	Required: []string{"utterances"},
}

// VertexClient holds the pre-configured generative model used for transcription.
type VertexClient struct {
	TranscriberModel *genai.GenerativeModel
	baseClient       *genai.Client
}

// NewVertexClient creates a new client holding the transcriber model.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	transcriberModel := baseClient.GenerativeModel(modelName)
	transcriberModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(TranscriberSystemPrompt)},
	}
	transcriberModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   utteranceSchema,
		Temperature:      genai.Ptr[float32](0.0),
	}

	return &VertexClient{
		TranscriberModel: transcriberModel,
		baseClient:       baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// VertexTranscriber implements services.Transcriber with Gemini. The recording
// must be reachable by Vertex AI, typically a gs:// or public https URL.
type VertexTranscriber struct {
	client *VertexClient
}

var _ services.Transcriber = (*VertexTranscriber)(nil)

func NewVertexTranscriber(client *VertexClient) *VertexTranscriber {
	return &VertexTranscriber{client: client}
}

// Transcribe always separates speakers; the prompt has no unlabelled variant.
func (t *VertexTranscriber) Transcribe(ctx context.Context, audioURL string, speakerLabels bool) (*models.Transcript, error) {
	resp, err := t.client.TranscriberModel.GenerateContent(ctx,
		genai.FileData{MIMEType: mediaMIMEType(audioURL), FileURI: audioURL},
		genai.Text(TranscriberUserPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: generate content: %v", services.ErrTranscriptionFailed, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: model returned no candidates", services.ErrTranscriptionFailed)
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if txt, ok := p.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return parseUtterancesJSON(sb.String())
}

// parseUtterancesJSON decodes the model response. A missing or non-array
// utterances field yields a transcript with nil Utterances.
func parseUtterancesJSON(raw string) (*models.Transcript, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(raw, "```")), "```")

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, fmt.Errorf("%w: response is not JSON: %v", services.ErrTranscriptionFailed, err)
	}
	tr := &models.Transcript{}
	field, ok := envelope["utterances"]
	if !ok {
		return tr, nil
	}
	var utterances []models.Utterance
	if err := json.Unmarshal(field, &utterances); err != nil || utterances == nil {
		return tr, nil
	}
	tr.Utterances = utterances
	return tr, nil
}

func mediaMIMEType(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	switch strings.ToLower(path.Ext(u)) {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	default:
		return "video/mp4"
	}
}
