// Package config loads the service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Lllllllleong/callscribe/internal/gcp"
)

const (
	TranscriberAssemblyAI = "assemblyai"
	TranscriberVertex     = "vertex"
)

var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

type Config struct {
	APIAddr        string
	ProjectID      string
	StorageBucket  string
	AllowedOrigins []string

	UsersCollection    string
	MeetingsCollection string
	JobsCollection     string

	StreamAPIKey    string
	StreamAPISecret string
	StreamBaseURL   string
	StreamCallType  string

	Transcriber            string
	AssemblyAIKey          string
	TranscriptionMode      string
	TranscriptPollInterval time.Duration
	VertexRegion           string
	VertexModel            string
	TranscriptFontPath     string

	RecordingDelay           time.Duration
	RecordingFetchAttempts   int
	RecordingFetchBackoff    time.Duration
	RecordingFetchMaxBackoff time.Duration
	LogAppendMode            string

	RedisURL          string
	WorkerConcurrency int
	WorkerQueues      string
}

// Load reads the environment and validates the result.
func Load() (Config, error) {
	cfg := Config{
		APIAddr:        gcp.GetEnv("API_ADDR", ":8080"),
		ProjectID:      gcp.GetEnv("PROJECT_ID", ""),
		StorageBucket:  gcp.GetEnv("STORAGE_BUCKET", ""),
		AllowedOrigins: envCSV("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins),

		UsersCollection:    gcp.GetEnv("USERS_COLLECTION", "users"),
		MeetingsCollection: gcp.GetEnv("MEETINGS_COLLECTION", "meetings"),
		JobsCollection:     gcp.GetEnv("JOBS_COLLECTION", "jobs"),

		StreamAPIKey:    gcp.GetEnv("STREAM_API_KEY", ""),
		StreamAPISecret: gcp.GetEnv("STREAM_API_SECRET", ""),
		StreamBaseURL:   gcp.GetEnv("STREAM_BASE_URL", ""),
		StreamCallType:  gcp.GetEnv("STREAM_CALL_TYPE", "default"),

		Transcriber:            strings.ToLower(gcp.GetEnv("TRANSCRIBER", TranscriberAssemblyAI)),
		AssemblyAIKey:          gcp.GetEnv("ASSEMBLYAI_API_KEY", ""),
		TranscriptionMode:      strings.ToLower(gcp.GetEnv("TRANSCRIPTION_MODE", "sync")),
		TranscriptPollInterval: envDuration("TRANSCRIPT_POLL_INTERVAL", 5*time.Second),
		VertexRegion:           gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		VertexModel:            gcp.GetEnv("VERTEX_AI_MODEL", "gemini-1.5-pro"),
		TranscriptFontPath:     gcp.GetEnv("TRANSCRIPT_FONT_PATH", ""),

		RecordingDelay:           envDuration("RECORDING_INITIAL_DELAY", 30*time.Second),
		RecordingFetchAttempts:   envInt("RECORDING_FETCH_ATTEMPTS", 3),
		RecordingFetchBackoff:    envDuration("RECORDING_FETCH_BACKOFF", 5*time.Second),
		RecordingFetchMaxBackoff: envDuration("RECORDING_FETCH_MAX_BACKOFF", 5*time.Second),
		LogAppendMode:            strings.ToLower(gcp.GetEnv("LOG_APPEND_MODE", "dedupe")),

		RedisURL:          gcp.GetEnv("REDIS_URL", ""),
		WorkerConcurrency: envInt("WORKER_CONCURRENCY", 10),
		WorkerQueues:      gcp.GetEnv("WORKER_QUEUES", "default=1"),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	required := map[string]string{
		"PROJECT_ID":        c.ProjectID,
		"STORAGE_BUCKET":    c.StorageBucket,
		"STREAM_API_KEY":    c.StreamAPIKey,
		"STREAM_API_SECRET": c.StreamAPISecret,
	}
	for _, key := range []string{"PROJECT_ID", "STORAGE_BUCKET", "STREAM_API_KEY", "STREAM_API_SECRET"} {
		if required[key] == "" {
			errs = append(errs, fmt.Errorf("%s environment variable must be set", key))
		}
	}
	switch c.Transcriber {
	case TranscriberAssemblyAI:
		if c.AssemblyAIKey == "" {
			errs = append(errs, errors.New("ASSEMBLYAI_API_KEY environment variable must be set"))
		}
	case TranscriberVertex:
	default:
		errs = append(errs, fmt.Errorf("TRANSCRIBER must be %q or %q, got %q", TranscriberAssemblyAI, TranscriberVertex, c.Transcriber))
	}
	if c.TranscriptionMode != "sync" && c.TranscriptionMode != "poll" {
		errs = append(errs, fmt.Errorf("TRANSCRIPTION_MODE must be sync or poll, got %q", c.TranscriptionMode))
	}
	if c.LogAppendMode != "dedupe" && c.LogAppendMode != "append" {
		errs = append(errs, fmt.Errorf("LOG_APPEND_MODE must be dedupe or append, got %q", c.LogAppendMode))
	}
	if c.RecordingFetchAttempts < 1 {
		errs = append(errs, errors.New("RECORDING_FETCH_ATTEMPTS must be at least 1"))
	}
	if c.RecordingFetchMaxBackoff < c.RecordingFetchBackoff {
		errs = append(errs, errors.New("RECORDING_FETCH_MAX_BACKOFF must not be below RECORDING_FETCH_BACKOFF"))
	}
	return errors.Join(errs...)
}

// RequireRedis is checked by binaries that cannot host the in-process
// dispatcher: the worker, and the HTTP Cloud Function, whose CPU is
// throttled once the 202 response has been written.
func (c Config) RequireRedis(binary string) error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL environment variable must be set for the %s", binary)
	}
	return nil
}

func envInt(key string, def int) int {
	if v := gcp.GetEnv(key, ""); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("Invalid integer in environment, using default.", "key", key, "value", v, "default", def)
			return def
		}
		return i
	}
	return def
}

// envDuration accepts Go durations ("30s") and bare seconds ("30").
func envDuration(key string, def time.Duration) time.Duration {
	v := gcp.GetEnv(key, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("Invalid duration in environment, using default.", "key", key, "value", v, "default", def.String())
	return def
}

func envCSV(key string, def []string) []string {
	if v := gcp.GetEnv(key, ""); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
