// Package stream adapts the Stream server SDK: it mints user tokens and lists
// call recordings.
package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/GetStream/getstream-go"
	"github.com/Lllllllleong/callscribe/internal/models"
	"github.com/Lllllllleong/callscribe/internal/services"
	"github.com/patrickmn/go-cache"
)

const (
	defaultTokenReuse  = 50 * time.Minute
	defaultHTTPTimeout = 30 * time.Second
)

type Config struct {
	APIKey    string
	APISecret string
	// BaseURL overrides the SDK's API endpoint; empty keeps the default.
	BaseURL string
	// UserTokenTTL bounds user tokens; zero means they do not expire.
	UserTokenTTL time.Duration
}

type (
	listFunc func(ctx context.Context, callType, callID string) ([]getstream.CallRecording, error)
	mintFunc func(userID string, ttl time.Duration) (string, error)
)

// Client implements services.RecordingProvider and services.TokenIssuer.
type Client struct {
	cfg    Config
	list   listFunc
	mint   mintFunc
	tokens *cache.Cache
}

var (
	_ services.RecordingProvider = (*Client)(nil)
	_ services.TokenIssuer       = (*Client)(nil)
)

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("STREAM_API_KEY and STREAM_API_SECRET must be set")
	}
	opts := []getstream.ClientOption{getstream.WithTimeout(defaultHTTPTimeout)}
	if cfg.BaseURL != "" {
		opts = append(opts, getstream.WithBaseUrl(cfg.BaseURL))
	}
	sc, err := getstream.NewClient(cfg.APIKey, cfg.APISecret, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream client: %w", err)
	}

	list := func(ctx context.Context, callType, callID string) ([]getstream.CallRecording, error) {
		resp, err := sc.Video().Call(callType, callID).ListRecordings(ctx, &getstream.ListRecordingsRequest{})
		if err != nil {
			return nil, err
		}
		return resp.Data.Recordings, nil
	}
	mint := func(userID string, ttl time.Duration) (string, error) {
		if ttl > 0 {
			return sc.CreateToken(userID, getstream.WithExpiration(ttl))
		}
		return sc.CreateToken(userID)
	}
	return newClient(cfg, list, mint), nil
}

func newClient(cfg Config, list listFunc, mint mintFunc) *Client {
	return &Client{
		cfg:    cfg,
		list:   list,
		mint:   mint,
		tokens: cache.New(tokenReuse(cfg.UserTokenTTL), 10*time.Minute),
	}
}

// tokenReuse is how long a minted user token is handed out again. Expiring
// tokens are reused for at most half their lifetime.
func tokenReuse(ttl time.Duration) time.Duration {
	if ttl > 0 && ttl/2 < defaultTokenReuse {
		return ttl / 2
	}
	return defaultTokenReuse
}

// UserToken returns a token the client SDK connects with.
func (c *Client) UserToken(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("userID is required")
	}
	if tok, ok := c.tokens.Get(userID); ok {
		return tok.(string), nil
	}
	tok, err := c.mint(userID, c.cfg.UserTokenTTL)
	if err != nil {
		return "", fmt.Errorf("failed to create stream token: %w", err)
	}
	c.tokens.SetDefault(userID, tok)
	return tok, nil
}

// QueryRecordings lists the finished recordings of a call. An empty list means
// the provider has not finished processing them yet.
func (c *Client) QueryRecordings(ctx context.Context, callType, callID string) ([]models.Recording, error) {
	recs, err := c.list(ctx, callType, callID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings for call %s/%s: %w", callType, callID, err)
	}
	out := make([]models.Recording, 0, len(recs))
	for _, r := range recs {
		out = append(out, toRecording(r))
	}
	return out, nil
}

func toRecording(r getstream.CallRecording) models.Recording {
	return models.Recording{
		Filename:  r.Filename,
		URL:       r.Url,
		SessionID: r.SessionID,
		StartTime: formatTimestamp(r.StartTime),
		EndTime:   formatTimestamp(r.EndTime),
	}
}

func formatTimestamp(ts getstream.Timestamp) string {
	if ts.Time == nil {
		return ""
	}
	return ts.Time.UTC().Format(time.RFC3339)
}
