package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"telehealth/internal/apperr"
	"telehealth/internal/config"
)

const dailyProvider = "daily"

// DailyClient provisions Daily.co rooms and meeting tokens.
type DailyClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewDailyClient(cfg config.DailyConfig) *DailyClient {
	return &DailyClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// CreateRoom creates a room with Daily's defaults.
func (d *DailyClient) CreateRoom(ctx context.Context) (*Response, error) {
	return d.post(ctx, "/rooms", []byte("{}"))
}

// MeetingToken forwards payload, which must be a JSON object, to Daily's
// meeting-tokens endpoint. An empty payload is sent as {}.
func (d *DailyClient) MeetingToken(ctx context.Context, payload []byte) (*Response, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil || obj == nil {
		return nil, apperr.Validation("request body must be a JSON object")
	}
	return d.post(ctx, "/meeting-tokens", payload)
}

func (d *DailyClient) post(ctx context.Context, path string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Upstream(dailyProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	return do(d.http, req, dailyProvider)
}
