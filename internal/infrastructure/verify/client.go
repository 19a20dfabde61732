package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/asaancar/identity-api/internal/config"
)

// StatusApproved is the only provider status that counts as a passed check.
const StatusApproved = "approved"

// Provider is the external SMS verification service. It owns code generation,
// delivery and validation for the SMS channel; we only hold the opaque
// verification-session handle it returns.
type Provider interface {
	StartVerification(ctx context.Context, phone string) (sid string, err error)
	CheckVerification(ctx context.Context, phone, code string) (status string, err error)
}

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a Provider backed by the configured HTTP verification
// service. Returns an error when the provider is not configured; callers keep
// a nil Provider in that case and surface a configuration error at send time.
func NewClient(cfg *config.Config) (Provider, error) {
	if cfg.VerifyBaseURL == "" || cfg.VerifyAPIKey == "" {
		return nil, errors.New("verification provider not configured")
	}
	return &client{
		baseURL: cfg.VerifyBaseURL,
		apiKey:  cfg.VerifyAPIKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type startRequest struct {
	To      string `json:"to"`
	Channel string `json:"channel"`
}

type checkRequest struct {
	To   string `json:"to"`
	Code string `json:"code"`
}

type verificationResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	Msg    string `json:"message,omitempty"`
}

func (c *client) StartVerification(ctx context.Context, phone string) (string, error) {
	resp, err := c.post(ctx, "/v2/verifications", startRequest{To: phone, Channel: "sms"})
	if err != nil {
		return "", err
	}
	if resp.SID == "" {
		return "", fmt.Errorf("provider returned no verification handle (status %q)", resp.Status)
	}
	return resp.SID, nil
}

func (c *client) CheckVerification(ctx context.Context, phone, code string) (string, error) {
	resp, err := c.post(ctx, "/v2/verifications/check", checkRequest{To: phone, Code: code})
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *client) post(ctx context.Context, path string, payload interface{}) (*verificationResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal verification request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verification provider call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read verification response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("verification provider returned %d: %s", resp.StatusCode, raw)
	}
	var vr verificationResponse
	if err := json.Unmarshal(raw, &vr); err != nil {
		return nil, fmt.Errorf("decode verification response: %w", err)
	}
	return &vr, nil
}
