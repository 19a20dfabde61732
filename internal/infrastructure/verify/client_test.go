package verify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asaancar/identity-api/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := NewClient(&config.Config{VerifyBaseURL: srv.URL, VerifyAPIKey: "test-key"})
	require.NoError(t, err)
	return p
}

func TestNewClient_Unconfigured(t *testing.T) {
	_, err := NewClient(&config.Config{})
	assert.Error(t, err)

	_, err = NewClient(&config.Config{VerifyBaseURL: "http://localhost"})
	assert.Error(t, err)
}

func TestStartVerification_ReturnsSID(t *testing.T) {
	p := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/verifications", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "+923001234567", body["to"])
		assert.Equal(t, "sms", body["channel"])

		_ = json.NewEncoder(w).Encode(map[string]string{"sid": "VE123", "status": "pending"})
	})

	sid, err := p.StartVerification(context.Background(), "+923001234567")
	require.NoError(t, err)
	assert.Equal(t, "VE123", sid)
}

func TestStartVerification_NoHandle(t *testing.T) {
	p := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "failed"})
	})

	_, err := p.StartVerification(context.Background(), "+923001234567")
	assert.Error(t, err)
}

func TestCheckVerification_ReturnsStatus(t *testing.T) {
	p := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/verifications/check", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "123456", body["code"])

		_ = json.NewEncoder(w).Encode(map[string]string{"sid": "VE123", "status": StatusApproved})
	})

	status, err := p.CheckVerification(context.Background(), "+923001234567", "123456")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, status)
}

func TestCheckVerification_ProviderError(t *testing.T) {
	p := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := p.CheckVerification(context.Background(), "+923001234567", "123456")
	assert.Error(t, err)
}

// 4xx responses carry a provider status in the body (e.g. a rejected check);
// they are not transport errors.
func TestCheckVerification_RejectedStatusPassesThrough(t *testing.T) {
	p := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"sid": "VE123", "status": "pending"})
	})

	status, err := p.CheckVerification(context.Background(), "+923001234567", "000000")
	require.NoError(t, err)
	assert.Equal(t, "pending", status)
}
