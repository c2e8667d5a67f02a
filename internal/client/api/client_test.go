package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/agromarket/internal/client/api/apitest"
	"github.com/iudanet/agromarket/internal/client/auth"
	"github.com/iudanet/agromarket/internal/models"
	"github.com/iudanet/agromarket/pkg/api"
)

func newOperation(id, entityID string) models.SyncOperation {
	return models.SyncOperation{
		Timestamp:     time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
		OperationID:   id,
		OperationType: models.OperationCreate,
		EntityType:    models.EntityCartItem,
		EntityID:      entityID,
		DeviceID:      "device-1",
		ContentHash:   "0011223344556677",
		Data:          json.RawMessage(`{"product_id":7,"quantity":2}`),
		Version:       1,
	}
}

// TestNewClient проверяет создание нового клиента
func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	assert.NotNil(t, client)
	assert.Equal(t, "http://localhost:8080", client.baseURL)
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
	assert.Nil(t, client.tokens)

	client = NewClient("http://localhost:8080", WithTimeout(time.Second))
	assert.Equal(t, time.Second, client.httpClient.Timeout)
}

// TestClient_Push проверяет формат запроса и ответа push
func TestClient_Push(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sync/push", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req api.PushRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "device-1", req.DeviceID)
		assert.Equal(t, "1.0.0", req.ClientVersion)
		require.Len(t, req.Operations, 2)

		accepted := req.Operations[0]
		accepted.LamportTS = 11
		_ = json.NewEncoder(w).Encode(api.PushResponse{
			Accepted: []models.SyncOperation{accepted},
			Rejected: []api.RejectedOperation{{
				OperationID:  req.Operations[1].OperationID,
				ConflictID:   "c-1",
				ConflictType: models.ConflictVersionMismatch,
			}},
			ConflictsDetected: 1,
			NewLamportTS:      11,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Push(context.Background(), api.PushRequest{
		DeviceID:      "device-1",
		ClientVersion: "1.0.0",
		Operations:    []models.SyncOperation{newOperation("op-1", "cart-1"), newOperation("op-2", "cart-2")},
	})

	require.NoError(t, err)
	require.Len(t, resp.Accepted, 1)
	assert.Equal(t, int64(11), resp.Accepted[0].LamportTS)
	require.Len(t, resp.Rejected, 1)
	assert.Equal(t, "op-2", resp.Rejected[0].OperationID)
	assert.Equal(t, 1, resp.ConflictsDetected)
	assert.Equal(t, int64(11), resp.NewLamportTS)
}

// TestClient_Errors проверяет обработку ошибок сервера
func TestClient_Errors(t *testing.T) {
	tests := []struct {
		responseBody   any
		name           string
		expectedErrMsg string
		statusCode     int
	}{
		{
			name:           "Conflict with message",
			statusCode:     http.StatusConflict,
			responseBody:   api.ErrorResponse{Message: "version mismatch"},
			expectedErrMsg: "server error (409): version mismatch",
		},
		{
			name:           "Error without message",
			statusCode:     http.StatusBadRequest,
			responseBody:   api.ErrorResponse{Error: "Bad Request"},
			expectedErrMsg: "server error (400): Bad Request",
		},
		{
			name:           "Plain text body",
			statusCode:     http.StatusInternalServerError,
			responseBody:   "Internal Server Error",
			expectedErrMsg: "request failed with status 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				if errResp, ok := tt.responseBody.(api.ErrorResponse); ok {
					_ = json.NewEncoder(w).Encode(errResp)
				} else {
					_, _ = w.Write([]byte(tt.responseBody.(string)))
				}
			}))
			defer server.Close()

			client := NewClient(server.URL)
			resp, err := client.Pull(context.Background(), api.PullRequest{Limit: 10})

			require.Error(t, err)
			assert.Nil(t, resp)
			assert.Contains(t, err.Error(), tt.expectedErrMsg)

			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.statusCode, statusErr.StatusCode)
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(url)
	_, err := client.Health(context.Background())
	require.Error(t, err)

	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr), "network failure carries no status")
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, WithTimeout(50*time.Millisecond))
	_, err := client.Push(context.Background(), api.PushRequest{DeviceID: "device-1"})
	require.Error(t, err)
}

func TestClient_BearerToken(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	server := apitest.NewServer(nil)
	defer server.Close()
	server.RequireToken(token)

	t.Run("without token", func(t *testing.T) {
		_, err := NewClient(server.URL).Pull(context.Background(), api.PullRequest{})
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	})

	t.Run("with token", func(t *testing.T) {
		client := NewClient(server.URL, WithTokenSource(auth.NewStaticToken(token)))
		resp, err := client.Pull(context.Background(), api.PullRequest{})
		require.NoError(t, err)
		assert.Empty(t, resp.Operations)
	})

	t.Run("expired token is not sent", func(t *testing.T) {
		expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(-time.Hour).Unix(),
		}).SignedString([]byte("secret"))
		require.NoError(t, err)

		client := NewClient(server.URL, WithTokenSource(auth.NewStaticToken(expired)))
		_, err = client.Push(context.Background(), api.PushRequest{})
		assert.ErrorIs(t, err, auth.ErrTokenExpired)
		assert.Empty(t, server.Pushes())
	})
}

// TestClient_RoundTrip проверяет push, pull и resolve против тестового сервера
func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	server := apitest.NewServer(nil)
	defer server.Close()
	server.RejectEntity("cart-2", models.ConflictVersionMismatch)

	client := NewClient(server.URL)

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)

	pushResp, err := client.Push(ctx, api.PushRequest{
		DeviceID:   "device-1",
		Operations: []models.SyncOperation{newOperation("op-1", "cart-1"), newOperation("op-2", "cart-2")},
	})
	require.NoError(t, err)
	require.Len(t, pushResp.Accepted, 1)
	require.Len(t, pushResp.Rejected, 1)
	assert.Equal(t, int64(1), pushResp.NewLamportTS)

	// Повторная отправка принятой операции идемпотентна
	again, err := client.Push(ctx, api.PushRequest{
		DeviceID:   "device-1",
		Operations: []models.SyncOperation{newOperation("op-1", "cart-1")},
	})
	require.NoError(t, err)
	require.Len(t, again.Accepted, 1)
	assert.Equal(t, int64(1), again.Accepted[0].LamportTS)
	assert.Len(t, server.Accepted(), 1)

	pullResp, err := client.Pull(ctx, api.PullRequest{SinceLamportTS: 0, Limit: 100})
	require.NoError(t, err)
	require.Len(t, pullResp.Operations, 1)
	assert.Equal(t, "op-1", pullResp.Operations[0].OperationID)

	conflictID := pushResp.Rejected[0].ConflictID
	require.NoError(t, client.ResolveConflict(ctx, conflictID, models.ResolutionRemote))
	assert.Equal(t, models.ResolutionRemote, server.Resolutions()[conflictID])
}

func TestServer_Down(t *testing.T) {
	server := apitest.NewServer(nil)
	defer server.Close()

	client := NewClient(server.URL)
	server.SetDown(true)

	_, err := client.Health(context.Background())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)

	server.SetDown(false)
	_, err = client.Health(context.Background())
	assert.NoError(t, err)
}
