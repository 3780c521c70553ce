package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/web3guardian/guardian-server-go/internal/errors"
	"github.com/web3guardian/guardian-server-go/internal/model"
)

// fakeCredentialRepo is an in-memory CredentialRepository shared by the
// service tests.
type fakeCredentialRepo struct {
	credentials map[string]*model.Credential
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{credentials: make(map[string]*model.Credential)}
}

func (f *fakeCredentialRepo) Find(ctx context.Context, userID string) (*model.Credential, error) {
	cred, ok := f.credentials[userID]
	if !ok {
		return nil, nil
	}
	copied := *cred
	return &copied, nil
}

func (f *fakeCredentialRepo) Save(ctx context.Context, userID string, credential *model.Credential) error {
	copied := *credential
	f.credentials[userID] = &copied
	return nil
}

func (f *fakeCredentialRepo) Delete(ctx context.Context, userID string) error {
	delete(f.credentials, userID)
	return nil
}

func liveCredential(address string) *model.Credential {
	return &model.Credential{
		AccessToken:          "token-123",
		AccessTokenExpiresAt: time.Now().Add(time.Hour),
		Address:              address,
	}
}

func TestReputationClientAuthGuard(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	t.Run("no credential fails fast with zero requests", func(t *testing.T) {
		requests.Store(0)
		client := NewReputationClient(server.URL, newFakeCredentialRepo())

		err := client.SubmitFeedback(context.Background(), "u1", model.FeedbackSubmission{})
		assert.Equal(t, apperrors.ErrCodeUnauthenticated, apperrors.GetCode(err))

		_, err = client.GetFeedbackSummary(context.Background(), "u1", "s", "t")
		assert.Equal(t, apperrors.ErrCodeUnauthenticated, apperrors.GetCode(err))

		_, err = client.GetRanking(context.Background(), "u1", "s", model.EntityTypeTelegramUser)
		assert.Equal(t, apperrors.ErrCodeUnauthenticated, apperrors.GetCode(err))

		err = client.RegisterEntity(context.Background(), "u1", model.Entity{})
		assert.Equal(t, apperrors.ErrCodeUnauthenticated, apperrors.GetCode(err))

		assert.Equal(t, int64(0), requests.Load())
	})

	t.Run("expired credential fails fast with zero requests", func(t *testing.T) {
		requests.Store(0)
		creds := newFakeCredentialRepo()
		creds.credentials["u1"] = &model.Credential{
			AccessToken:          "stale",
			AccessTokenExpiresAt: time.Now().Add(-time.Minute),
		}
		client := NewReputationClient(server.URL, creds)

		err := client.SubmitFeedback(context.Background(), "u1", model.FeedbackSubmission{})
		assert.Equal(t, apperrors.ErrCodeTokenExpired, apperrors.GetCode(err))
		assert.Equal(t, int64(0), requests.Load())
	})
}

func TestReputationClientSubmitFeedback(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/feedback", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	creds := newFakeCredentialRepo()
	creds.credentials["u1"] = liveCredential("0xabc")
	client := NewReputationClient(server.URL, creds)

	sub := model.FeedbackSubmission{
		SourceUUID:    "source-uuid",
		TargetUUID:    "target-uuid",
		TransactionID: "txn-1",
		Review:        "Great trade partner",
		Stars:         5,
	}
	require.NoError(t, client.SubmitFeedback(context.Background(), "u1", sub))

	assert.Equal(t, "Bearer token-123", gotAuth)
	assert.Equal(t, "txn-1", gotBody["transactionId"])

	source := gotBody["sourceCriteria"].(map[string]any)["ids"].(map[string]any)
	assert.Equal(t, "source-uuid", source["uuid"])
	target := gotBody["targetCriteria"].(map[string]any)["ids"].(map[string]any)
	assert.Equal(t, "target-uuid", target["uuid"])

	items := gotBody["items"].(map[string]any)
	assert.Equal(t, "Great trade partner", items["review"])
	assert.Equal(t, float64(5), items["stars"])
}

func TestReputationClientGetFeedbackSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/feedbackSummary", r.URL.Path)

		assert.Equal(t, "source-uuid", r.URL.Query().Get("sourceCriteria[ids][uuid]"))
		assert.Equal(t, "target-uuid", r.URL.Query().Get("targetCriteria[ids][uuid]"))

		writeTestJSON(w, map[string]any{
			"status": "success",
			"result": map[string]any{
				"items": map[string]any{
					"summaryText": "Very trustworthy",
					"reviews":     []map[string]any{{"content": "Great user!"}},
					"stars":       map[string]any{"avg": 4.6, "count": 3, "sum": 14},
				},
			},
		})
	}))
	defer server.Close()

	creds := newFakeCredentialRepo()
	creds.credentials["u1"] = liveCredential("0xabc")
	client := NewReputationClient(server.URL, creds)

	summary, err := client.GetFeedbackSummary(context.Background(), "u1", "source-uuid", "target-uuid")
	require.NoError(t, err)
	assert.Equal(t, "Very trustworthy", summary.SummaryText)
	assert.Equal(t, 3, summary.Stars.Count)
	assert.InEpsilon(t, 4.6, summary.Stars.Avg, 0.001)
	require.Len(t, summary.Reviews, 1)
	assert.Equal(t, "Great user!", summary.Reviews[0].Content)
}

func TestReputationClientGetRanking(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ranking", r.URL.Path)
		assert.Equal(t, "telegram_user", r.URL.Query().Get("targetType"))
		assert.Equal(t, "source-uuid", r.URL.Query().Get("sourceCriteria[ids][uuid]"))

		writeTestJSON(w, map[string]any{
			"result": []map[string]any{
				{"entity": map[string]any{"name": "bob", "ids": map[string]any{"uuid": "uuid-bob"}}},
				{"entity": map[string]any{"name": "carol", "ids": map[string]any{"uuid": "uuid-carol"}}},
			},
		})
	}))
	defer server.Close()

	creds := newFakeCredentialRepo()
	creds.credentials["u1"] = liveCredential("0xabc")
	client := NewReputationClient(server.URL, creds)

	ranking, err := client.GetRanking(context.Background(), "u1", "source-uuid", model.EntityTypeTelegramUser)
	require.NoError(t, err)
	require.Len(t, ranking, 2)
	assert.Equal(t, "uuid-bob", ranking[0].Entity.IDs.UUID)
	assert.Equal(t, "uuid-carol", ranking[1].Entity.IDs.UUID)
}

func TestReputationClientVerifyAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/identity-api/verify-address", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		writeTestJSON(w, map[string]any{
			"access_token":       "fresh-token",
			"expires_in":         300,
			"refresh_token":      "refresh",
			"refresh_expires_in": 1800,
		})
	}))
	defer server.Close()

	client := NewReputationClient(server.URL, newFakeCredentialRepo())

	resp, err := client.VerifyAddress(context.Background(), model.VerifyAddressRequest{
		Address:   "0xabc",
		Signature: "sig",
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", resp.AccessToken)
	assert.Equal(t, 300, resp.ExpiresIn)
	assert.Equal(t, 1800, resp.RefreshExpiresIn)
}

func TestReputationClientErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected apperrors.ErrorCode
	}{
		{"unauthorized maps to unauthenticated", http.StatusUnauthorized, apperrors.ErrCodeUnauthenticated},
		{"forbidden maps to unauthenticated", http.StatusForbidden, apperrors.ErrCodeUnauthenticated},
		{"not found maps to upstream", http.StatusNotFound, apperrors.ErrCodeUpstream},
		{"server error maps to upstream", http.StatusInternalServerError, apperrors.ErrCodeUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			creds := newFakeCredentialRepo()
			creds.credentials["u1"] = liveCredential("0xabc")
			client := NewReputationClient(server.URL, creds)

			err := client.RegisterEntity(context.Background(), "u1", model.Entity{Name: "alice"})
			assert.Equal(t, tt.expected, apperrors.GetCode(err))
		})
	}
}

func writeTestJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
