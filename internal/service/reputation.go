package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guardian/guardian-server-go/internal/config"
	apperrors "github.com/web3guardian/guardian-server-go/internal/errors"
	"github.com/web3guardian/guardian-server-go/internal/model"
	"github.com/web3guardian/guardian-server-go/internal/repository"
)

const (
	feedbackPath        = "/feedback"
	feedbackSummaryPath = "/feedbackSummary"
	rankingPath         = "/ranking"
	entityPath          = "/entity"
	verifyAddressPath   = "/identity-api/verify-address"
)

// ReputationClient is a stateless request/response wrapper around the remote
// reputation API. Every authenticated call resolves the caller's credential
// first and fails with UNAUTHENTICATED before any network I/O when none is
// live. Retry policy belongs to callers; this client performs exactly one
// request per operation.
type ReputationClient struct {
	baseURL     string
	client      *http.Client
	credentials repository.CredentialRepository
}

func NewReputationClient(baseURL string, credentials repository.CredentialRepository) *ReputationClient {
	return &ReputationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: config.ReputationRequestTimeout,
		},
		credentials: credentials,
	}
}

type entityCriteria struct {
	IDs model.EntityIDs `json:"ids"`
}

func criteriaFor(uuid string) entityCriteria {
	return entityCriteria{IDs: model.EntityIDs{UUID: uuid}}
}

type feedbackRequest struct {
	SourceCriteria entityCriteria      `json:"sourceCriteria"`
	TargetCriteria entityCriteria      `json:"targetCriteria"`
	TransactionID  string              `json:"transactionId"`
	Items          model.FeedbackDraft `json:"items"`
}

type feedbackSummaryResponse struct {
	Status string `json:"status"`
	Result struct {
		Items          model.FeedbackSummary `json:"items"`
		TargetCriteria entityCriteria        `json:"targetCriteria"`
	} `json:"result"`
}

type rankingResponse struct {
	Result []model.RankingItem `json:"result"`
}

// SubmitFeedback upserts one feedback record keyed by
// (sourceUuid, targetUuid, transactionId).
func (c *ReputationClient) SubmitFeedback(ctx context.Context, userID string, sub model.FeedbackSubmission) error {
	body := feedbackRequest{
		SourceCriteria: criteriaFor(sub.SourceUUID),
		TargetCriteria: criteriaFor(sub.TargetUUID),
		TransactionID:  sub.TransactionID,
		Items:          model.FeedbackDraft{Review: sub.Review, Stars: sub.Stars},
	}
	return c.doAuthenticated(ctx, userID, http.MethodPost, feedbackPath, nil, body, nil)
}

// GetFeedbackSummary returns the aggregated feedback the source entity holds
// on the target entity.
func (c *ReputationClient) GetFeedbackSummary(ctx context.Context, userID, sourceUUID, targetUUID string) (*model.FeedbackSummary, error) {
	query := url.Values{}
	setCriteriaParam(query, "sourceCriteria", sourceUUID)
	setCriteriaParam(query, "targetCriteria", targetUUID)

	var resp feedbackSummaryResponse
	if err := c.doAuthenticated(ctx, userID, http.MethodGet, feedbackSummaryPath, query, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Result.Items, nil
}

// GetRanking returns the entities with a recorded relationship to sourceUUID,
// in upstream order.
func (c *ReputationClient) GetRanking(ctx context.Context, userID, sourceUUID string, targetType model.EntityType) ([]model.RankingItem, error) {
	query := url.Values{}
	setCriteriaParam(query, "sourceCriteria", sourceUUID)
	query.Set("targetType", string(targetType))

	var resp rankingResponse
	if err := c.doAuthenticated(ctx, userID, http.MethodGet, rankingPath, query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// RegisterEntity creates or updates an entity record upstream.
func (c *ReputationClient) RegisterEntity(ctx context.Context, userID string, entity model.Entity) error {
	return c.doAuthenticated(ctx, userID, http.MethodPost, entityPath, nil, entity, nil)
}

// VerifyAddress exchanges a wallet address plus message signature for an API
// token pair. This is the only unauthenticated operation.
func (c *ReputationClient) VerifyAddress(ctx context.Context, req model.VerifyAddressRequest) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.do(ctx, http.MethodPost, verifyAddressPath, nil, "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *ReputationClient) doAuthenticated(ctx context.Context, userID, method, path string, query url.Values, body, out any) error {
	token, err := c.bearerToken(ctx, userID)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, query, token, body, out)
}

func (c *ReputationClient) bearerToken(ctx context.Context, userID string) (string, error) {
	credential, err := c.credentials.Find(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("find credential: %w", err)
	}
	if credential == nil {
		return "", apperrors.Unauthenticated("No credential for user")
	}
	if !credential.Live(time.Now()) {
		return "", apperrors.TokenExpired()
	}
	return credential.AccessToken, nil
}

func (c *ReputationClient) do(ctx context.Context, method, path string, query url.Values, token string, body, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Str("method", method).
			Str("path", path).
			Dur("elapsed", elapsed).
			Msg("reputation api request error")
		return apperrors.Upstream(path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		log.Warn().
			Str("path", path).
			Int("status", resp.StatusCode).
			Msg("reputation api rejected credential")
		return apperrors.Unauthenticated("Reputation API rejected the access token")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("reputation api request failed")
		return apperrors.Upstream(path, fmt.Errorf("status %d", resp.StatusCode))
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("reputation api request ok")

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.Upstream(path, fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

// setCriteriaParam encodes an entity criteria as nested bracket parameters
// (sourceCriteria[ids][uuid]=x), the shape the reputation API parses on GET.
func setCriteriaParam(query url.Values, field, uuid string) {
	query.Set(field+"[ids][uuid]", uuid)
}
