package service

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/web3guardian/guardian-server-go/internal/model"
)

type handleResolver interface {
	Resolve(ctx context.Context, handle string) (string, error)
}

type reputationReader interface {
	GetRanking(ctx context.Context, userID, sourceUUID string, targetType model.EntityType) ([]model.RankingItem, error)
	GetFeedbackSummary(ctx context.Context, userID, sourceUUID, targetUUID string) (*model.FeedbackSummary, error)
}

// ReportService builds the reviewer-facing reputation report: resolve the
// target, fetch its relation ranking, then fetch every per-relation feedback
// summary concurrently and keep whatever succeeded.
type ReportService struct {
	resolver   handleResolver
	reputation reputationReader
}

func NewReportService(resolver handleResolver, reputation reputationReader) *ReportService {
	return &ReportService{
		resolver:   resolver,
		reputation: reputation,
	}
}

func (s *ReportService) BuildReport(ctx context.Context, userID, targetHandle string) (*model.Report, error) {
	targetUUID, err := s.resolver.Resolve(ctx, targetHandle)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", targetHandle, err)
	}

	ranking, err := s.reputation.GetRanking(ctx, userID, targetUUID, model.EntityTypeTelegramUser)
	if err != nil {
		return nil, fmt.Errorf("get ranking: %w", err)
	}

	summaries := s.fetchSummaries(ctx, userID, targetUUID, ranking)

	report := &model.Report{TargetHandle: targetHandle}
	for _, summary := range summaries {
		if summary == nil || summary.Stars.Count == 0 {
			continue
		}
		report.Lines = append(report.Lines, renderSummary(summary))
	}

	log.Info().
		Str("targetHandle", targetHandle).
		Int("relations", len(ranking)).
		Int("lines", len(report.Lines)).
		Msg("reputation report built")

	return report, nil
}

// fetchSummaries runs one fetch per related entity concurrently and waits for
// all of them to settle. A failed fetch leaves a nil slot instead of failing
// the report; ranking order is preserved.
func (s *ReportService) fetchSummaries(ctx context.Context, userID, targetUUID string, ranking []model.RankingItem) []*model.FeedbackSummary {
	summaries := make([]*model.FeedbackSummary, len(ranking))

	var wg sync.WaitGroup
	for i, item := range ranking {
		wg.Add(1)
		go func(i int, sourceUUID string) {
			defer wg.Done()

			summary, err := s.reputation.GetFeedbackSummary(ctx, userID, sourceUUID, targetUUID)
			if err != nil {
				log.Warn().
					Err(err).
					Str("sourceUuid", sourceUUID).
					Str("targetUuid", targetUUID).
					Msg("feedback summary fetch failed, dropping relation from report")
				return
			}
			summaries[i] = summary
		}(i, item.Entity.IDs.UUID)
	}
	wg.Wait()

	return summaries
}

func renderSummary(summary *model.FeedbackSummary) string {
	text := summary.SummaryText
	if text == "" && len(summary.Reviews) > 0 {
		text = summary.Reviews[0].Content
	}
	stars := int(math.Round(summary.Stars.Avg))
	return fmt.Sprintf("%s (%d/5)", text, stars)
}
