package model

// FeedbackDraft is the in-progress review held inside a session before the
// user confirms it.
type FeedbackDraft struct {
	Review string `json:"review"`
	Stars  int    `json:"stars"`
}

// FeedbackSubmission is a confirmed draft bound to its entities and an
// idempotency token. Resubmitting with the same TransactionID overwrites the
// prior record upstream instead of duplicating it.
type FeedbackSubmission struct {
	SourceUUID    string `json:"sourceUuid"`
	TargetUUID    string `json:"targetUuid"`
	TransactionID string `json:"transactionId"`
	Review        string `json:"review"`
	Stars         int    `json:"stars"`
}

// FeedbackSummary is the read-only aggregate for one (source, target) pair.
type FeedbackSummary struct {
	SummaryText string   `json:"summaryText"`
	Reviews     []Review `json:"reviews"`
	Stars       Stars    `json:"stars"`
}

type Review struct {
	Content string `json:"content"`
	Date    int64  `json:"date"`
	Image   string `json:"image,omitempty"`
	Summary string `json:"summary,omitempty"`
}

type Stars struct {
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
}

// RankingItem is one entity related to a ranking query's source, in the
// order the reputation API returned it.
type RankingItem struct {
	Entity            Entity   `json:"entity"`
	RelationshipPaths []string `json:"relationshipPaths,omitempty"`
	SummaryText       string   `json:"summaryText,omitempty"`
}

// Report is the reviewer-facing result of the aggregation pipeline.
type Report struct {
	TargetHandle string   `json:"targetHandle"`
	Lines        []string `json:"lines"`
}

// Empty reports whether no usable feedback survived aggregation.
func (r *Report) Empty() bool {
	return len(r.Lines) == 0
}
