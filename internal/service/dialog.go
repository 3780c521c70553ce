package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/web3guardian/guardian-server-go/internal/audit"
	apperrors "github.com/web3guardian/guardian-server-go/internal/errors"
	"github.com/web3guardian/guardian-server-go/internal/model"
	"github.com/web3guardian/guardian-server-go/internal/repository"
	"github.com/web3guardian/guardian-server-go/internal/util"
)

// Button captions are the fixed vocabulary shared with the chat transport:
// callback events echo the caption text back as the event body.
const (
	ButtonViewReputation = "View User Reputation"
	ButtonSubmitReview   = "Submit Review"
	ButtonYes            = "Yes"
	ButtonNo             = "No"
)

const (
	welcomeText = "Web3 Guardian 🤖\n\nReliable reputation checks for chat users, backed by the UTU Web3 protocol."
	closingText = "Thanks for using Web3 Guardian! 😊\n\nEnter /restart to try another user."
)

// Event is one inbound conversational event from the chat transport. Button
// presses arrive as their caption text with IsCallback set; the dialog
// matches on the text either way.
type Event struct {
	ConversationID string
	UserID         string
	Username       string
	Text           string
	IsCallback     bool
}

type dialogResolver interface {
	Resolve(ctx context.Context, handle string) (string, error)
	EnsureRegistered(ctx context.Context, userID, handle, overrideID string) (string, error)
}

type feedbackSubmitter interface {
	SubmitFeedback(ctx context.Context, userID string, sub model.FeedbackSubmission) error
}

type reportBuilder interface {
	BuildReport(ctx context.Context, userID, targetHandle string) (*model.Report, error)
}

// DialogService drives the per-conversation feedback dialog. Events for the
// same conversation are serialized through a per-key mutex so the session
// read-validate-mutate-persist cycle never interleaves; events for different
// conversations run concurrently.
type DialogService struct {
	sessions      repository.SessionRepository
	credentials   repository.CredentialRepository
	resolver      dialogResolver
	reputation    feedbackSubmitter
	reports       reportBuilder
	feedbackAudit repository.FeedbackAuditRepository
	connectURL    string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewDialogService(
	sessions repository.SessionRepository,
	credentials repository.CredentialRepository,
	resolver dialogResolver,
	reputation feedbackSubmitter,
	reports reportBuilder,
	feedbackAudit repository.FeedbackAuditRepository,
	connectURL string,
) *DialogService {
	return &DialogService{
		sessions:      sessions,
		credentials:   credentials,
		resolver:      resolver,
		reputation:    reputation,
		reports:       reports,
		feedbackAudit: feedbackAudit,
		connectURL:    connectURL,
		locks:         make(map[string]*sync.Mutex),
	}
}

// HandleEvent validates one inbound event against the conversation's current
// state, runs the transition's side effects, persists the updated session and
// returns the outbound replies. Rejected input is a no-op transition: same
// state, error reply.
func (s *DialogService) HandleEvent(ctx context.Context, ev Event) ([]model.Reply, error) {
	if ev.ConversationID == "" {
		return nil, apperrors.MissingRequired("conversationId")
	}
	if ev.UserID == "" {
		return nil, apperrors.MissingRequired("userId")
	}

	lock := s.lockFor(ev.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessions.Find(ctx, ev.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		session = model.NewSession()
	}

	text := strings.TrimSpace(ev.Text)

	var replies []model.Reply
	switch text {
	case "/start":
		replies = s.handleStart(ctx, ev, session)
	case "/restart":
		replies = s.handleRestart(ctx, ev, session)
	default:
		replies = s.handleInput(ctx, ev, session, text)
	}

	if err := s.sessions.Save(ctx, ev.ConversationID, session); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	log.Debug().
		Str("conversationId", ev.ConversationID).
		Str("state", string(session.State)).
		Bool("callback", ev.IsCallback).
		Int("replies", len(replies)).
		Msg("dialog event handled")

	return replies, nil
}

// CompleteAuth is the explicit out-of-band trigger that unblocks a
// conversation waiting for wallet authentication. It returns the replies the
// caller should deliver to the user, or nil when the conversation was not
// waiting.
func (s *DialogService) CompleteAuth(ctx context.Context, conversationID string) ([]model.Reply, error) {
	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessions.Find(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil || session.State != model.StateAwaitingAuth {
		return nil, nil
	}

	session.State = model.StateAwaitingUsername
	if err := s.sessions.Save(ctx, conversationID, session); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	return []model.Reply{
		model.TextReply("Wallet connected ✅"),
		promptUsername(),
	}, nil
}

func (s *DialogService) handleStart(ctx context.Context, ev Event, session *model.Session) []model.Reply {
	session.Reset()

	if s.hasLiveCredential(ctx, ev.UserID) {
		session.State = model.StateAwaitingUsername
		return []model.Reply{model.TextReply(welcomeText), promptUsername()}
	}

	session.State = model.StateAwaitingAuth
	return []model.Reply{model.TextReply(welcomeText), s.promptAuth(ev)}
}

func (s *DialogService) handleRestart(ctx context.Context, ev Event, session *model.Session) []model.Reply {
	if !s.hasLiveCredential(ctx, ev.UserID) {
		session.Reset()
		session.State = model.StateAwaitingAuth
		return []model.Reply{s.promptAuth(ev)}
	}

	session.Reset()
	session.State = model.StateAwaitingUsername
	return []model.Reply{promptUsername()}
}

func (s *DialogService) handleInput(ctx context.Context, ev Event, session *model.Session, text string) []model.Reply {
	switch session.State {
	case model.StateIdle:
		return []model.Reply{model.TextReply("Enter /start to begin.")}

	case model.StateAwaitingAuth:
		// authentication completes out-of-band; ordinary input changes nothing
		return []model.Reply{s.promptAuth(ev)}

	case model.StateAwaitingUsername:
		return s.handleUsername(ctx, ev, session, text)

	case model.StateAwaitingAction:
		return s.handleAction(ctx, ev, session, text)

	case model.StateAwaitingFeedback:
		session.DraftReview = text
		session.State = model.StateAwaitingRating
		return []model.Reply{
			model.TextReply(fmt.Sprintf("How would you rate your experience with @%s?", session.OtherHandle)),
			model.MenuReply("Choose a rating:", "1", "2", "3", "4", "5"),
		}

	case model.StateAwaitingRating:
		return s.handleRating(session, text)

	case model.StateAwaitingConfirmation:
		return s.handleConfirmation(ctx, ev, session, text)

	default:
		// unknown persisted state, likely from an older version; start over
		log.Warn().Str("state", string(session.State)).Msg("unknown dialog state, resetting")
		session.Reset()
		return []model.Reply{model.TextReply("Enter /start to begin.")}
	}
}

func (s *DialogService) handleUsername(ctx context.Context, ev Event, session *model.Session, text string) []model.Reply {
	handle := util.NormalizeHandle(text)
	if !util.IsValidHandle(handle) {
		return []model.Reply{
			model.TextReply("That doesn't look like a username. Please enter a user's username 👤:"),
		}
	}

	if _, err := s.resolver.EnsureRegistered(ctx, ev.UserID, handle, ""); err != nil {
		log.Warn().Err(err).Str("handle", handle).Msg("entity registration failed, re-prompting")
		return []model.Reply{
			model.TextReply("Couldn't look that user up right now. Please try again 👤:"),
		}
	}

	session.OtherHandle = handle
	session.State = model.StateAwaitingAction
	return []model.Reply{
		model.MenuReply("What would you like to do?", ButtonViewReputation, ButtonSubmitReview),
	}
}

func (s *DialogService) handleAction(ctx context.Context, ev Event, session *model.Session, text string) []model.Reply {
	switch text {
	case ButtonViewReputation:
		replies := s.renderReport(ctx, ev, session.OtherHandle)
		session.Reset()
		return append(replies, model.TextReply(closingText))

	case ButtonSubmitReview:
		session.State = model.StateAwaitingFeedback
		return []model.Reply{
			model.TextReply(fmt.Sprintf("Tell us your objective feedback on @%s:", session.OtherHandle)),
		}

	default:
		return []model.Reply{
			model.MenuReply("Invalid input. Please choose one of the options:", ButtonViewReputation, ButtonSubmitReview),
		}
	}
}

func (s *DialogService) handleRating(session *model.Session, text string) []model.Reply {
	rating, err := strconv.Atoi(text)
	if err != nil || rating < 1 || rating > 5 {
		return []model.Reply{
			model.MenuReply("Invalid input. Please choose a rating between 1 and 5:", "1", "2", "3", "4", "5"),
		}
	}

	session.DraftRating = rating
	session.State = model.StateAwaitingConfirmation
	return []model.Reply{
		model.TextReply("Feedback: " + session.DraftReview),
		model.TextReply("Rating: " + strconv.Itoa(rating)),
		model.MenuReply("Are you sure you want to submit this feedback?", ButtonYes, ButtonNo),
	}
}

func (s *DialogService) handleConfirmation(ctx context.Context, ev Event, session *model.Session, text string) []model.Reply {
	switch text {
	case ButtonYes:
		replies := s.submitFeedback(ctx, ev, session)
		session.Reset()
		return append(replies, model.TextReply(closingText))

	case ButtonNo:
		session.Reset()
		return []model.Reply{
			model.TextReply("Feedback submission cancelled."),
			model.TextReply(closingText),
		}

	default:
		return []model.Reply{
			model.MenuReply("Invalid input. Please answer Yes or No:", ButtonYes, ButtonNo),
		}
	}
}

// renderReport runs the aggregation pipeline and formats its outcome. The
// dialog returns to idle afterwards whether the report succeeded, came back
// empty or failed.
func (s *DialogService) renderReport(ctx context.Context, ev Event, targetHandle string) []model.Reply {
	report, err := s.reports.BuildReport(ctx, ev.UserID, targetHandle)
	if err != nil {
		if apperrors.IsUnauthenticated(err) {
			return []model.Reply{s.promptAuth(ev)}
		}
		log.Error().Err(err).Str("targetHandle", targetHandle).Msg("report build failed")
		return []model.Reply{
			model.TextReply(fmt.Sprintf("Couldn't fetch reviews for @%s right now. Please try again later.", targetHandle)),
		}
	}

	if report.Empty() {
		return []model.Reply{
			model.TextReply(fmt.Sprintf("No reviews found for @%s", targetHandle)),
		}
	}

	replies := []model.Reply{
		model.TextReply(fmt.Sprintf("Here are the reviews for @%s:", targetHandle)),
	}
	for _, line := range report.Lines {
		replies = append(replies, model.TextReply(line))
	}
	return replies
}

func (s *DialogService) submitFeedback(ctx context.Context, ev Event, session *model.Session) []model.Reply {
	credential, err := s.credentials.Find(ctx, ev.UserID)
	if err != nil {
		log.Error().Err(err).Msg("credential lookup failed")
		return []model.Reply{model.TextReply("Couldn't submit your feedback right now. Please try again later.")}
	}
	if credential == nil {
		return []model.Reply{s.promptAuth(ev)}
	}

	sourceUUID := credential.Address
	if sourceUUID == "" {
		sourceUUID = HandleUUID(ev.Username)
	}

	targetUUID, err := s.resolver.Resolve(ctx, session.OtherHandle)
	if err != nil {
		log.Error().Err(err).Str("handle", session.OtherHandle).Msg("target resolution failed")
		return []model.Reply{model.TextReply("Couldn't submit your feedback right now. Please try again later.")}
	}

	sub := model.FeedbackSubmission{
		SourceUUID:    sourceUUID,
		TargetUUID:    targetUUID,
		TransactionID: uuid.NewString(),
		Review:        session.DraftReview,
		Stars:         session.DraftRating,
	}

	err = s.reputation.SubmitFeedback(ctx, ev.UserID, sub)
	s.recordSubmission(ctx, ev, sub, err == nil)

	if err != nil {
		if apperrors.IsUnauthenticated(err) {
			return []model.Reply{s.promptAuth(ev)}
		}
		log.Error().Err(err).Str("targetUuid", targetUUID).Msg("feedback submission failed")
		return []model.Reply{model.TextReply("Couldn't submit your feedback right now. Please try again later.")}
	}

	return []model.Reply{model.TextReply("Feedback submitted successfully! ✅")}
}

func (s *DialogService) recordSubmission(ctx context.Context, ev Event, sub model.FeedbackSubmission, succeeded bool) {
	eventType := audit.EventFeedbackSubmit
	if !succeeded {
		eventType = audit.EventFeedbackFailed
	}
	audit.Log(ctx, audit.Event{
		Type:           eventType,
		UserID:         ev.UserID,
		ConversationID: ev.ConversationID,
		Details: map[string]interface{}{
			"targetUuid":    sub.TargetUUID,
			"transactionId": sub.TransactionID,
			"stars":         sub.Stars,
		},
	})

	if s.feedbackAudit == nil {
		return
	}
	if err := s.feedbackAudit.Record(ctx, repository.RecordFeedbackParams{
		UserID:        ev.UserID,
		SourceUUID:    sub.SourceUUID,
		TargetUUID:    sub.TargetUUID,
		TransactionID: sub.TransactionID,
		Stars:         sub.Stars,
		Succeeded:     succeeded,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to record feedback audit row")
	}
}

func (s *DialogService) hasLiveCredential(ctx context.Context, userID string) bool {
	credential, err := s.credentials.Find(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Msg("credential lookup failed, treating as unauthenticated")
		return false
	}
	return credential != nil && credential.Live(time.Now())
}

func (s *DialogService) promptAuth(ev Event) model.Reply {
	query := url.Values{}
	query.Set("conversation", ev.ConversationID)
	query.Set("user", ev.UserID)
	if ev.Username != "" {
		query.Set("username", ev.Username)
	}
	return model.TextReply("Connect your wallet to continue 🔐:\n" + s.connectURL + "?" + query.Encode())
}

func promptUsername() model.Reply {
	return model.TextReply("Enter a user's username 👤:")
}

func (s *DialogService) lockFor(conversationID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[conversationID] = lock
	}
	return lock
}
