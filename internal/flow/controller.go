package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gdg-ntpu/welcomebot/internal/models"
	"github.com/gdg-ntpu/welcomebot/internal/notify"
	"github.com/gdg-ntpu/welcomebot/internal/quiz"
	"github.com/gdg-ntpu/welcomebot/internal/reward"
	"github.com/gdg-ntpu/welcomebot/internal/store"
	"github.com/gdg-ntpu/welcomebot/internal/util"
)

// Answerer produces a user-facing answer for a free-form question. It
// never fails; degraded paths surface as apology text.
type Answerer interface {
	Answer(ctx context.Context, query string) string
}

// Controller drives the per-user conversation: onboarding templates, the
// quiz progression, reward issuance, and the retrieval QA loop. All
// handling for one user is serialized; Handle is safe for concurrent use.
type Controller struct {
	store    store.Store
	quiz     *quiz.Engine
	answerer Answerer
	rewards  *reward.Issuer
	notifier notify.Notifier
	locks    *userLocks
}

// NewController assembles a controller from its collaborators.
func NewController(st store.Store, engine *quiz.Engine, answerer Answerer, rewards *reward.Issuer, notifier notify.Notifier) *Controller {
	return &Controller{
		store:    st,
		quiz:     engine,
		answerer: answerer,
		rewards:  rewards,
		notifier: notifier,
		locks:    newUserLocks(),
	}
}

// Handle processes one inbound event and returns the ordered replies to
// send back. Unknown event kinds yield no replies.
func (c *Controller) Handle(ctx context.Context, event models.Event) []models.Message {
	if event.UserID == "" {
		slog.Error("Controller.Handle missing user id", "kind", event.Kind)
		return nil
	}
	key := util.HashUserID(event.UserID)

	release := c.locks.acquire(key)
	defer release()

	switch event.Kind {
	case models.EventConnected:
		return c.handleConnected(ctx, key)
	case models.EventTextReceived:
		return c.handleText(ctx, key, event)
	default:
		slog.Error("Controller.Handle unknown event kind", "kind", event.Kind)
		return nil
	}
}

// handleConnected registers the user if new and sends the welcome
// template. Reconnects of a known user get the same welcome without
// resetting their progress.
func (c *Controller) handleConnected(ctx context.Context, key string) []models.Message {
	created, err := c.store.InsertProfileIfAbsent(ctx, models.NewUserProfile(key))
	if err != nil {
		slog.Error("Controller.handleConnected failed to register profile", "error", err)
	} else {
		slog.Debug("Controller.handleConnected", "created", created)
	}
	return []models.Message{welcomeMessage()}
}

func (c *Controller) handleText(ctx context.Context, key string, event models.Event) []models.Message {
	text := strings.TrimSpace(event.Text)

	profile, ok := c.loadProfile(ctx, key)
	if !ok {
		return []models.Message{models.TextMessage(unavailableText)}
	}

	// Menu triggers are recognized in any state and never mutate the
	// profile, except the quiz entry which inspects progress.
	switch text {
	case TriggerWhatWeDo:
		return []models.Message{whatWeDoMessage()}
	case TriggerWantJoin:
		return []models.Message{joinPromptMessage()}
	case TriggerReady:
		return c.handleReady(ctx, profile)
	}

	if profile.QuizFinished {
		return c.handleFinished(ctx, profile, text, event.DisplayName)
	}
	return c.handleQuiz(ctx, profile, text)
}

// handleReady (re)enters the quiz. A finished user gets their existing
// reward code back instead of a fresh question.
func (c *Controller) handleReady(ctx context.Context, profile *models.UserProfile) []models.Message {
	if profile.QuizFinished {
		return []models.Message{
			awardCodeMessage(profile.RewardCode),
			models.TextMessage(eventNoticeText),
			chatInviteMessage("還想多認識我們嗎?"),
		}
	}
	q, err := c.quiz.Question(profile.CurrentQuestion)
	if err != nil {
		slog.Error("Controller.handleReady question lookup failed", "question", profile.CurrentQuestion, "error", err)
		return []models.Message{models.TextMessage(unavailableText)}
	}
	return []models.Message{questionMessage(q)}
}

// handleQuiz evaluates one answer against the current question and
// advances, re-prompts, or completes the quiz.
func (c *Controller) handleQuiz(ctx context.Context, profile *models.UserProfile, text string) []models.Message {
	q, err := c.quiz.Question(profile.CurrentQuestion)
	if err != nil {
		slog.Error("Controller.handleQuiz question lookup failed", "question", profile.CurrentQuestion, "error", err)
		return []models.Message{models.TextMessage(unavailableText)}
	}

	if !c.quiz.IsOption(q.ID, text) {
		return []models.Message{
			models.TextMessage(invalidChoiceText),
			questionMessage(q),
		}
	}

	if !c.quiz.Check(q.ID, text) {
		c.updateProfile(ctx, profile.ID, models.ProfileUpdate{SeenDetail: models.Bool(true)})
		profile.SeenDetail = true
		return []models.Message{
			models.TextMessage(wrongText),
			models.TextMessage(q.Detail),
			models.TextMessage(tryAgainText),
			questionMessage(q),
		}
	}

	// Correct answer. The detail is shown at most once per question:
	// skip it here if a wrong attempt already revealed it.
	seenDetail := profile.SeenDetail
	finished := c.quiz.Advance(profile)

	if finished {
		code := profile.RewardCode
		if code == "" {
			code = c.rewards.Issue(ctx, profile.ID)
			profile.RewardCode = code
		}
		c.updateProfile(ctx, profile.ID, models.ProfileUpdate{
			CurrentQuestion: models.Int(profile.CurrentQuestion),
			QuizFinished:    models.Bool(true),
			RewardCode:      models.String(code),
			SeenDetail:      models.Bool(false),
		})

		msgs := []models.Message{models.TextMessage(allCorrectText)}
		if !seenDetail {
			msgs = append(msgs, models.TextMessage(q.Detail))
		}
		return append(msgs,
			awardCodeMessage(code),
			models.TextMessage(eventNoticeText),
			chatInviteMessage("還有問題想要解答嗎?"),
		)
	}

	c.updateProfile(ctx, profile.ID, models.ProfileUpdate{
		CurrentQuestion: models.Int(profile.CurrentQuestion),
		SeenDetail:      models.Bool(false),
	})

	next, err := c.quiz.Question(profile.CurrentQuestion)
	if err != nil {
		slog.Error("Controller.handleQuiz next question lookup failed", "question", profile.CurrentQuestion, "error", err)
		return []models.Message{models.TextMessage(unavailableText)}
	}

	msgs := []models.Message{models.TextMessage(correctText)}
	if !seenDetail {
		msgs = append(msgs, models.TextMessage(q.Detail))
	}
	return append(msgs,
		models.TextMessage(nextQuestionText),
		questionMessage(next),
	)
}

// handleFinished runs the post-quiz QA loop: invite, free-form question,
// feedback, and optional staff escalation.
func (c *Controller) handleFinished(ctx context.Context, profile *models.UserProfile, text, displayName string) []models.Message {
	if !profile.AwaitingReply {
		if text == TriggerStartChat {
			c.updateProfile(ctx, profile.ID, models.ProfileUpdate{AwaitingReply: models.Bool(true)})
			return []models.Message{models.TextMessage(chatGreetingText)}
		}
		return []models.Message{chatInviteMessage("還想多認識我們嗎?")}
	}

	if !profile.PendingFeedback {
		answer := c.answerer.Answer(ctx, text)
		c.updateProfile(ctx, profile.ID, models.ProfileUpdate{
			PendingFeedback: models.Bool(true),
			LastQuestion:    models.String(text),
		})
		return []models.Message{
			models.TextMessage(answer),
			feedbackMessage(),
		}
	}

	switch text {
	case FeedbackPositive:
		c.updateProfile(ctx, profile.ID, models.ProfileUpdate{
			AwaitingReply:   models.Bool(false),
			PendingFeedback: models.Bool(false),
		})
		return []models.Message{
			models.TextMessage(feedbackThanks),
			chatInviteMessage("還有問題想要解答嗎?"),
		}
	case FeedbackNegative:
		c.updateProfile(ctx, profile.ID, models.ProfileUpdate{
			AwaitingReply:   models.Bool(false),
			PendingFeedback: models.Bool(false),
		})
		c.notifier.Notify(ctx, displayName, profile.LastQuestion)
		return []models.Message{
			models.TextMessage(escalatedText),
			chatInviteMessage("還有問題想要解答嗎?"),
		}
	default:
		// Unrecognized token while a feedback decision is pending:
		// re-ask without touching the profile.
		return []models.Message{feedbackMessage()}
	}
}

// loadProfile fetches the profile, registering a fresh one for unknown
// users. Store failures degrade to a generic retry reply.
func (c *Controller) loadProfile(ctx context.Context, key string) (*models.UserProfile, bool) {
	profile, err := c.store.GetProfile(ctx, key)
	if err != nil {
		slog.Error("Controller.loadProfile failed", "error", err)
		return nil, false
	}
	if profile != nil {
		return profile, true
	}
	fresh := models.NewUserProfile(key)
	if _, err := c.store.InsertProfileIfAbsent(ctx, fresh); err != nil {
		slog.Error("Controller.loadProfile failed to register profile", "error", err)
		return nil, false
	}
	return &fresh, true
}

// updateProfile persists a partial update, logging failures without
// aborting the reply.
func (c *Controller) updateProfile(ctx context.Context, key string, upd models.ProfileUpdate) {
	if err := c.store.UpdateProfile(ctx, key, upd); err != nil {
		slog.Error("Controller.updateProfile failed", "error", err)
	}
}
