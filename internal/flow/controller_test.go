package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/gdg-ntpu/welcomebot/internal/models"
	"github.com/gdg-ntpu/welcomebot/internal/qa"
	"github.com/gdg-ntpu/welcomebot/internal/quiz"
	"github.com/gdg-ntpu/welcomebot/internal/reward"
	"github.com/gdg-ntpu/welcomebot/internal/store"
	"github.com/gdg-ntpu/welcomebot/internal/util"
)

type stubAnswerer struct {
	reply   string
	queries []string
}

func (s *stubAnswerer) Answer(ctx context.Context, query string) string {
	s.queries = append(s.queries, query)
	return s.reply
}

type recordingNotifier struct {
	mu       sync.Mutex
	calls    int
	name     string
	question string
}

func (n *recordingNotifier) Notify(ctx context.Context, displayName, question string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.name = displayName
	n.question = question
}

func newTestController(answerer Answerer) (*Controller, *store.InMemoryStore, *recordingNotifier) {
	st := store.NewInMemoryStore()
	notifier := &recordingNotifier{}
	c := NewController(st, quiz.NewEngine(), answerer, reward.NewIssuer(st), notifier)
	return c, st, notifier
}

func connect(t *testing.T, c *Controller, userID string) []models.Message {
	t.Helper()
	return c.Handle(context.Background(), models.Event{Kind: models.EventConnected, UserID: userID})
}

func send(t *testing.T, c *Controller, userID, text string) []models.Message {
	t.Helper()
	return c.Handle(context.Background(), models.Event{
		Kind:        models.EventTextReceived,
		UserID:      userID,
		DisplayName: "小明",
		Text:        text,
	})
}

func mustProfile(t *testing.T, st store.Store, userID string) *models.UserProfile {
	t.Helper()
	p, err := st.GetProfile(context.Background(), util.HashUserID(userID))
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p == nil {
		t.Fatalf("profile for %q not found", userID)
	}
	return p
}

// finishQuiz drives one user through the full quiz with all correct
// answers and returns the replies from the final answer.
func finishQuiz(t *testing.T, c *Controller, userID string) []models.Message {
	t.Helper()
	connect(t, c, userID)
	send(t, c, userID, TriggerReady)
	answers := []string{"A", "O", "D", "D"}
	for _, a := range answers {
		send(t, c, userID, a)
	}
	return send(t, c, userID, "O")
}

func TestConnectRegistersNewUser(t *testing.T) {
	c, st, _ := newTestController(&stubAnswerer{})

	msgs := connect(t, c, "user-a")
	if len(msgs) != 1 || msgs[0].Kind != models.MessageTemplate {
		t.Fatalf("expected single welcome template, got %#v", msgs)
	}
	if msgs[0].Title != "歡迎加入互動帳號！" {
		t.Errorf("unexpected welcome title %q", msgs[0].Title)
	}

	p := mustProfile(t, st, "user-a")
	if p.CurrentQuestion != 1 || p.QuizFinished {
		t.Errorf("fresh profile should start at question 1, got %+v", p)
	}
}

func TestConnectPreservesExistingProgress(t *testing.T) {
	c, st, _ := newTestController(&stubAnswerer{})

	connect(t, c, "user-a")
	send(t, c, "user-a", TriggerReady)
	send(t, c, "user-a", "A")

	connect(t, c, "user-a")
	p := mustProfile(t, st, "user-a")
	if p.CurrentQuestion != 2 {
		t.Errorf("reconnect reset progress: question = %d, want 2", p.CurrentQuestion)
	}
}

func TestMenuTriggersDoNotMutateProfile(t *testing.T) {
	c, st, _ := newTestController(&stubAnswerer{})
	connect(t, c, "user-a")
	before := *mustProfile(t, st, "user-a")

	if msgs := send(t, c, "user-a", TriggerWhatWeDo); len(msgs) != 1 || msgs[0].Title != "GDG on Campus NTPU的我們" {
		t.Errorf("unexpected reply for what-we-do trigger: %#v", msgs)
	}
	if msgs := send(t, c, "user-a", TriggerWantJoin); len(msgs) != 1 || msgs[0].Title != "參加問答活動有驚喜！" {
		t.Errorf("unexpected reply for join trigger: %#v", msgs)
	}

	after := *mustProfile(t, st, "user-a")
	if before != after {
		t.Errorf("menu triggers mutated profile: before %+v after %+v", before, after)
	}
}

func TestReadyPresentsCurrentQuestion(t *testing.T) {
	c, _, _ := newTestController(&stubAnswerer{})
	connect(t, c, "user-a")

	msgs := send(t, c, "user-a", TriggerReady)
	if len(msgs) != 1 || msgs[0].Title != "第 1 題" {
		t.Fatalf("expected first question template, got %#v", msgs)
	}
	if len(msgs[0].Buttons) != 4 {
		t.Errorf("question 1 should render 4 option buttons, got %d", len(msgs[0].Buttons))
	}
	if msgs[0].ImageURL == "" {
		t.Errorf("question template missing image url")
	}
}

func TestCorrectAnswerAdvancesAndShowsDetail(t *testing.T) {
	c, st, _ := newTestController(&stubAnswerer{})
	connect(t, c, "user-a")
	send(t, c, "user-a", TriggerReady)

	msgs := send(t, c, "user-a", "A")
	if len(msgs) != 4 {
		t.Fatalf("expected ack/detail/transition/next replies, got %d: %#v", len(msgs), msgs)
	}
	if msgs[0].Text != correctText {
		t.Errorf("first reply = %q, want %q", msgs[0].Text, correctText)
	}
	if msgs[2].Text != nextQuestionText {
		t.Errorf("transition reply = %q, want %q", msgs[2].Text, nextQuestionText)
	}
	if msgs[3].Title != "第 2 題" {
		t.Errorf("next question title = %q", msgs[3].Title)
	}

	p := mustProfile(t, st, "user-a")
	if p.CurrentQuestion != 2 || p.SeenDetail {
		t.Errorf("profile after correct answer = %+v", p)
	}
}

func TestWrongAnswerShowsDetailOnlyOnce(t *testing.T) {
	c, st, _ := newTestController(&stubAnswerer{})
	connect(t, c, "user-a")
	send(t, c, "user-a", TriggerReady)

	msgs := send(t, c, "user-a", "B")
	if len(msgs) != 4 {
		t.Fatalf("expected wrong/detail/retry/question replies, got %d", len(msgs))
	}
	if msgs[0].Text != wrongText || msgs[2].Text != tryAgainText {
		t.Errorf("unexpected wrong-answer replies: %#v", msgs)
	}
	if !mustProfile(t, st, "user-a").SeenDetail {
		t.Fatalf("SeenDetail not persisted after wrong answer")
	}

	// The correct answer after a wrong attempt must not repeat the
	// detail text.
	msgs = send(t, c, "user-a", "A")
	if len(msgs) != 3 {
		t.Fatalf("expected ack/transition/next without detail, got %d: %#v", len(msgs), msgs)
	}
	if msgs[0].Text != correctText {
		t.Errorf("first reply = %q, want %q", msgs[0].Text, correctText)
	}
	p := mustProfile(t, st, "user-a")
	if p.CurrentQuestion != 2 || p.SeenDetail {
		t.Errorf("SeenDetail should reset on advance, got %+v", p)
	}
}

func TestUnrecognizedAnswerReprompts(t *testing.T) {
	c, st, _ := newTestController(&stubAnswerer{})
	connect(t, c, "user-a")
	send(t, c, "user-a", TriggerReady)
	before := *mustProfile(t, st, "user-a")

	msgs := send(t, c, "user-a", "嗨嗨")
	if len(msgs) != 2 || msgs[0].Text != invalidChoiceText || msgs[1].Title != "第 1 題" {
		t.Fatalf("expected re-prompt with question, got %#v", msgs)
	}
	if after := *mustProfile(t, st, "user-a"); before != after {
		t.Errorf("invalid token mutated profile: %+v vs %+v", before, after)
	}
}

func TestQuizCompletionIssuesRewardCodeOnce(t *testing.T) {
	c, st, _ := newTestController(&stubAnswerer{})

	msgs := finishQuiz(t, c, "user-a")
	if len(msgs) != 5 {
		t.Fatalf("expected ack/detail/award/notice/invite, got %d: %#v", len(msgs), msgs)
	}
	if msgs[0].Text != allCorrectText {
		t.Errorf("completion ack = %q", msgs[0].Text)
	}
	if msgs[3].Text != eventNoticeText {
		t.Errorf("event notice = %q", msgs[3].Text)
	}

	p := mustProfile(t, st, "user-a")
	if !p.QuizFinished {
		t.Fatalf("quiz not marked finished: %+v", p)
	}
	if len(p.RewardCode) != 7 {
		t.Fatalf("reward code %q should be 3 letters + 4 digits", p.RewardCode)
	}
	if !strings.Contains(msgs[2].Body, p.RewardCode) {
		t.Errorf("award message %q does not carry code %q", msgs[2].Body, p.RewardCode)
	}

	// Replaying the final answer must not change the stored code.
	send(t, c, "user-a", "O")
	if again := mustProfile(t, st, "user-a"); again.RewardCode != p.RewardCode {
		t.Errorf("reward code changed on replay: %q -> %q", p.RewardCode, again.RewardCode)
	}
}

func TestReadyAfterFinishReturnsSameCode(t *testing.T) {
	c, st, _ := newTestController(&stubAnswerer{})
	finishQuiz(t, c, "user-a")
	code := mustProfile(t, st, "user-a").RewardCode

	msgs := send(t, c, "user-a", TriggerReady)
	if len(msgs) != 3 {
		t.Fatalf("expected award/notice/invite, got %#v", msgs)
	}
	if !strings.Contains(msgs[0].Body, code) {
		t.Errorf("re-entry award message %q missing code %q", msgs[0].Body, code)
	}
}

func TestChatFlowPositiveFeedback(t *testing.T) {
	answerer := &stubAnswerer{reply: "我們每週三有社課！"}
	c, st, notifier := newTestController(answerer)
	finishQuiz(t, c, "user-a")

	msgs := send(t, c, "user-a", TriggerStartChat)
	if len(msgs) != 1 || msgs[0].Text != chatGreetingText {
		t.Fatalf("expected greeting, got %#v", msgs)
	}
	if !mustProfile(t, st, "user-a").AwaitingReply {
		t.Fatalf("AwaitingReply not set after chat start")
	}

	msgs = send(t, c, "user-a", "社課是什麼時候？")
	if len(msgs) != 2 || msgs[0].Text != answerer.reply {
		t.Fatalf("expected answer plus feedback prompt, got %#v", msgs)
	}
	if msgs[1].Title != "你認為我回答得如何？" {
		t.Errorf("feedback prompt title = %q", msgs[1].Title)
	}
	p := mustProfile(t, st, "user-a")
	if !p.PendingFeedback || p.LastQuestion != "社課是什麼時候？" {
		t.Errorf("profile after question = %+v", p)
	}

	msgs = send(t, c, "user-a", FeedbackPositive)
	if len(msgs) != 2 || msgs[0].Text != feedbackThanks {
		t.Fatalf("expected thanks plus invite, got %#v", msgs)
	}
	p = mustProfile(t, st, "user-a")
	if p.AwaitingReply || p.PendingFeedback {
		t.Errorf("feedback flags not cleared: %+v", p)
	}
	if notifier.calls != 0 {
		t.Errorf("positive feedback must not escalate, notified %d times", notifier.calls)
	}
}

func TestNegativeFeedbackEscalates(t *testing.T) {
	c, st, notifier := newTestController(&stubAnswerer{reply: "也許吧"})
	finishQuiz(t, c, "user-a")
	send(t, c, "user-a", TriggerStartChat)
	send(t, c, "user-a", "學費多少？")

	msgs := send(t, c, "user-a", FeedbackNegative)
	if len(msgs) != 2 || msgs[0].Text != escalatedText {
		t.Fatalf("expected escalation ack, got %#v", msgs)
	}
	if notifier.calls != 1 {
		t.Fatalf("staff notified %d times, want 1", notifier.calls)
	}
	if notifier.name != "小明" || notifier.question != "學費多少？" {
		t.Errorf("notified name=%q question=%q", notifier.name, notifier.question)
	}
	p := mustProfile(t, st, "user-a")
	if p.AwaitingReply || p.PendingFeedback {
		t.Errorf("feedback flags not cleared: %+v", p)
	}
}

func TestUnrecognizedFeedbackRepromptsWithoutMutation(t *testing.T) {
	c, st, notifier := newTestController(&stubAnswerer{reply: "也許吧"})
	finishQuiz(t, c, "user-a")
	send(t, c, "user-a", TriggerStartChat)
	send(t, c, "user-a", "學費多少？")
	before := *mustProfile(t, st, "user-a")

	msgs := send(t, c, "user-a", "可能吧")
	if len(msgs) != 1 || msgs[0].Title != "你認為我回答得如何？" {
		t.Fatalf("expected feedback prompt re-sent, got %#v", msgs)
	}
	if after := *mustProfile(t, st, "user-a"); before != after {
		t.Errorf("unrecognized feedback mutated profile: %+v vs %+v", before, after)
	}
	if notifier.calls != 0 {
		t.Errorf("unexpected escalation")
	}
}

func TestFinishedUserWithoutChatGetsInvite(t *testing.T) {
	c, _, _ := newTestController(&stubAnswerer{})
	finishQuiz(t, c, "user-a")

	msgs := send(t, c, "user-a", "隨便說點什麼")
	if len(msgs) != 1 || msgs[0].Title != "還想多認識我們嗎?" {
		t.Fatalf("expected chat invite, got %#v", msgs)
	}
}

type flatEmbedder struct {
	calls int
}

func (e *flatEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	e.calls++
	return []float64{0, 1, 0}, nil
}

type countingCompleter struct {
	calls int
}

func (m *countingCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.calls++
	return "社團精神", nil
}

// A question that misses the index on both the original and the
// rewritten query must come back as the literal no-answer fallback and
// never reach answer generation.
func TestOffTopicQuestionReturnsRetrievalFallback(t *testing.T) {
	embedder := &flatEmbedder{}
	completer := &countingCompleter{}
	index := qa.NewIndex(embedder, []models.AnswerVector{
		{Label: "社團精神", Text: "社團精神", Answer: "互相學習", Embedding: []float64{1, 0, 0}},
	})
	pipeline := qa.NewPipeline(index, completer)

	st := store.NewInMemoryStore()
	c := NewController(st, quiz.NewEngine(), pipeline, reward.NewIssuer(st), &recordingNotifier{})
	finishQuiz(t, c, "user-a")
	send(t, c, "user-a", TriggerStartChat)

	msgs := send(t, c, "user-a", "我是大一新生要怎麼辦")
	if len(msgs) != 2 {
		t.Fatalf("expected answer plus feedback prompt, got %#v", msgs)
	}
	if msgs[0].Text != qa.FallbackNoAnswer {
		t.Errorf("answer = %q, want the no-answer fallback", msgs[0].Text)
	}
	if completer.calls != 1 {
		t.Errorf("completer called %d times, want 1 (rewrite only)", completer.calls)
	}
}

type failingStore struct {
	*store.InMemoryStore
}

func (f *failingStore) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	return nil, errors.New("connection refused")
}

func TestStoreFailureDegradesToRetryReply(t *testing.T) {
	st := &failingStore{InMemoryStore: store.NewInMemoryStore()}
	c := NewController(st, quiz.NewEngine(), &stubAnswerer{}, reward.NewIssuer(st), &recordingNotifier{})

	msgs := send(t, c, "user-a", "A")
	if len(msgs) != 1 || msgs[0].Text != unavailableText {
		t.Fatalf("expected degraded retry reply, got %#v", msgs)
	}
}

func TestConcurrentSameUserAnswersStayConsistent(t *testing.T) {
	c, st, _ := newTestController(&stubAnswerer{})
	connect(t, c, "user-a")
	send(t, c, "user-a", TriggerReady)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			send(t, c, "user-a", "A")
		}()
	}
	wg.Wait()

	// One of the concurrent deliveries answered question 1 correctly;
	// the rest were judged against whatever question was current.
	// Serialization guarantees the profile never skips past question 2
	// from a single correct token ("A" is wrong for questions 2-5).
	p := mustProfile(t, st, "user-a")
	if p.CurrentQuestion != 2 || p.QuizFinished {
		t.Errorf("concurrent answers corrupted progress: %+v", p)
	}
}
