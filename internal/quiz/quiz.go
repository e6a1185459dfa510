// Package quiz implements the linear welcome-quiz engine: a fixed ordered
// question set, answer validation, and per-user progress advancement.
package quiz

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gdg-ntpu/welcomebot/internal/models"
)

// defaultQuestions is the welcome-event question set, loaded at startup
// and immutable for the process lifetime.
var defaultQuestions = []models.QuizQuestion{
	{
		ID:       1,
		Prompt:   "請問我們的社團名稱是？\nA. GDG on Campus NTPU\nB. GDSC NTPU\nC. GDG\nD. GDE",
		Type:     models.QuestionChoice,
		Options:  []string{"A", "B", "C", "D"},
		Correct:  "A",
		Detail:   "B. 是我們的舊名，C. 跟 D. 則是 Google 官方其他面向社會人士的計畫，為了替各位提供產業前沿見解、分享職涯經驗，本社也會盡可能增加和他們交流互動的機會哦！",
		ImageURL: "https://drive.google.com/uc?export=view&id=1ZB5JuJQVE4RQURNftU9tJ3QMRxEpbshC",
	},
	{
		ID:       2,
		Prompt:   "請問 GDG on Campus NTPU 是否會參加 9/24 的社團聯展？",
		Type:     models.QuestionBoolean,
		Options:  []string{"O", "X"},
		Correct:  "O",
		Detail:   "我們將參與今年的聯展，當天將會有不少社團介紹環節，有興趣的朋友千萬不要錯過～",
		ImageURL: "https://drive.google.com/uc?export=view&id=1kGnqsYLJd3ZuNwwNJkps8o6rdaj2i06k",
	},
	{
		ID:       3,
		Prompt:   "加入 GDG on Campus NTPU 一年後，你最可能成為什麼樣的人？\nA. 了解近年新穎科技趨勢的人\nB. 擁有亮眼專案開發經歷的人\nC. 擅長與夥伴們高效合作的人\nD. 以上皆是",
		Type:     models.QuestionChoice,
		Options:  []string{"A", "B", "C", "D"},
		Correct:  "D",
		Detail:   "除了社課，我們也有幹部與社員一同參與開發與討論的「專案制度」。\n每位社員都能發揮自己的專長領域與創意，彼此互相學習、互相支持，社團才得以茁壯💪！",
		ImageURL: "https://drive.google.com/uc?export=view&id=1VbIgbcDWzWfW9ZqAZYLtoGWUe2Rte-dz",
	},
	{
		ID:       4,
		Prompt:   "請問我們去年的活動主題不包含？\nA. UI/UX\nB. PM（專案經理）演講\nC. 數據分析\nD. 以上都辦過",
		Type:     models.QuestionChoice,
		Options:  []string{"A", "B", "C", "D"},
		Correct:  "D",
		Detail:   "我們的社團課程與活動，除了上述領域之外，今年也會新增 AI、生產力工具主題，以及基礎程式教學，不僅生活實用性高，也十分適合想要跨領域的各位加入。",
		ImageURL: "https://drive.google.com/uc?export=view&id=1FapjSmiyKKgA4vzpA27WG2uzs-3X1r4I",
	},
	{
		ID:       5,
		Prompt:   "我們是北大最厲害的學術型社團嗎？",
		Type:     models.QuestionBoolean,
		Options:  []string{"O", "X"},
		Correct:  "O",
		Detail:   "不用懷疑，我們就是最厲害的學術性社團，我們已經連續兩年拿到北大社團評鑑的學術性特優了🏆！",
		ImageURL: "https://drive.google.com/uc?export=view&id=1QHQKI0lQYSKf2l1viUIklj6QgyFbDYSC",
	},
}

// Engine answers questions about the fixed question set and advances
// per-user progress. Safe for concurrent use: the set never mutates.
type Engine struct {
	questions []models.QuizQuestion
}

// NewEngine creates an engine over the default welcome-event questions.
func NewEngine() *Engine {
	return NewEngineWithQuestions(defaultQuestions)
}

// NewEngineWithQuestions creates an engine over a custom question set.
// Questions must carry consecutive 1-based ids.
func NewEngineWithQuestions(questions []models.QuizQuestion) *Engine {
	return &Engine{questions: questions}
}

// Total returns the number of questions.
func (e *Engine) Total() int {
	return len(e.questions)
}

// Question returns the question with the given 1-based id. An id outside
// [1, Total] is a programming or configuration defect and returns
// models.ErrNotFound.
func (e *Engine) Question(id int) (models.QuizQuestion, error) {
	if id < 1 || id > len(e.questions) {
		slog.Error("quiz question id out of range", "id", id, "total", len(e.questions))
		return models.QuizQuestion{}, fmt.Errorf("question %d: %w", id, models.ErrNotFound)
	}
	return e.questions[id-1], nil
}

// Normalize canonicalizes a raw answer: whitespace trimmed, uppercased.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// IsOption reports whether the normalized input is a recognized answer
// token for the question. Unrecognized tokens mean "invalid choice,
// re-prompt", never "wrong answer".
func (e *Engine) IsOption(id int, raw string) bool {
	q, err := e.Question(id)
	if err != nil {
		return false
	}
	token := Normalize(raw)
	for _, opt := range q.Options {
		if token == opt {
			return true
		}
	}
	return false
}

// Check reports whether the normalized input is the correct token for the
// question. Returns false for every other token, including tokens outside
// the valid set.
func (e *Engine) Check(id int, raw string) bool {
	q, err := e.Question(id)
	if err != nil {
		return false
	}
	return e.IsOption(id, raw) && Normalize(raw) == q.Correct
}

// Advance moves the profile to the next question after a correct answer.
// Past the final question it marks the quiz finished. Returns true when
// the terminal state was reached by this call.
func (e *Engine) Advance(p *models.UserProfile) bool {
	p.CurrentQuestion++
	if p.CurrentQuestion > len(e.questions) {
		p.QuizFinished = true
		slog.Debug("quiz finished", "id", p.ID)
		return true
	}
	return false
}
