// Package models defines the core data structures for welcomebot.
//
// It includes the inbound gateway event union, outbound message payloads,
// the per-user conversation profile, and the static quiz and answer-index
// reference types shared across modules.
package models

import "errors"

// EventKind identifies the kind of inbound gateway event.
type EventKind string

const (
	// EventConnected fires when a user adds the bot (follow event).
	EventConnected EventKind = "connected"
	// EventTextReceived fires when a user sends a text message.
	EventTextReceived EventKind = "text_received"
)

// Event is an inbound event delivered by the messaging gateway.
// The gateway has already verified the request signature and resolved the
// sender's display name; the bot core consumes only what is carried here.
type Event struct {
	Kind        EventKind `json:"kind"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Text        string    `json:"text,omitempty"`
}

// IsValidEventKind checks if the given event kind is supported.
func IsValidEventKind(k EventKind) bool {
	switch k {
	case EventConnected, EventTextReceived:
		return true
	default:
		return false
	}
}

// MessageKind identifies the shape of an outbound message payload.
type MessageKind string

const (
	// MessageText is a plain text message.
	MessageText MessageKind = "text"
	// MessageTemplate is a structured template the gateway renders
	// as a rich layout (card with buttons, image, etc.).
	MessageTemplate MessageKind = "template"
)

// Button is a tappable action on a template message. Tapping it makes the
// gateway deliver Text back to us as a normal text message.
type Button struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Message is a single outbound payload returned to the gateway for
// delivery. The core never delivers messages itself.
type Message struct {
	Kind     MessageKind `json:"kind"`
	Text     string      `json:"text,omitempty"`
	Title    string      `json:"title,omitempty"`
	Body     string      `json:"body,omitempty"`
	ImageURL string      `json:"image_url,omitempty"`
	Buttons  []Button    `json:"buttons,omitempty"`
}

// TextMessage builds a plain text message payload.
func TextMessage(text string) Message {
	return Message{Kind: MessageText, Text: text}
}

// TemplateMessage builds a structured template message payload.
func TemplateMessage(title, body string, buttons ...Button) Message {
	return Message{Kind: MessageTemplate, Title: title, Body: body, Buttons: buttons}
}

// UserProfile is the persisted per-user conversation state, keyed by the
// hashed user id (never the raw platform id).
//
// Invariants: CurrentQuestion is in [1, N+1] for N quiz questions;
// RewardCode is non-empty if and only if QuizFinished is true;
// AwaitingReply and PendingFeedback are only meaningful once finished.
type UserProfile struct {
	ID              string `bson:"_id" json:"id"`
	CurrentQuestion int    `bson:"current_question" json:"current_question"`
	QuizFinished    bool   `bson:"quiz_finished" json:"quiz_finished"`
	RewardCode      string `bson:"reward_code,omitempty" json:"reward_code,omitempty"`
	AwaitingReply   bool   `bson:"awaiting_reply" json:"awaiting_reply"`
	PendingFeedback bool   `bson:"pending_feedback" json:"pending_feedback"`
	SeenDetail      bool   `bson:"seen_detail" json:"seen_detail"`
	LastQuestion    string `bson:"last_question,omitempty" json:"last_question,omitempty"`
}

// NewUserProfile returns the default profile created on first contact.
func NewUserProfile(id string) UserProfile {
	return UserProfile{ID: id, CurrentQuestion: 1}
}

// ProfileUpdate is a partial profile update. Nil fields are left untouched
// by the store, so concurrent handlers only overwrite what they changed.
type ProfileUpdate struct {
	CurrentQuestion *int    `bson:"current_question,omitempty"`
	QuizFinished    *bool   `bson:"quiz_finished,omitempty"`
	RewardCode      *string `bson:"reward_code,omitempty"`
	AwaitingReply   *bool   `bson:"awaiting_reply,omitempty"`
	PendingFeedback *bool   `bson:"pending_feedback,omitempty"`
	SeenDetail      *bool   `bson:"seen_detail,omitempty"`
	LastQuestion    *string `bson:"last_question,omitempty"`
}

// Apply copies the set fields of the update onto the profile.
func (u ProfileUpdate) Apply(p *UserProfile) {
	if u.CurrentQuestion != nil {
		p.CurrentQuestion = *u.CurrentQuestion
	}
	if u.QuizFinished != nil {
		p.QuizFinished = *u.QuizFinished
	}
	if u.RewardCode != nil {
		p.RewardCode = *u.RewardCode
	}
	if u.AwaitingReply != nil {
		p.AwaitingReply = *u.AwaitingReply
	}
	if u.PendingFeedback != nil {
		p.PendingFeedback = *u.PendingFeedback
	}
	if u.SeenDetail != nil {
		p.SeenDetail = *u.SeenDetail
	}
	if u.LastQuestion != nil {
		p.LastQuestion = *u.LastQuestion
	}
}

// Int returns a pointer to v, for building ProfileUpdate literals.
func Int(v int) *int { return &v }

// Bool returns a pointer to v, for building ProfileUpdate literals.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v, for building ProfileUpdate literals.
func String(v string) *string { return &v }

// QuestionType defines how a quiz question is answered.
type QuestionType string

const (
	// QuestionChoice is a multiple-choice question (A/B/C/D).
	QuestionChoice QuestionType = "choice"
	// QuestionBoolean is a true/false question (O/X).
	QuestionBoolean QuestionType = "boolean"
)

// QuizQuestion is one static quiz question, immutable for the process
// lifetime.
type QuizQuestion struct {
	ID       int
	Prompt   string
	Type     QuestionType
	Options  []string
	Correct  string
	Detail   string
	ImageURL string
}

// AnswerVector is one stored embedding row of the answer index: the
// canonical label or one of its paraphrases, with the topic's answer text
// and the precomputed vector for that string.
type AnswerVector struct {
	Label     string    `bson:"label" json:"label"`
	Text      string    `bson:"text" json:"text"`
	Answer    string    `bson:"answer" json:"answer"`
	Embedding []float64 `bson:"embedding" json:"embedding"`
}

// AnswerEntry groups every vector belonging to one Q&A topic. Built from
// AnswerVector rows when the index is loaded; immutable reference data.
type AnswerEntry struct {
	Label       string
	Paraphrases []string
	Answer      string
	Vectors     [][]float64
}

// Error variables for better error handling and testability
var (
	// ErrNotFound indicates a lookup for a question id outside the
	// configured range. This is a configuration or programming defect,
	// never a user-input condition.
	ErrNotFound = errors.New("question not found")
)

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates a successful API response.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an error API response.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
