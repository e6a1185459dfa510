// Package testutil provides common test utilities and helpers shared by
// welcomebot tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gdg-ntpu/welcomebot/internal/api"
	"github.com/gdg-ntpu/welcomebot/internal/flow"
	"github.com/gdg-ntpu/welcomebot/internal/notify"
	"github.com/gdg-ntpu/welcomebot/internal/quiz"
	"github.com/gdg-ntpu/welcomebot/internal/reward"
	"github.com/gdg-ntpu/welcomebot/internal/store"
)

// StaticAnswerer answers every question with the same canned reply.
type StaticAnswerer struct {
	Reply string
}

// Answer implements flow.Answerer.
func (a StaticAnswerer) Answer(ctx context.Context, query string) string {
	return a.Reply
}

// NewTestServer creates an API server with in-memory dependencies.
// This centralizes the wiring used across multiple test files.
func NewTestServer(answerer flow.Answerer) (*api.Server, *store.InMemoryStore) {
	st := store.NewInMemoryStore()
	controller := flow.NewController(st, quiz.NewEngine(), answerer, reward.NewIssuer(st), notify.NoopNotifier{})
	return api.NewServer(controller, api.WithAddr(":0")), st
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it
// doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes a JSON response and validates the status
// field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with an optional JSON body.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}
