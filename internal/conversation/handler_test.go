package conversation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

type recordingHandler struct {
	got  MessageRequest
	resp *Response
}

func (r *recordingHandler) HandleMessage(ctx context.Context, req MessageRequest) *Response {
	r.got = req
	return r.resp
}

func TestChatAcceptsLegacyFieldNames(t *testing.T) {
	orch := &recordingHandler{resp: &Response{Success: true, Message: "hi", NextAction: ActionAwaitingInfo}}
	h := NewHandler(orch, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"messageText":"I feel low","patientIdentifier":"p-7","timeZone":"Asia/Kolkata"}`))
	w := httptest.NewRecorder()
	h.Chat(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "I feel low", orch.got.UserMessage)
	assert.Equal(t, "p-7", orch.got.PatientID)
	assert.Equal(t, "Asia/Kolkata", orch.got.TimeZone)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "awaiting-info", body["nextAction"])
}

func TestChatPassesSessionState(t *testing.T) {
	orch := &recordingHandler{resp: &Response{Success: true, NextAction: ActionTherapistSelected}}
	h := NewHandler(orch, nil)

	payload := `{
		"userMessage": "the first one",
		"patientId": "p-1",
		"matchedTherapistId": "",
		"conversationHistory": [{"role":"assistant","content":"Here are some options"}],
		"pendingTherapistMatches": [{"id":"t1","name":"Dr. Anita Rao"}]
	}`
	w := httptest.NewRecorder()
	h.Chat(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(payload)))

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, orch.got.PendingTherapistMatches, 1)
	assert.Equal(t, "t1", orch.got.PendingTherapistMatches[0].ID)
	require.Len(t, orch.got.ConversationHistory, 1)
	assert.Equal(t, ChatRoleAssistant, orch.got.ConversationHistory[0].Role)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	orch := &recordingHandler{}
	h := NewHandler(orch, nil)

	w := httptest.NewRecorder()
	h.Chat(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"userMessage":"  "}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.Chat(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatReportsTurnFailure(t *testing.T) {
	orch := &recordingHandler{resp: &Response{Success: false, NextAction: ActionError, Message: failureMessage, Error: "internal_error"}}
	h := NewHandler(orch, nil)

	w := httptest.NewRecorder()
	h.Chat(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"userMessage":"hello"}`)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), failureMessage[:20])
}
