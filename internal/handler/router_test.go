package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/tavern-relay/internal/model/chat"
	chatService "github.com/zhouzirui/tavern-relay/internal/service/chat"
	"github.com/zhouzirui/tavern-relay/internal/service/feed"
)

type echoRelay struct {
	store *chatService.Service
}

func (e echoRelay) HandleMessage(ctx context.Context, chatID int64, text string) (string, error) {
	if _, err := e.store.Append(ctx, chatID, chat.UserTurn(text)); err != nil {
		return "", err
	}
	if _, err := e.store.Append(ctx, chatID, chat.AssistantTurn(text)); err != nil {
		return "", err
	}
	return text, nil
}

func TestRouterServesHealthWebhookAndTranscript(t *testing.T) {
	store := chatService.NewService("sys")
	router := NewRouter(echoRelay{store: store}, store, feed.NewHub(), "")

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"running"}`, resp.Body.String())

	update := `{"update_id":1,"message":{"message_id":1,"chat":{"id":5},"text":"ping"}}`
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(update)))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/chats/5/turns", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Turns []chat.Turn `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Len(t, body.Turns, 3)
}

func TestRouterRejectsWrongMethod(t *testing.T) {
	store := chatService.NewService("sys")
	router := NewRouter(echoRelay{store: store}, store, feed.NewHub(), "")

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Code)
}
