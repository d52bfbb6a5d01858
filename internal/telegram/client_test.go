package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	path string
	body map[string]any
}

func newTelegramServer(t *testing.T, reply string) (*httptest.Server, func() []recordedCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []recordedCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		call := recordedCall{path: r.URL.Path}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &call.body)
		}
		mu.Lock()
		calls = append(calls, call)
		mu.Unlock()
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedCall(nil), calls...)
	}
}

func TestSendMessagePostsChatAndText(t *testing.T) {
	srv, calls := newTelegramServer(t, `{"ok":true,"result":{"message_id":1}}`)
	c := NewClient(srv.URL, 2*time.Second)

	require.NoError(t, c.SendMessage(context.Background(), 123, "hello"))

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "/sendMessage", got[0].path)
	assert.Equal(t, float64(123), got[0].body["chat_id"])
	assert.Equal(t, "hello", got[0].body["text"])
}

func TestSendMessageSplitsLongText(t *testing.T) {
	srv, calls := newTelegramServer(t, `{"ok":true,"result":{}}`)
	c := NewClient(srv.URL, 2*time.Second)

	long := strings.Repeat("я", MaxMessageRunes+10)
	require.NoError(t, c.SendMessage(context.Background(), 1, long))

	got := calls()
	require.Len(t, got, 2)
	assert.Len(t, []rune(got[0].body["text"].(string)), MaxMessageRunes)
	assert.Len(t, []rune(got[1].body["text"].(string)), 10)
}

func TestSendMessageReportsAPIError(t *testing.T) {
	srv, _ := newTelegramServer(t, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
	c := NewClient(srv.URL, 2*time.Second)

	err := c.SendMessage(context.Background(), 1, "hi")
	require.ErrorIs(t, err, ErrAPI)
	assert.Contains(t, err.Error(), "blocked")
}

func TestSendMessageRejectsGarbage(t *testing.T) {
	srv, _ := newTelegramServer(t, `<html>bad gateway</html>`)
	c := NewClient(srv.URL, 2*time.Second)

	err := c.SendMessage(context.Background(), 1, "hi")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAPI)
}

func TestSetWebhookSendsSecret(t *testing.T) {
	srv, calls := newTelegramServer(t, `{"ok":true,"result":true}`)
	c := NewClient(srv.URL, 2*time.Second)

	require.NoError(t, c.SetWebhook(context.Background(), "https://relay.example.com/webhook", "s3cret"))

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "/setWebhook", got[0].path)
	assert.Equal(t, "https://relay.example.com/webhook", got[0].body["url"])
	assert.Equal(t, "s3cret", got[0].body["secret_token"])
}

func TestSetWebhookOmitsEmptySecret(t *testing.T) {
	srv, calls := newTelegramServer(t, `{"ok":true,"result":true}`)
	c := NewClient(srv.URL, 2*time.Second)

	require.NoError(t, c.SetWebhook(context.Background(), "https://relay.example.com/webhook", ""))
	_, present := calls()[0].body["secret_token"]
	assert.False(t, present)
}

func TestGetWebhookInfo(t *testing.T) {
	srv, calls := newTelegramServer(t, `{"ok":true,"result":{"url":"https://relay.example.com/webhook","pending_update_count":3}}`)
	c := NewClient(srv.URL, 2*time.Second)

	info, err := c.GetWebhookInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://relay.example.com/webhook", info.URL)
	assert.Equal(t, 3, info.PendingUpdateCount)
	assert.Equal(t, "/getWebhookInfo", calls()[0].path)
}

func TestDeleteWebhook(t *testing.T) {
	srv, calls := newTelegramServer(t, `{"ok":true,"result":true}`)
	c := NewClient(srv.URL, 2*time.Second)

	require.NoError(t, c.DeleteWebhook(context.Background(), true))
	got := calls()
	assert.Equal(t, "/deleteWebhook", got[0].path)
	assert.Equal(t, true, got[0].body["drop_pending_updates"])
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	text := strings.Repeat("a", 7) + "\n" + strings.Repeat("b", 5)
	parts := splitText(text, 10)
	require.Len(t, parts, 2)
	assert.Equal(t, strings.Repeat("a", 7)+"\n", parts[0])
	assert.Equal(t, strings.Repeat("b", 5), parts[1])
}

func TestUpdateTextMessage(t *testing.T) {
	var update Update
	require.NoError(t, json.Unmarshal([]byte(`{"update_id":1,"message":{"message_id":5,"chat":{"id":99,"type":"private"},"text":"hi"}}`), &update))
	msg := update.TextMessage()
	require.NotNil(t, msg)
	assert.Equal(t, int64(99), msg.Chat.ID)

	var sticker Update
	require.NoError(t, json.Unmarshal([]byte(`{"update_id":2,"message":{"message_id":6,"chat":{"id":99}}}`), &sticker))
	assert.Nil(t, sticker.TextMessage())
	assert.Nil(t, Update{}.TextMessage())
}
