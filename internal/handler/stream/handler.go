package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	chatHandler "github.com/zhouzirui/tavern-relay/internal/handler/chat"
	"github.com/zhouzirui/tavern-relay/internal/model/chat"
	"github.com/zhouzirui/tavern-relay/internal/service/feed"
	"github.com/zhouzirui/tavern-relay/pkg/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Feed 实时消息的来源
type Feed interface {
	Subscribe(chatID int64) (<-chan feed.Event, func())
}

// Backlog 提供连接建立前已记录的消息
type Backlog interface {
	Transcript(ctx context.Context, chatID int64) ([]chat.Turn, error)
}

// Handler 通过 WebSocket 推送会话记录：先发送已有历史，再推送新记录的消息。
type Handler struct {
	feed     Feed
	backlog  Backlog
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(f Feed, backlog Backlog) *Handler {
	return &Handler{
		feed:    f,
		backlog: backlog,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/chats/{chatID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	chatID, err := chatHandler.ParseChatID(chi.URLParam(r, "chatID"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// 先订阅再读取历史，避免遗漏；同一条消息可能重复，客户端按 ID 去重。
	events, cancel := h.feed.Subscribe(chatID)
	defer cancel()

	logger := log.With().Int64("chat_id", chatID).Logger()
	logger.Info().Msg("transcript stream opened")
	defer logger.Info().Msg("transcript stream closed")

	if turns, err := h.backlog.Transcript(r.Context(), chatID); err == nil {
		for _, turn := range turns {
			if err := writeEvent(conn, feed.Event{ChatID: chatID, Turn: turn}); err != nil {
				return
			}
		}
	}

	done := make(chan struct{})
	go readPump(conn, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(conn, event); err != nil {
				logger.Debug().Err(err).Msg("transcript write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump 持续读取客户端帧，以便处理 pong 与关闭帧。
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, event feed.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(event)
}
