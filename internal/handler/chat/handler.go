package chat

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/tavern-relay/internal/model/chat"
	chatService "github.com/zhouzirui/tavern-relay/internal/service/chat"
	"github.com/zhouzirui/tavern-relay/pkg/utils"
)

// Store 会话存储的只读接口
type Store interface {
	ChatIDs() []int64
	Transcript(ctx context.Context, chatID int64) ([]chat.Turn, error)
}

type transcriptResponse struct {
	ChatID int64       `json:"chatId"`
	Turns  []chat.Turn `json:"turns"`
}

// Handler 会话记录的HTTP处理器
type Handler struct {
	store Store
}

// New 创建会话记录处理器
func New(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册会话记录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chats", h.handleListChats)
	r.Get("/chats/{chatID}/turns", h.handleTranscript)
}

func (h *Handler) handleListChats(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string][]int64{"chatIds": h.store.ChatIDs()})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	chatID, err := ParseChatID(chi.URLParam(r, "chatID"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	turns, err := h.store.Transcript(r.Context(), chatID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chatService.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, transcriptResponse{ChatID: chatID, Turns: turns})
}

// ParseChatID 解析路径中的 Telegram 会话 ID，群组 ID 为负数。
func ParseChatID(raw string) (int64, error) {
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("chatID must be an integer")
	}
	return chatID, nil
}
