package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/tavern-relay/internal/telegram"
	"github.com/zhouzirui/tavern-relay/pkg/utils"
)

// SecretHeader 携带 setWebhook 时注册的 secret_token。
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateBytes = 1 << 20

// Relay 处理单条文本消息
type Relay interface {
	HandleMessage(ctx context.Context, chatID int64, text string) (string, error)
}

// Handler Telegram webhook 的HTTP处理器
type Handler struct {
	relay  Relay
	secret string
}

// New 创建 webhook 处理器。secret 为空时不校验请求头。
func New(relay Relay, secret string) *Handler {
	return &Handler{relay: relay, secret: secret}
}

// RegisterRoutes 注册 POST /webhook 路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook", h.handleWebhook)
}

// handleWebhook 对每个合法的更新都返回 200，避免 Telegram 重复投递；
// 处理失败时已在会话中回复道歉消息。
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			utils.RespondStatusError(w, http.StatusUnauthorized, "invalid secret token")
			return
		}
	}

	var update telegram.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes)).Decode(&update); err != nil {
		log.Error().Err(err).Msg("error in webhook: cannot decode update")
		utils.RespondStatusError(w, http.StatusOK, err.Error())
		return
	}

	msg := update.TextMessage()
	if msg == nil {
		log.Debug().Int64("update_id", update.UpdateID).Msg("ignoring update without text")
		utils.RespondStatus(w, http.StatusOK, "ok")
		return
	}

	// 投递连接断开时不能中断一次完整的问答。
	ctx := context.WithoutCancel(r.Context())
	if _, err := h.relay.HandleMessage(ctx, msg.Chat.ID, msg.Text); err != nil {
		log.Debug().Err(err).Int64("update_id", update.UpdateID).Msg("update answered with apology")
	}

	utils.RespondStatus(w, http.StatusOK, "ok")
}
