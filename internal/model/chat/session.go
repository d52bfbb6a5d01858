package chat

import "time"

// Session is the ordered turn history of one Telegram chat.
type Session struct {
	ChatID    int64     `json:"chatId"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"createdAt"`
}

