package feed

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/tavern-relay/internal/model/chat"
)

const subscriberBuffer = 32

// Event is one turn recorded for a chat.
type Event struct {
	ChatID int64     `json:"chatId"`
	Turn   chat.Turn `json:"turn"`
}

// Hub fans turns out to live transcript subscribers. Publishing never blocks:
// a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int64]map[int]chan Event
}

// NewHub returns a hub with no subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[int64]map[int]chan Event)}
}

// Subscribe registers interest in chatID. The returned cancel func
// unregisters and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(chatID int64) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subs[chatID] == nil {
		h.subs[chatID] = make(map[int]chan Event)
	}
	h.subs[chatID][id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[chatID], id)
			if len(h.subs[chatID]) == 0 {
				delete(h.subs, chatID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers turn to every subscriber of chatID.
func (h *Hub) Publish(chatID int64, turn chat.Turn) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	event := Event{ChatID: chatID, Turn: turn}
	for id, ch := range h.subs[chatID] {
		select {
		case ch <- event:
		default:
			log.Warn().Int64("chat_id", chatID).Int("subscriber", id).Msg("transcript subscriber lagging, dropped turn")
		}
	}
}

// Subscribers reports how many listeners chatID has.
func (h *Hub) Subscribers(chatID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[chatID])
}
