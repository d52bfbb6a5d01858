package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/tavern-relay/internal/model/chat"
)

func TestPublishReachesOnlyMatchingChat(t *testing.T) {
	hub := NewHub()
	mine, cancelMine := hub.Subscribe(1)
	defer cancelMine()
	other, cancelOther := hub.Subscribe(2)
	defer cancelOther()

	hub.Publish(1, chat.UserTurn("hi"))

	select {
	case event := <-mine:
		assert.Equal(t, int64(1), event.ChatID)
		assert.Equal(t, "hi", event.Turn.Content)
	default:
		t.Fatal("expected event for chat 1")
	}

	select {
	case event := <-other:
		t.Fatalf("unexpected event for chat 2: %+v", event)
	default:
	}
}

func TestCancelClosesAndUnregisters(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(5)
	require.Equal(t, 1, hub.Subscribers(5))

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.Subscribers(5))

	hub.Publish(5, chat.UserTurn("nobody listening"))
}

func TestPublishDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(3)
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish(3, chat.AssistantTurn("spam"))
	}
	assert.Len(t, ch, subscriberBuffer)
}
