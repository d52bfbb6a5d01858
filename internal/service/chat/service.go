package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/tavern-relay/internal/model/chat"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSystemTurn      = errors.New("system turn is seeded by the store and cannot be appended")
	ErrInvalidRole     = errors.New("invalid turn role")
)

// Service is the in-memory conversation registry, keyed by Telegram chat id.
// Sessions are created lazily and live as long as the process.
//
// The mutex only protects the map and slices. Callers that read a transcript,
// call out to a model and append the reply do so without holding it, so two
// concurrent messages from one chat can interleave.
type Service struct {
	mu           sync.RWMutex
	sessions     map[int64]*chat.Session
	systemPrompt string
	policy       TrimPolicy
}

// Option customises a Service.
type Option func(*Service)

// WithTrimPolicy replaces the default sliding window. An invalid policy is
// ignored and the default kept.
func WithTrimPolicy(policy TrimPolicy) Option {
	return func(s *Service) {
		if err := policy.Validate(); err != nil {
			log.Warn().Err(err).Int("threshold", policy.Threshold).Int("window", policy.Window).Msg("invalid trim policy, keeping default")
			return
		}
		s.policy = policy
	}
}

// NewService builds an empty registry whose sessions all start with
// systemPrompt as their single system turn.
func NewService(systemPrompt string, opts ...Option) *Service {
	s := &Service{
		sessions:     make(map[int64]*chat.Session),
		systemPrompt: systemPrompt,
		policy:       DefaultTrimPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the trimming policy in effect.
func (s *Service) Policy() TrimPolicy {
	return s.policy
}

// GetOrCreate returns a snapshot of the chat's session, seeding it with the
// system turn first if this chat has never been seen.
func (s *Service) GetOrCreate(_ context.Context, chatID int64) chat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return snapshot(s.getOrCreateLocked(chatID))
}

// Append records turn at the end of the chat's history and returns it as
// stored. Assistant turns trigger the trimming policy afterwards.
func (s *Service) Append(_ context.Context, chatID int64, turn chat.Turn) (chat.Turn, error) {
	if turn.Role == chat.RoleSystem {
		return chat.Turn{}, ErrSystemTurn
	}
	if !turn.Role.Valid() {
		return chat.Turn{}, errors.Wrapf(ErrInvalidRole, "role %q", turn.Role)
	}
	if turn.ID == "" {
		turn = chat.NewTurn(turn.Role, turn.Content)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.getOrCreateLocked(chatID)
	session.Turns = append(session.Turns, turn)

	if turn.Role == chat.RoleAssistant {
		before := len(session.Turns)
		session.Turns = s.policy.Apply(session.Turns)
		if dropped := before - len(session.Turns); dropped > 0 {
			log.Debug().Int64("chat_id", chatID).Int("dropped", dropped).Int("kept", len(session.Turns)).Msg("trimmed chat history")
		}
	}

	return turn, nil
}

// Transcript returns a copy of the chat's turns.
func (s *Service) Transcript(_ context.Context, chatID int64) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[chatID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return snapshot(session).Turns, nil
}

// Len reports how many turns the chat holds, zero for unknown chats.
func (s *Service) Len(chatID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if session, ok := s.sessions[chatID]; ok {
		return len(session.Turns)
	}
	return 0
}

// ChatIDs lists every known chat in ascending order.
func (s *Service) ChatIDs() []int64 {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Service) getOrCreateLocked(chatID int64) *chat.Session {
	session, ok := s.sessions[chatID]
	if ok {
		return session
	}

	session = &chat.Session{
		ChatID:    chatID,
		Turns:     make([]chat.Turn, 0, s.policy.Threshold+1),
		CreatedAt: time.Now().UTC(),
	}
	session.Turns = append(session.Turns, chat.SystemTurn(s.systemPrompt))
	s.sessions[chatID] = session

	log.Debug().Int64("chat_id", chatID).Msg("created chat session")
	return session
}

func snapshot(session *chat.Session) chat.Session {
	copied := *session
	copied.Turns = make([]chat.Turn, len(session.Turns))
	copy(copied.Turns, session.Turns)
	return copied
}
