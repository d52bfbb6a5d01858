package relay

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/tavern-relay/internal/model/chat"
)

// Store is the conversation registry the relay reads and writes.
type Store interface {
	GetOrCreate(ctx context.Context, chatID int64) chat.Session
	Append(ctx context.Context, chatID int64, turn chat.Turn) (chat.Turn, error)
	Transcript(ctx context.Context, chatID int64) ([]chat.Turn, error)
}

// Completer produces the assistant reply for a history.
type Completer interface {
	Complete(ctx context.Context, turns []chat.Turn) (string, error)
}

// Sender delivers text back to a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Publisher is told about every turn the relay records.
type Publisher interface {
	Publish(chatID int64, turn chat.Turn)
}

// Service runs one inbound message through the store and the model and sends
// the answer back. Every failure is answered with the apology text.
type Service struct {
	store     Store
	completer Completer
	sender    Sender
	publisher Publisher
	apology   string
}

// NewService wires the relay. publisher may be nil.
func NewService(store Store, completer Completer, sender Sender, publisher Publisher, apology string) *Service {
	return &Service{
		store:     store,
		completer: completer,
		sender:    sender,
		publisher: publisher,
		apology:   apology,
	}
}

// HandleMessage records text as the user's turn, asks the model for a reply
// over the chat's full history, records and sends that reply, and returns it.
//
// On failure the user turn stays recorded, no assistant turn is added, the
// apology is sent instead and the cause is returned.
func (s *Service) HandleMessage(ctx context.Context, chatID int64, text string) (string, error) {
	logger := log.With().Int64("chat_id", chatID).Logger()

	s.store.GetOrCreate(ctx, chatID)

	if err := s.record(ctx, chatID, chat.UserTurn(text)); err != nil {
		return "", s.fail(ctx, chatID, errors.Wrap(err, "record user turn"))
	}

	turns, err := s.store.Transcript(ctx, chatID)
	if err != nil {
		return "", s.fail(ctx, chatID, errors.Wrap(err, "load transcript"))
	}

	reply, err := s.completer.Complete(ctx, turns)
	if err != nil {
		return "", s.fail(ctx, chatID, errors.Wrap(err, "complete"))
	}

	if err := s.record(ctx, chatID, chat.AssistantTurn(reply)); err != nil {
		return "", s.fail(ctx, chatID, errors.Wrap(err, "record assistant turn"))
	}

	if err := s.sender.SendMessage(ctx, chatID, reply); err != nil {
		return "", s.fail(ctx, chatID, errors.Wrap(err, "send reply"))
	}

	logger.Info().Int("history", len(turns)+1).Int("reply_len", len(reply)).Msg("relayed message")
	return reply, nil
}

func (s *Service) record(ctx context.Context, chatID int64, turn chat.Turn) error {
	stored, err := s.store.Append(ctx, chatID, turn)
	if err != nil {
		return err
	}
	if s.publisher != nil {
		s.publisher.Publish(chatID, stored)
	}
	return nil
}

func (s *Service) fail(ctx context.Context, chatID int64, cause error) error {
	log.Error().Err(cause).Int64("chat_id", chatID).Msg("error handling message")

	if err := s.sender.SendMessage(ctx, chatID, s.apology); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send apology")
	}
	return cause
}
