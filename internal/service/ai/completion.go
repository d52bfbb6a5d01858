package ai

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/tavern-relay/internal/config"
	"github.com/zhouzirui/tavern-relay/internal/model/chat"
)

// ErrUpstream marks failures of the completion service itself: transport
// errors, API errors and replies without any content.
var ErrUpstream = errors.New("completion upstream error")

// Generator is the slice of eino's ChatModel the invoker needs.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Sampling holds the fixed request parameters sent with every completion.
type Sampling struct {
	Model       string
	MaxTokens   int
	Temperature float32
}

// Service turns a chat history into a single model reply.
type Service struct {
	generator Generator
	sampling  Sampling
}

// NewService wraps an already constructed model.
func NewService(generator Generator, sampling Sampling) *Service {
	return &Service{generator: generator, sampling: sampling}
}

// NewServiceFromConfig builds the Ark-backed chat model described by cfg.
func NewServiceFromConfig(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create chat model")
	}

	return NewService(chatModel, Sampling{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}), nil
}

// Complete sends the whole history in order and returns the text of the top
// reply. It never retries.
func (s *Service) Complete(ctx context.Context, turns []chat.Turn) (string, error) {
	if len(turns) == 0 {
		return "", errors.New("completion requires at least one turn")
	}

	opts := []model.Option{
		model.WithTemperature(s.sampling.Temperature),
		model.WithMaxTokens(s.sampling.MaxTokens),
	}
	if s.sampling.Model != "" {
		opts = append(opts, model.WithModel(s.sampling.Model))
	}

	started := time.Now()
	reply, err := s.generator.Generate(ctx, toSchemaMessages(turns), opts...)
	if err != nil {
		log.Error().Err(err).Str("model", s.sampling.Model).Msg("completion request failed")
		return "", errors.Wrapf(ErrUpstream, "generate: %v", err)
	}
	if reply == nil || strings.TrimSpace(reply.Content) == "" {
		log.Error().Str("model", s.sampling.Model).Msg("completion returned no content")
		return "", errors.Wrap(ErrUpstream, "no choices in completion response")
	}

	event := log.Debug().
		Str("model", s.sampling.Model).
		Int("turns", len(turns)).
		Int("reply_len", len(reply.Content)).
		Dur("elapsed", time.Since(started))
	if reply.ResponseMeta != nil && reply.ResponseMeta.Usage != nil {
		event = event.
			Int("prompt_tokens", reply.ResponseMeta.Usage.PromptTokens).
			Int("completion_tokens", reply.ResponseMeta.Usage.CompletionTokens)
	}
	event.Msg("completion generated")

	return reply.Content, nil
}

func toSchemaMessages(turns []chat.Turn) []*schema.Message {
	messages := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleSystem:
			messages = append(messages, schema.SystemMessage(turn.Content))
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return messages
}
