package service

import (
	"context"
	"strings"

	"oliv/internal/logger"
	"oliv/internal/model"

	"go.uber.org/zap"
)

// PersonaResponder answers free-form messages in the assistant's persona
type PersonaResponder struct {
	client  ChatClient
	prompts *Prompts
	logger  *zap.Logger
}

// NewPersonaResponder creates a new persona responder
func NewPersonaResponder(client ChatClient, prompts *Prompts, log *zap.Logger) *PersonaResponder {
	return &PersonaResponder{
		client:  client,
		prompts: prompts,
		logger:  logger.OrNop(log).Named("persona"),
	}
}

// Respond completes over the persona prompt and the session history.
// ok is false when the client is disabled, fails, or answers with nothing.
func (p *PersonaResponder) Respond(ctx context.Context, history []model.Message) (string, bool) {
	if p.client == nil || !p.client.IsEnabled() || len(history) == 0 {
		return "", false
	}

	persona := p.prompts.Config.Persona
	temperature := persona.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}

	reply, err := p.client.Complete(ctx, CompletionRequest{
		System:      persona.System,
		Messages:    history,
		Temperature: temperature,
		MaxTokens:   persona.MaxTokens,
	})
	if err != nil {
		p.logger.Warn("persona completion failed", zap.Error(err))
		return "", false
	}

	reply = strings.TrimSpace(reply)
	return reply, reply != ""
}
