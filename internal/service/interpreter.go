package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"oliv/internal/logger"
	"oliv/internal/model"
	"oliv/internal/utils"

	"go.uber.org/zap"
)

// Interpreter extracts intent and fields from one user message
type Interpreter struct {
	client  ChatClient
	prompts *Prompts
	logger  *zap.Logger
}

// NewInterpreter creates a new query interpreter
func NewInterpreter(client ChatClient, prompts *Prompts, log *zap.Logger) *Interpreter {
	return &Interpreter{
		client:  client,
		prompts: prompts,
		logger:  logger.OrNop(log).Named("interpreter"),
	}
}

// Interpret never fails: any problem yields the all-absent query with intent none
func (p *Interpreter) Interpret(ctx context.Context, text string) model.ParsedQuery {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.UnknownQuery()
	}

	if p.client == nil || !p.client.IsEnabled() {
		p.logger.Warn("chat client is not enabled, returning unknown query")
		return model.UnknownQuery()
	}

	q, err := p.interpret(ctx, text)
	if err != nil {
		p.logger.Warn("interpretation failed, returning unknown query", zap.Error(err))
		return model.UnknownQuery()
	}
	return q
}

func (p *Interpreter) interpret(ctx context.Context, text string) (model.ParsedQuery, error) {
	user, err := render(p.prompts.interpreterUser, struct{ Query string }{Query: text})
	if err != nil {
		return model.ParsedQuery{}, err
	}

	content, err := p.client.Complete(ctx, CompletionRequest{
		System:      p.prompts.Config.Interpreter.System,
		Messages:    []model.Message{{Role: model.RoleUser, Content: user}},
		Temperature: 0,
		MaxTokens:   p.prompts.Config.Interpreter.MaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return model.ParsedQuery{}, err
	}

	return p.decode(content)
}

// decode parses, validates and converts a raw model reply
func (p *Interpreter) decode(content string) (model.ParsedQuery, error) {
	doc, err := utils.ParseAIJSONObject(content)
	if err != nil {
		return model.ParsedQuery{}, err
	}
	if err := validateDocument(p.prompts.interpreterSchema, doc); err != nil {
		return model.ParsedQuery{}, err
	}

	// the validated map is re-encoded to decode into typed fields
	normalized, err := json.Marshal(doc)
	if err != nil {
		return model.ParsedQuery{}, fmt.Errorf("re-encoding parsed query: %w", err)
	}
	var raw struct {
		Intent       *string  `json:"intent"`
		Location     *string  `json:"location"`
		PropertyType *string  `json:"property_type"`
		Bedrooms     *float64 `json:"bedrooms"`
		Budget       *float64 `json:"budget"`
		Timeframe    *string  `json:"timeframe"`
	}
	if err := json.Unmarshal(normalized, &raw); err != nil {
		return model.ParsedQuery{}, fmt.Errorf("decoding parsed query: %w", err)
	}

	q := model.ParsedQuery{
		Intent:       model.IntentNone,
		Location:     raw.Location,
		PropertyType: raw.PropertyType,
		Budget:       raw.Budget,
		Timeframe:    raw.Timeframe,
	}
	if raw.Intent != nil {
		q.Intent = model.ParseIntent(*raw.Intent)
	}
	if raw.Bedrooms != nil {
		b := int(*raw.Bedrooms)
		q.Bedrooms = &b
	}
	return q, nil
}
