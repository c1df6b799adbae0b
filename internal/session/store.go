package session

import (
	"context"

	"oliv/internal/model"
)

// Store persists conversation sessions keyed by session id.
// Load never fails for an unknown or expired id; it returns a fresh, empty session instead.
type Store interface {
	Load(ctx context.Context, id string) (*model.Session, error)
	Save(ctx context.Context, s *model.Session) error
	Delete(ctx context.Context, id string) error
}

func newSession(id string) *model.Session {
	return &model.Session{ID: id}
}

func trimHistory(msgs []model.Message, max int) []model.Message {
	if max <= 0 || len(msgs) <= max {
		return msgs
	}
	return msgs[len(msgs)-max:]
}

func cloneSession(s *model.Session) *model.Session {
	out := *s
	out.History = append([]model.Message(nil), s.History...)
	out.Context = cloneContext(s.Context)
	return &out
}

func cloneContext(c model.ConversationContext) model.ConversationContext {
	out := model.ConversationContext{}
	if c.Location != nil {
		v := *c.Location
		out.Location = &v
	}
	if c.PropertyType != nil {
		v := *c.PropertyType
		out.PropertyType = &v
	}
	if c.Bedrooms != nil {
		v := *c.Bedrooms
		out.Bedrooms = &v
	}
	if c.Budget != nil {
		v := *c.Budget
		out.Budget = &v
	}
	if c.Timeframe != nil {
		v := *c.Timeframe
		out.Timeframe = &v
	}
	return out
}
