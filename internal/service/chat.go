package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"oliv/internal/logger"
	"oliv/internal/metrics"
	"oliv/internal/model"
	"oliv/internal/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrEmptyMessage is returned for a chat request without text
var ErrEmptyMessage = errors.New("message is empty")

// maxSessionIDLength bounds client-supplied session ids; longer ones are replaced
const maxSessionIDLength = 128

// QueryInterpreter turns one user message into a ParsedQuery
type QueryInterpreter interface {
	Interpret(ctx context.Context, text string) model.ParsedQuery
}

// TurnLogger records finished turns
type TurnLogger interface {
	LogTurn(ctx context.Context, turn *model.Turn) error
}

// ChatService runs one conversation turn end to end
type ChatService struct {
	store       session.Store
	interpreter QueryInterpreter
	dispatcher  *Dispatcher
	turns       TurnLogger
	embedder    Embedder
	logTimeout  time.Duration
	logger      *zap.Logger

	wg sync.WaitGroup
}

// NewChatService creates a new chat service. turns and embedder may be nil.
func NewChatService(
	store session.Store,
	interpreter QueryInterpreter,
	dispatcher *Dispatcher,
	turns TurnLogger,
	embedder Embedder,
	log *zap.Logger,
) *ChatService {
	return &ChatService{
		store:       store,
		interpreter: interpreter,
		dispatcher:  dispatcher,
		turns:       turns,
		embedder:    embedder,
		logTimeout:  10 * time.Second,
		logger:      logger.OrNop(log).Named("chat"),
	}
}

// Chat handles one user message within its session
func (s *ChatService) Chat(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, error) {
	startTime := time.Now()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	sessionID := NormalizeSessionID(req.SessionID)
	sess, err := s.store.Load(ctx, sessionID)
	if err != nil {
		s.logger.Warn("loading session failed, starting fresh", zap.String("session_id", sessionID), zap.Error(err))
		sess = &model.Session{ID: sessionID}
	}

	parsed := s.interpreter.Interpret(ctx, message)
	sess.Context.Merge(parsed)
	sess.History = append(sess.History, model.Message{Role: model.RoleUser, Content: message})

	outcome := s.dispatcher.Dispatch(ctx, parsed.Intent, sess.Context.Resolve(), sess.History)
	sess.History = append(sess.History, model.Message{Role: model.RoleAssistant, Content: outcome.Reply})

	if err := s.store.Save(ctx, sess); err != nil {
		s.logger.Warn("saving session failed", zap.String("session_id", sessionID), zap.Error(err))
	}

	took := time.Since(startTime)
	metrics.ChatTurnsTotal.WithLabelValues(outcome.Intent.String()).Inc()
	metrics.ChatTurnDuration.Observe(took.Seconds())

	turnID := uuid.NewString()
	s.logger.Info("chat turn",
		zap.String("session_id", sessionID),
		zap.String("turn_id", turnID),
		zap.String("intent", outcome.Intent.String()),
		zap.String("missing", outcome.Missing),
		zap.Duration("took", took),
	)

	s.logTurn(&model.Turn{
		TurnID:         turnID,
		SessionID:      sessionID,
		Message:        message,
		Intent:         outcome.Intent.String(),
		Reply:          outcome.Reply,
		Context:        sess.Context,
		ResponseTimeMs: took.Milliseconds(),
	})

	return &model.ChatResponse{
		Reply:     outcome.Reply,
		SessionID: sessionID,
		TurnID:    turnID,
		Intent:    outcome.Intent,
		Took:      took.Milliseconds(),
	}, nil
}

// Reset forgets a session
func (s *ChatService) Reset(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	return s.store.Delete(ctx, sessionID)
}

// Wait blocks until every pending turn log has finished
func (s *ChatService) Wait() {
	s.wg.Wait()
}

// logTurn writes the audit record in the background (non-blocking)
func (s *ChatService) logTurn(turn *model.Turn) {
	if s.turns == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.logTimeout)
		defer cancel()

		if s.embedder != nil && s.embedder.IsEnabled() {
			embedding, err := s.embedder.CreateEmbedding(ctx, turn.Message)
			if err != nil {
				s.logger.Debug("turn embedding failed", zap.String("turn_id", turn.TurnID), zap.Error(err))
			} else {
				turn.Embedding = embedding
			}
		}

		if err := s.turns.LogTurn(ctx, turn); err != nil {
			s.logger.Warn("logging turn failed", zap.String("turn_id", turn.TurnID), zap.Error(err))
		}
	}()
}

// NormalizeSessionID returns id when usable, otherwise a fresh uuid
func NormalizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxSessionIDLength {
		return uuid.NewString()
	}
	return id
}
