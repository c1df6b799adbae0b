package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"oliv/internal/model"

	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream unavailable")

// fakeChatClient answers every completion through respond and records the requests it saw
type fakeChatClient struct {
	mu       sync.Mutex
	disabled bool
	respond  func(req CompletionRequest) (string, error)
	requests []CompletionRequest
}

func replyWith(content string) *fakeChatClient {
	return &fakeChatClient{respond: func(CompletionRequest) (string, error) { return content, nil }}
}

func failingClient() *fakeChatClient {
	return &fakeChatClient{respond: func(CompletionRequest) (string, error) { return "", errUpstream }}
}

func (f *fakeChatClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.respond(req)
}

func (f *fakeChatClient) IsEnabled() bool { return !f.disabled }

func (f *fakeChatClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeChatClient) lastRequest() CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakePriceTable map[string]*model.PriceStat

func (t fakePriceTable) GetPriceStat(ctx context.Context, area, propertyType, bedroomLabel string) (*model.PriceStat, error) {
	return t[area+"|"+propertyType+"|"+bedroomLabel], nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (e *fakeEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return e.vector, e.err
}

func (e *fakeEmbedder) IsEnabled() bool { return true }

type recordingTurnLogger struct {
	mu    sync.Mutex
	turns []*model.Turn
}

func (r *recordingTurnLogger) LogTurn(ctx context.Context, turn *model.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, turn)
	return nil
}

func testPrompts(t testing.TB) *Prompts {
	t.Helper()
	p, err := LoadDefaultPrompts()
	require.NoError(t, err)
	return p
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int { return &i }
func floatPtr(f float64) *float64 { return &f }
