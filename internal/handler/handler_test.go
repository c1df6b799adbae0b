package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"oliv/internal/model"
	"oliv/internal/repository"
	"oliv/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeChat struct {
	requests []model.ChatRequest
	reset    []string
	err      error
}

func (f *fakeChat) Chat(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, error) {
	f.requests = append(f.requests, *req)
	if f.err != nil {
		return nil, f.err
	}
	id := req.SessionID
	if id == "" {
		id = "new-session"
	}
	return &model.ChatResponse{Reply: "echo: " + req.Message, SessionID: id, TurnID: "turn-1", Intent: model.IntentNone}, nil
}

func (f *fakeChat) Reset(ctx context.Context, sessionID string) error {
	f.reset = append(f.reset, sessionID)
	return nil
}

type fakeListings struct {
	queries []model.ListingQuery
	results []model.Listing
}

func (f *fakeListings) FindListings(ctx context.Context, q model.ListingQuery) []model.Listing {
	f.queries = append(f.queries, q)
	return f.results
}

type fakePrices struct {
	stat    *model.PriceStat
	enabled bool
	labels  []*int
}

func (f *fakePrices) GetPriceRange(ctx context.Context, area, propertyType string, bedrooms *int) *model.PriceStat {
	f.labels = append(f.labels, bedrooms)
	return f.stat
}

func (f *fakePrices) PredictPrice(ctx context.Context, feat model.PriceFeatures) (float64, bool) {
	return 1234567.8, f.enabled
}

func (f *fakePrices) PredictorEnabled() bool { return f.enabled }

type fakeFeedback struct {
	err error
}

func (f *fakeFeedback) LogFeedback(ctx context.Context, turnID, action string) error {
	return f.err
}

type testServer struct {
	router   *gin.Engine
	chat     *fakeChat
	listings *fakeListings
	prices   *fakePrices
}

func newTestServer(feedback FeedbackStore) *testServer {
	s := &testServer{chat: &fakeChat{}, listings: &fakeListings{}, prices: &fakePrices{}}
	s.router = NewRouter(Routes{
		Chat:     NewChatHandler(s.chat, 2*time.Hour, false, nil),
		Listings: NewListingHandler(s.listings),
		Price:    NewPriceHandler(s.prices),
		Feedback: NewFeedbackHandler(feedback),
		Build:    BuildInfo{Version: "test"},
		CORS:     CORSConfig{AllowedOrigins: "*", AllowedMethods: "GET,POST,DELETE", AllowedHeaders: "Content-Type,X-Session-Id"},
	})
	return s
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRoot(t *testing.T) {
	w := newTestServer(nil).do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message": "Oliv backend is running. Use POST /chat to interact."}`, w.Body.String())
}

func TestHealthAndVersion(t *testing.T) {
	s := newTestServer(nil)

	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = s.do(httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"test"`)
}

func TestHealthReportsDependencies(t *testing.T) {
	router := NewRouter(Routes{
		Chat:     NewChatHandler(&fakeChat{}, time.Hour, false, nil),
		Listings: NewListingHandler(&fakeListings{}),
		Price:    NewPriceHandler(&fakePrices{}),
		Feedback: NewFeedbackHandler(nil),
		Checks: []DependencyCheck{
			{Name: "openai", Check: func(ctx context.Context) error { return nil }},
			{Name: "postgres", Check: func(ctx context.Context) error { return errors.New("connection refused") }},
		},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, map[string]string{"openai": "ok", "postgres": "connection refused"}, body.Dependencies)
}

func TestChatIssuesSession(t *testing.T) {
	s := newTestServer(nil)

	w := s.do(jsonRequest(t, http.MethodPost, "/chat", gin.H{"message": "hello"}))

	require.Equal(t, http.StatusOK, w.Code)
	var resp model.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "echo: hello", resp.Reply)
	assert.Equal(t, "new-session", resp.SessionID)
	assert.Equal(t, "new-session", w.Header().Get(SessionHeader))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Equal(t, "new-session", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestChatSessionSources(t *testing.T) {
	s := newTestServer(nil)

	s.do(jsonRequest(t, http.MethodPost, "/chat", gin.H{"message": "a", "session_id": "from-body"}))

	req := jsonRequest(t, http.MethodPost, "/chat", gin.H{"message": "b"})
	req.Header.Set(SessionHeader, "from-header")
	s.do(req)

	req = jsonRequest(t, http.MethodPost, "/chat", gin.H{"message": "c"})
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "from-cookie"})
	s.do(req)

	require.Len(t, s.chat.requests, 3)
	assert.Equal(t, "from-body", s.chat.requests[0].SessionID)
	assert.Equal(t, "from-header", s.chat.requests[1].SessionID)
	assert.Equal(t, "from-cookie", s.chat.requests[2].SessionID)
}

func TestChatBadRequests(t *testing.T) {
	s := newTestServer(nil)

	w := s.do(jsonRequest(t, http.MethodPost, "/chat", gin.H{"session_id": "x"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")

	s.chat.err = service.ErrEmptyMessage
	w = s.do(jsonRequest(t, http.MethodPost, "/chat", gin.H{"message": "   "}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.chat.err = errors.New("boom")
	w = s.do(jsonRequest(t, http.MethodPost, "/chat", gin.H{"message": "hi"}))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestResetSession(t *testing.T) {
	s := newTestServer(nil)

	w := s.do(httptest.NewRequest(http.MethodDelete, "/chat/session", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodDelete, "/chat/session", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "abc"})
	w = s.do(req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"abc"}, s.chat.reset)
}

func TestListingSearch(t *testing.T) {
	s := newTestServer(nil)
	s.listings.results = []model.Listing{{Name: "Marina Gate", Price: "AED 1,100,000"}}

	w := s.do(jsonRequest(t, http.MethodPost, "/api/v1/listings/search", gin.H{
		"location": "Marina Gate", "exact_location": true, "max_price": 1500000,
	}))

	require.Equal(t, http.StatusOK, w.Code)
	var resp model.ListingSearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "Marina Gate", resp.Results[0].Name)
	require.Len(t, s.listings.queries, 1)
	assert.True(t, s.listings.queries[0].ExactLocation)

	w = s.do(jsonRequest(t, http.MethodPost, "/api/v1/listings/search", gin.H{"property_type": "villa"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListingSearchEmptyResultIsArray(t *testing.T) {
	s := newTestServer(nil)

	w := s.do(jsonRequest(t, http.MethodPost, "/api/v1/listings/search", gin.H{"location": "JVC"}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"results":[]`)
}

func TestPriceStats(t *testing.T) {
	s := newTestServer(nil)
	s.prices.stat = &model.PriceStat{Area: "JVC", PropertyType: "apartment", BedroomLabel: "1 B/R", MedianPrice: 800000}

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/price-stats?area=JVC&property_type=apartment&bedrooms=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp model.PriceStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Found)
	assert.Equal(t, "1 B/R", resp.Stat.BedroomLabel)
	require.NotNil(t, s.prices.labels[0])
	assert.Equal(t, 1, *s.prices.labels[0])

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/price-stats?area=JVC", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/price-stats?area=JVC&property_type=apartment&bedrooms=-2", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPredict(t *testing.T) {
	s := newTestServer(nil)

	w := s.do(jsonRequest(t, http.MethodPost, "/api/v1/predict", gin.H{}))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s.prices.enabled = true
	w = s.do(jsonRequest(t, http.MethodPost, "/api/v1/predict", gin.H{"area": "JVC", "size": 75}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"predicted_price": 1234567.8}`, w.Body.String())
}

func TestFeedback(t *testing.T) {
	body := gin.H{"turn_id": "0b6f3c2e-5d1a-4f7e-9c8b-2a1d3e4f5a6b", "action": "helpful"}

	w := newTestServer(nil).do(jsonRequest(t, http.MethodPost, "/api/v1/feedback", body))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = newTestServer(&fakeFeedback{}).do(jsonRequest(t, http.MethodPost, "/api/v1/feedback", body))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)

	w = newTestServer(&fakeFeedback{}).do(jsonRequest(t, http.MethodPost, "/api/v1/feedback", gin.H{"turn_id": body["turn_id"], "action": "click"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = newTestServer(&fakeFeedback{}).do(jsonRequest(t, http.MethodPost, "/api/v1/feedback", gin.H{"turn_id": "turn-1", "action": "helpful"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = newTestServer(&fakeFeedback{err: repository.ErrTurnNotFound}).do(jsonRequest(t, http.MethodPost, "/api/v1/feedback", body))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(nil)
	s.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	w := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "oliv_http_requests_total")
}
