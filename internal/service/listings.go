package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"oliv/internal/logger"
	"oliv/internal/model"
	"oliv/internal/utils"

	"go.uber.org/zap"
)

// CommentaryUnavailable is returned by FindCommentary whenever no commentary can be produced
const CommentaryUnavailable = "I'm unable to find additional commentary right now."

// ListingProvider asks the answer/search service for listings and market commentary
type ListingProvider struct {
	client         ChatClient
	prompts        *Prompts
	ranker         *Ranker
	maxResults     int
	allowedDomains []string
	logger         *zap.Logger
}

// NewListingProvider creates a listing provider. An empty allowedDomains disables link filtering.
func NewListingProvider(client ChatClient, prompts *Prompts, ranker *Ranker, maxResults int, allowedDomains []string, log *zap.Logger) *ListingProvider {
	if maxResults <= 0 {
		maxResults = 3
	}
	if ranker == nil {
		ranker = NewRanker(0.3, 0.7)
	}
	domains := make([]string, 0, len(allowedDomains))
	for _, d := range allowedDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			domains = append(domains, strings.TrimPrefix(d, "www."))
		}
	}
	return &ListingProvider{
		client:         client,
		prompts:        prompts,
		ranker:         ranker,
		maxResults:     maxResults,
		allowedDomains: domains,
		logger:         logger.OrNop(log).Named("listings"),
	}
}

// MaxResults is the most listings FindListings returns
func (p *ListingProvider) MaxResults() int {
	return p.maxResults
}

type listingPromptData struct {
	Limit        int
	Location     string
	PropertyType string
	Bedrooms     string
	MaxPrice     string
}

// FindListings returns at most MaxResults listings. Every failure yields an empty result.
func (p *ListingProvider) FindListings(ctx context.Context, q model.ListingQuery) []model.Listing {
	if p.client == nil || !p.client.IsEnabled() {
		p.logger.Warn("answer service is not enabled, returning no listings")
		return nil
	}

	data := listingPromptData{
		Limit:        p.maxResults,
		Location:     q.Location,
		PropertyType: q.PropertyType,
	}
	if data.PropertyType == "" {
		data.PropertyType = "property"
	}
	if q.Bedrooms != nil {
		if *q.Bedrooms == 0 {
			data.Bedrooms = "studio"
		} else {
			data.Bedrooms = fmt.Sprintf("%d-bedroom", *q.Bedrooms)
		}
	}
	if q.MaxPrice != nil && *q.MaxPrice > 0 {
		data.MaxPrice = utils.FormatAED(*q.MaxPrice)
	}

	tmpl := p.prompts.listingsUser
	if q.ExactLocation {
		tmpl = p.prompts.listingsExactUser
	}
	prompt, err := render(tmpl, data)
	if err != nil {
		p.logger.Error("failed to render listing prompt", zap.Error(err))
		return nil
	}

	content, err := p.ask(ctx, prompt)
	if err != nil {
		p.logger.Warn("listing search failed", zap.String("location", q.Location), zap.Error(err))
		return nil
	}

	listings, err := p.ParseListings(content)
	if err != nil {
		p.logger.Info("listing response rejected",
			zap.Error(err),
			zap.String("content", utils.TruncateString(content, 200)))
		return nil
	}

	listings = p.filterDomains(listings)
	listings = p.ranker.RankListings(listings, q.MaxPrice)
	if len(listings) > p.maxResults {
		listings = listings[:p.maxResults]
	}
	return listings
}

// FindCommentary asks an open question and formats whatever comes back into one paragraph.
// It never returns an empty string.
func (p *ListingProvider) FindCommentary(ctx context.Context, question string) string {
	if p.client == nil || !p.client.IsEnabled() {
		return CommentaryUnavailable
	}

	prompt, err := render(p.prompts.commentaryUser, struct{ Question string }{Question: question})
	if err != nil {
		p.logger.Error("failed to render commentary prompt", zap.Error(err))
		return CommentaryUnavailable
	}

	content, err := p.ask(ctx, prompt)
	if err != nil {
		p.logger.Warn("commentary request failed", zap.Error(err))
		return CommentaryUnavailable
	}

	text, err := p.formatCommentary(content)
	if err != nil || strings.TrimSpace(text) == "" {
		p.logger.Info("commentary response rejected", zap.Error(err))
		return CommentaryUnavailable
	}
	return text
}

// PriceCheckQuestion builds the commentary question for a price check
func (p *ListingProvider) PriceCheckQuestion(r model.ResolvedContext) string {
	q, err := render(p.prompts.priceCheckQ, struct {
		Bedrooms, PropertyType, Location string
	}{r.BedroomPhrase(), r.PropertyType, r.Location})
	if err != nil {
		return fmt.Sprintf("What influences prices for a %s %s in %s, Dubai?", r.BedroomPhrase(), r.PropertyType, r.Location)
	}
	return q
}

// MarketTrendQuestion builds the commentary question for a market trend request
func (p *ListingProvider) MarketTrendQuestion(location string) string {
	q, err := render(p.prompts.marketTrendQ, struct{ Location string }{location})
	if err != nil {
		return fmt.Sprintf("What are the recent real estate market trends in %s, Dubai?", location)
	}
	return q
}

func (p *ListingProvider) ask(ctx context.Context, prompt string) (string, error) {
	return p.client.Complete(ctx, CompletionRequest{
		System:      p.prompts.Config.Research.System,
		Messages:    []model.Message{{Role: model.RoleUser, Content: prompt}},
		Temperature: DefaultTemperature,
	})
}

// ParseListings reads the first JSON array in the reply that holds valid listings.
// Elements failing the listing schema are dropped; a reply with no valid element is an error.
func (p *ListingProvider) ParseListings(content string) ([]model.Listing, error) {
	arrays, err := utils.ParseAIJSONArrays(content)
	if err != nil {
		return nil, err
	}

	sawEmpty := false
	var lastErr error
	for _, items := range arrays {
		if len(items) == 0 {
			sawEmpty = true
			continue
		}
		listings := make([]model.Listing, 0, len(items))
		for i, item := range items {
			if err := validateDocument(p.prompts.listingSchema, item); err != nil {
				lastErr = fmt.Errorf("listing %d: %w", i, err)
				p.logger.Debug("dropping invalid listing", zap.Int("index", i), zap.Error(err))
				continue
			}
			listings = append(listings, listingFromDocument(item.(map[string]interface{})))
		}
		if len(listings) > 0 {
			return listings, nil
		}
	}
	if sawEmpty {
		return []model.Listing{}, nil
	}
	return nil, fmt.Errorf("no valid listings in reply: %w", lastErr)
}

func (p *ListingProvider) formatCommentary(content string) (string, error) {
	unfenced := utils.StripCodeFence(content)

	items, err := utils.ParseAIJSONArray(unfenced)
	if err != nil {
		// a bare {"commentary": ...} object is accepted as a one-element array
		obj, objErr := utils.ParseAIJSONObject(unfenced)
		if objErr != nil {
			return "", err
		}
		items = []interface{}{obj}
	}

	parts := make([]string, 0, len(items))
	for i, item := range items {
		if err := validateDocument(p.prompts.commentarySchema, item); err != nil {
			return "", fmt.Errorf("commentary element %d: %w", i, err)
		}
		doc := item.(map[string]interface{})
		if c, ok := doc["commentary"].(string); ok && strings.TrimSpace(c) != "" {
			parts = append(parts, strings.TrimSpace(c))
			continue
		}
		l := listingFromDocument(doc)
		if !p.linkAllowed(l.Link) {
			continue
		}
		parts = append(parts, describeListing(l))
	}
	return strings.Join(parts, " "), nil
}

func (p *ListingProvider) filterDomains(listings []model.Listing) []model.Listing {
	if len(p.allowedDomains) == 0 {
		return listings
	}
	out := listings[:0:0]
	for _, l := range listings {
		if p.linkAllowed(l.Link) {
			out = append(out, l)
		} else {
			p.logger.Debug("dropping listing from unlisted domain", zap.String("link", l.Link))
		}
	}
	return out
}

// linkAllowed accepts links whose host is an allowed domain or a subdomain of one.
// Without an allow-list every link, including a missing one, is accepted.
func (p *ListingProvider) linkAllowed(link string) bool {
	if len(p.allowedDomains) == 0 {
		return true
	}
	if link == "" {
		return false
	}
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, d := range p.allowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func listingFromDocument(doc map[string]interface{}) model.Listing {
	l := model.Listing{}
	l.Name, _ = doc["name"].(string)
	l.Name = strings.TrimSpace(l.Name)
	if link, ok := doc["link"].(string); ok {
		l.Link = strings.TrimSpace(link)
	}
	switch v := doc["price"].(type) {
	case string:
		l.Price = strings.TrimSpace(v)
	case float64:
		l.Price = strconv.FormatFloat(v, 'f', -1, 64)
	}
	switch v := doc["features"].(type) {
	case string:
		l.Features = strings.TrimSpace(v)
	case []interface{}:
		features := make([]string, 0, len(v))
		for _, f := range v {
			if s, ok := f.(string); ok && strings.TrimSpace(s) != "" {
				features = append(features, strings.TrimSpace(s))
			}
		}
		l.Features = strings.Join(features, ", ")
	}
	return l
}

func describeListing(l model.Listing) string {
	var b strings.Builder
	b.WriteString(l.Name)
	if l.Price != "" {
		b.WriteString(" (")
		b.WriteString(l.Price)
		b.WriteString(")")
	}
	if l.Features != "" {
		b.WriteString(": ")
		b.WriteString(l.Features)
	}
	if !strings.HasSuffix(b.String(), ".") {
		b.WriteString(".")
	}
	if l.Link != "" {
		b.WriteString(" ")
		b.WriteString(l.Link)
	}
	return b.String()
}
