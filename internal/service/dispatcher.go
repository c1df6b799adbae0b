package service

import (
	"context"
	"fmt"
	"strings"

	"oliv/internal/logger"
	"oliv/internal/metrics"
	"oliv/internal/model"
	"oliv/internal/utils"

	"go.uber.org/zap"
)

// Fixed replies
const (
	ScheduleViewingReply = "I can schedule the viewing for you myself. Could you provide a preferred date, time, or contact details? " +
		"I'll manage all arrangements directly."
	TellMeMoreReply = "I'd love to help. Could you tell me a little more about what you're looking for, " +
		"such as the area you have in mind and your budget?"
	PredictionUnavailableReply = "I'm sorry, I can't produce a price estimate for that property right now."
)

// Clarifying questions, one per guard field
const (
	AskLocation     = "Which area of Dubai are you interested in?"
	AskPropertyType = "What type of property do you have in mind, for example an apartment or a villa?"
	AskBudget       = "What's your maximum budget in AED?"
)

// Guarded context fields
const (
	FieldLocation     = "location"
	FieldPropertyType = "property_type"
	FieldBudget       = "budget"
)

// DefaultPredictionSize is the unit size assumed for a price check when the table has no median area
const DefaultPredictionSize = 100.0

// PriceLookup is the historical range and estimate source the dispatcher uses
type PriceLookup interface {
	GetPriceRange(ctx context.Context, area, propertyType string, bedrooms *int) *model.PriceStat
	PredictPrice(ctx context.Context, f model.PriceFeatures) (float64, bool)
}

// ListingFinder is the listing and commentary source the dispatcher uses
type ListingFinder interface {
	FindListings(ctx context.Context, q model.ListingQuery) []model.Listing
	FindCommentary(ctx context.Context, question string) string
	PriceCheckQuestion(r model.ResolvedContext) string
	MarketTrendQuestion(location string) string
	MaxResults() int
}

// Responder produces free-form replies for messages no intent covers
type Responder interface {
	Respond(ctx context.Context, history []model.Message) (string, bool)
}

type guard struct {
	field    string
	question string
	present  func(r model.ResolvedContext) bool
}

var (
	needLocation     = guard{FieldLocation, AskLocation, func(r model.ResolvedContext) bool { return r.HasLocation }}
	needPropertyType = guard{FieldPropertyType, AskPropertyType, func(r model.ResolvedContext) bool { return r.HasPropertyType }}
	needBudget       = guard{FieldBudget, AskBudget, func(r model.ResolvedContext) bool { return r.Budget != nil }}
)

// guardTable lists, per intent, the fields that must be known before acting, in asking order
var guardTable = map[model.Intent][]guard{
	model.IntentPriceCheck:      {needLocation, needPropertyType},
	model.IntentSearchListings:  {needLocation, needPropertyType, needBudget},
	model.IntentMarketTrend:     {needLocation},
	model.IntentScheduleViewing: nil,
	model.IntentNone:            nil,
}

// Outcome is the result of dispatching one turn
type Outcome struct {
	Intent model.Intent
	Reply  string
	// Missing is the field a clarifying question asked for, empty when the intent was acted on
	Missing string
}

// Dispatcher routes an intent and resolved context to a reply
type Dispatcher struct {
	prices    PriceLookup
	listings  ListingFinder
	responder Responder
	logger    *zap.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(prices PriceLookup, listings ListingFinder, responder Responder, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		prices:    prices,
		listings:  listings,
		responder: responder,
		logger:    logger.OrNop(log).Named("dispatcher"),
	}
}

// Dispatch asks at most one clarifying question, otherwise performs the intent's action.
// It always returns a non-empty reply.
func (d *Dispatcher) Dispatch(ctx context.Context, intent model.Intent, r model.ResolvedContext, history []model.Message) Outcome {
	if _, known := guardTable[intent]; !known {
		intent = model.IntentNone
	}

	if missing, ok := firstUnmet(intent, r); ok {
		metrics.ClarificationsTotal.WithLabelValues(missing.field).Inc()
		return Outcome{Intent: intent, Reply: missing.question, Missing: missing.field}
	}

	var reply string
	switch intent {
	case model.IntentPriceCheck:
		reply = d.priceCheck(ctx, r)
	case model.IntentSearchListings:
		reply = d.searchListings(ctx, r)
	case model.IntentMarketTrend:
		reply = d.marketTrend(ctx, r)
	case model.IntentScheduleViewing:
		reply = ScheduleViewingReply
	case model.IntentNone:
		reply = d.fallback(ctx, history)
	default:
		panic(fmt.Sprintf("unhandled intent %q", intent))
	}

	if strings.TrimSpace(reply) == "" {
		reply = TellMeMoreReply
	}
	return Outcome{Intent: intent, Reply: reply}
}

func firstUnmet(intent model.Intent, r model.ResolvedContext) (guard, bool) {
	for _, g := range guardTable[intent] {
		if !g.present(r) {
			return g, true
		}
	}
	return guard{}, false
}

func (d *Dispatcher) priceCheck(ctx context.Context, r model.ResolvedContext) string {
	bedrooms := r.Bedrooms
	stat := d.prices.GetPriceRange(ctx, r.Location, r.PropertyType, &bedrooms)

	size := DefaultPredictionSize
	if stat != nil && stat.MedianArea > 0 {
		size = stat.MedianArea
	}
	parking := 1
	location, propertyType := r.Location, r.PropertyType
	estimate, ok := d.prices.PredictPrice(ctx, model.PriceFeatures{
		Area:         &location,
		PropertyType: &propertyType,
		Size:         &size,
		Bedrooms:     &bedrooms,
		Parking:      &parking,
	})

	subject := fmt.Sprintf("a %s %s in %s", r.BedroomPhrase(), r.PropertyType, r.Location)
	var b strings.Builder
	switch {
	case !ok:
		b.WriteString(PredictionUnavailableReply)
	case r.Budget != nil:
		fmt.Fprintf(&b, "The estimated market price for %s is around %s. ", subject, utils.FormatAED(estimate))
		fmt.Fprintf(&b, "Your mentioned price of %s %s.", utils.FormatAED(*r.Budget), CompareBudget(*r.Budget, estimate))
	default:
		fmt.Fprintf(&b, "The estimated market price for %s is around %s.", subject, utils.FormatAED(estimate))
	}

	if stat != nil {
		b.WriteString(" ")
		b.WriteString(historicalSentence(stat))
	}

	commentary := d.listings.FindCommentary(ctx, d.listings.PriceCheckQuestion(r))
	if commentary != CommentaryUnavailable {
		b.WriteString(" ")
		b.WriteString(commentary)
	}
	return b.String()
}

// CompareBudget classifies a budget against an estimate. Only a strictly higher budget is above average.
func CompareBudget(budget, estimate float64) string {
	if budget > estimate {
		return "seems higher than the average"
	}
	return "is fair or below the average"
}

func (d *Dispatcher) searchListings(ctx context.Context, r model.ResolvedContext) string {
	q := model.ListingQuery{
		Location:     r.Location,
		PropertyType: r.PropertyType,
		MaxPrice:     r.Budget,
	}
	if r.HasBedrooms {
		bedrooms := r.Bedrooms
		q.Bedrooms = &bedrooms
	}

	listings := d.listings.FindListings(ctx, q)
	if limit := d.listings.MaxResults(); limit > 0 && len(listings) > limit {
		listings = listings[:limit]
	}

	subject := r.PropertyType
	if r.HasBedrooms {
		subject = r.BedroomPhrase() + " " + r.PropertyType
	}
	budget := utils.FormatAED(*r.Budget)

	if len(listings) == 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "I couldn't find exact matches for %s %s in %s under %s right now. ", article(subject), subject, r.Location, budget)
		b.WriteString("Would you like to adjust your budget or consider a nearby area?")
		bedrooms := r.Bedrooms
		if stat := d.prices.GetPriceRange(ctx, r.Location, r.PropertyType, &bedrooms); stat != nil {
			b.WriteString(" For reference, ")
			b.WriteString(lowerFirst(historicalSentence(stat)))
		}
		return b.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here are some options for %s %s in %s under %s:\n", article(subject), subject, r.Location, budget)
	for i, l := range listings {
		b.WriteString(formatListingEntry(i+1, l))
	}
	b.WriteString("\nI can arrange viewings for any of these myself. Just let me know which one catches your eye.")
	return b.String()
}

func (d *Dispatcher) marketTrend(ctx context.Context, r model.ResolvedContext) string {
	var b strings.Builder

	var stat *model.PriceStat
	if r.HasPropertyType {
		bedrooms := r.Bedrooms
		stat = d.prices.GetPriceRange(ctx, r.Location, r.PropertyType, &bedrooms)
	}
	if stat != nil {
		fmt.Fprintf(&b, "In %s, %s %s units have historically sold between %s and %s, with a median of about %s.",
			r.Location, r.BedroomPhrase(), r.PropertyType,
			utils.FormatAED(stat.MinPrice), utils.FormatAED(stat.MaxPrice), utils.FormatAED(stat.MedianPrice))
	} else {
		fmt.Fprintf(&b, "Let's consider the current market trends in %s.", r.Location)
	}

	b.WriteString(" ")
	b.WriteString(d.listings.FindCommentary(ctx, d.listings.MarketTrendQuestion(r.Location)))
	return b.String()
}

func (d *Dispatcher) fallback(ctx context.Context, history []model.Message) string {
	if d.responder != nil {
		if reply, ok := d.responder.Respond(ctx, history); ok {
			return reply
		}
	}
	return TellMeMoreReply
}

func historicalSentence(stat *model.PriceStat) string {
	return fmt.Sprintf("Historically, similar units have sold between %s and %s, with a median of about %s.",
		utils.FormatAED(stat.MinPrice), utils.FormatAED(stat.MaxPrice), utils.FormatAED(stat.MedianPrice))
}

func formatListingEntry(n int, l model.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. %s", n, l.Name)
	if l.Price != "" {
		fmt.Fprintf(&b, " - %s", l.Price)
	}
	b.WriteString("\n")
	if l.Features != "" {
		fmt.Fprintf(&b, "   %s\n", l.Features)
	}
	if l.Link != "" {
		fmt.Fprintf(&b, "   %s\n", l.Link)
	}
	return b.String()
}

func article(noun string) string {
	if noun != "" && strings.ContainsRune("aeiouAEIOU", rune(noun[0])) {
		return "an"
	}
	return "a"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
