package service

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"oliv/internal/model"
)

// Ranker orders provider listings against the user's budget
type Ranker struct {
	weightRelevance float64
	weightPrice     float64
}

// NewRanker creates a new ranker with specified weights
func NewRanker(weightRelevance, weightPrice float64) *Ranker {
	return &Ranker{
		weightRelevance: weightRelevance,
		weightPrice:     weightPrice,
	}
}

const (
	tierWithinBudget = iota
	tierUnknownPrice
	tierOverBudget
)

type rankedListing struct {
	listing model.Listing
	tier    int
	score   float64
}

// RankListings puts listings within budget first, unpriced ones next and over-budget ones last.
// Within a tier, listings closer to the budget and earlier in provider order come first.
// Without a budget the provider order is kept.
func (r *Ranker) RankListings(listings []model.Listing, maxPrice *float64) []model.Listing {
	if maxPrice == nil || *maxPrice <= 0 || len(listings) < 2 {
		return listings
	}

	ranked := make([]rankedListing, 0, len(listings))
	for i, l := range listings {
		// provider order stands in for relevance
		relevance := 1.0 - float64(i)/float64(len(listings))
		price, ok := ParseDisplayPrice(l.Price)

		item := rankedListing{listing: l}
		switch {
		case !ok:
			item.tier = tierUnknownPrice
		case price > *maxPrice:
			item.tier = tierOverBudget
		default:
			item.tier = tierWithinBudget
		}
		item.score = r.weightRelevance*relevance + r.weightPrice*r.calculatePriceScore(price, ok, *maxPrice)
		ranked = append(ranked, item)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].tier != ranked[j].tier {
			return ranked[i].tier < ranked[j].tier
		}
		return ranked[i].score > ranked[j].score
	})

	out := make([]model.Listing, len(ranked))
	for i, item := range ranked {
		out[i] = item.listing
	}
	return out
}

// calculatePriceScore calculates how well the price matches user's budget
func (r *Ranker) calculatePriceScore(price float64, known bool, maxPrice float64) float64 {
	if !known {
		return 0.5
	}
	if price > maxPrice {
		// the further over budget, the lower
		return math.Max(0, 1.0-(price-maxPrice)/maxPrice)
	}
	// Closer to max is better
	return math.Min(price/maxPrice, 1.0)
}

var displayPriceRe = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*(million|mn|m|thousand|k)?\b`)

// ParseDisplayPrice reads the amount from listing display text such as
// "AED 1,100,000", "1.2M AED" or "950K". Text like "2 BR | AED 1,500,000" carries
// other counts, so the largest amount wins. It reports false when no amount is present.
func ParseDisplayPrice(s string) (float64, bool) {
	best := 0.0
	for _, m := range displayPriceRe.FindAllStringSubmatch(strings.ToLower(s), -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil || v <= 0 {
			continue
		}
		switch m[2] {
		case "million", "mn", "m":
			v *= 1_000_000
		case "thousand", "k":
			v *= 1_000
		}
		best = math.Max(best, v)
	}
	return best, best > 0
}
