package domain

import (
	"strings"
	"unicode"
)

type categoryRule struct {
	category Category
	keywords []string
}

type venueRule struct {
	venue    VenueType
	keywords []string
}

// categoryRules is evaluated top to bottom; the first rule with a matching
// keyword decides the category. Narrow categories come first so that e.g.
// "vintage clothing market" is Vintage rather than a market/festival match.
var categoryRules = []categoryRule{
	{CategoryVintage, []string{"vintage", "antique", "retro", "flea market", "thrift", "collectible", "collector"}},
	{CategoryFood, []string{"food", "restaurant", "cafe", "dining", "brunch", "tasting", "bbq", "barbecue", "bakery", "wine", "beer"}},
	{CategoryArts, []string{"art", "gallery", "galleries", "museum", "exhibit", "sculpture", "painting", "theater", "theatre"}},
	{CategoryEntertainment, []string{"music", "concert", "performance", "show", "comedy", "festival", "dj", "band", "film", "movie", "party"}},
	{CategoryFitness, []string{"fitness", "yoga", "sport", "athletic", "run", "marathon", "gym", "hike", "hiking", "cycling", "workout"}},
}

// venueRules lists Outdoor before Indoor: text matching both is weather
// sensitive.
var venueRules = []venueRule{
	{VenueOutdoor, []string{
		"outdoor", "outside", "open air", "open-air", "park", "beach", "garden", "lawn", "street",
		"block party", "fair", "market", "festival", "walking tour", "hike", "hiking", "biking",
		"picnic", "bbq", "barbecue", "food truck", "parade", "rooftop", "courtyard", "waterfront",
		"pier", "plaza", "boardwalk",
	}},
	{VenueIndoor, []string{
		"indoor", "inside", "museum", "gallery", "galleries", "theater", "theatre", "cinema",
		"movie", "restaurant", "bar", "club", "lounge", "cafe", "coffee", "workshop", "class",
		"lecture", "seminar", "conference", "exhibition", "studio", "gym", "salon", "spa",
		"mall", "concert hall", "town hall", "library", "arena",
	}},
}

// Classify maps event text to a category and venue type. It never fails:
// unmatched text yields General and Unknown.
func Classify(text string) (Category, VenueType) {
	words := normalizeWords(text)
	return matchCategory(words), matchVenue(words)
}

// ClassifyEvent classifies a raw event from its title and snippet.
func ClassifyEvent(ev RawEvent) ClassifiedEvent {
	category, venue := Classify(ev.Title + " " + ev.Snippet)
	return ClassifiedEvent{RawEvent: ev, Category: category, VenueType: venue}
}

func matchCategory(words string) Category {
	for _, rule := range categoryRules {
		if containsAny(words, rule.keywords) {
			return rule.category
		}
	}
	return CategoryGeneral
}

func matchVenue(words string) VenueType {
	for _, rule := range venueRules {
		if containsAny(words, rule.keywords) {
			return rule.venue
		}
	}
	return VenueUnknown
}

// normalizeWords lower-cases text, replaces every run of non-alphanumeric
// characters with a single space, and prefixes a space so that word starts
// can be found with a plain substring search.
func normalizeWords(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 1)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return b.String()
}

func containsAny(words string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(words, " "+normalizeKeyword(kw)) {
			return true
		}
	}
	return false
}

// normalizeKeyword applies the same punctuation folding as normalizeWords
// without the leading space, so "open-air" matches "open air".
func normalizeKeyword(kw string) string {
	return strings.TrimSpace(normalizeWords(kw))
}
