package domain

import "sort"

const (
	// AdvisoryWeatherIndependent marks indoor events.
	AdvisoryWeatherIndependent = "weather-independent"
	// AdvisoryWeatherUnknown marks events scored without a usable reading.
	AdvisoryWeatherUnknown = "weather unknown"

	unknownWeatherScore = 0.5
)

// Recommend classifies and scores each event and returns them ranked by
// suitability (descending), ties broken by ascending SourceRank. A nil reading
// means weather is unknown. The input slice is not modified.
func Recommend(events []RawEvent, reading *WeatherReading) []Recommendation {
	recs := make([]Recommendation, 0, len(events))

	var outdoor *Suitability
	if reading != nil {
		s := AnalyzeWeather(*reading)
		outdoor = &s
	}

	for _, ev := range events {
		recs = append(recs, score(ClassifyEvent(ev), outdoor))
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].SuitabilityScore != recs[j].SuitabilityScore {
			return recs[i].SuitabilityScore > recs[j].SuitabilityScore
		}
		return recs[i].Event.SourceRank < recs[j].Event.SourceRank
	})

	for i := range recs {
		recs[i].Rank = i + 1
	}
	return recs
}

func score(ev ClassifiedEvent, outdoor *Suitability) Recommendation {
	rec := Recommendation{Event: ev}
	switch {
	case ev.VenueType == VenueIndoor:
		rec.SuitabilityScore = 1.0
		rec.Confidence = ConfidenceHigh
		rec.Advisory = AdvisoryWeatherIndependent
	case ev.VenueType == VenueOutdoor && outdoor != nil:
		rec.SuitabilityScore = outdoor.Score
		rec.Confidence = outdoor.Confidence
		rec.Advisory = outdoor.Advisory
	default:
		rec.SuitabilityScore = unknownWeatherScore
		rec.Confidence = ConfidenceLow
		rec.Advisory = AdvisoryWeatherUnknown
	}
	return rec
}
