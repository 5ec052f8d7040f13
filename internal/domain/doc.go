// Package domain holds the recommendation and availability engine for the
// event planner.
//
// # Classification
//
// Raw search results are classified by two ordered keyword tables. The
// category table is evaluated most-specific first and the first matching
// rule wins:
//
//	Vintage → Food → Arts → Entertainment → Fitness → General (fallback)
//
// The venue table lists outdoor keywords before indoor keywords, so text
// containing both is treated as Outdoor (weather-sensitive). No match on the
// venue table yields Unknown. Keywords match at the start of a word, so
// "market" also matches "markets" but not "supermarket".
//
// # Weather suitability
//
// A reading starts at 1.0 and loses:
//
//	temperature outside [4°C, 35°C]            −0.4
//	condition rain/snow/storm/thunder/fog/haze −0.5
//	wind above 32 kph (≈20 mph)                −0.2
//	humidity above 80%                         −0.1
//
// The result is clamped to [0,1] and banded: ≥0.75 High, ≥0.4 Medium, else
// Low. A score of 0.5 or more is outdoor friendly.
//
// # Availability
//
// Busy intervals are half-open [start, end). Free time is the complement of
// the merged busy set within [dayStart, dayEnd]; the two together always
// reconstruct the day exactly. Conflict suggestions are whole free slots long
// enough for the requested event, nearest start first.
//
// Classification, scoring and availability functions are pure and safe for
// concurrent use. Workflow is the only stateful type; each run owns one. The
// weather cache and collaborator transports live in internal/adapter.
package domain
