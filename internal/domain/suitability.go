package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	minComfortCelsius  = 4.0
	maxComfortCelsius  = 35.0
	maxWindKph         = 32.0
	maxHumidityPercent = 80.0

	temperaturePenalty = 0.4
	conditionPenalty   = 0.5
	windPenalty        = 0.2
	humidityPenalty    = 0.1

	outdoorFriendlyScore = 0.5
	highConfidenceScore  = 0.75
	mediumConfidence     = 0.4
)

// adverseConditions are matched as case-insensitive substrings of the
// condition text. "thunder" is listed separately because providers report
// "Thunderstorm" as well as "T-storms".
var adverseConditions = []string{"rain", "snow", "storm", "thunder", "fog", "haze"}

// Suitability is the result of scoring a weather reading for outdoor events.
type Suitability struct {
	Score             float64    `json:"score"`
	Confidence        Confidence `json:"confidence"`
	Advisory          string     `json:"advisory"`
	IsOutdoorFriendly bool       `json:"is_outdoor_friendly"`
}

type deduction struct {
	penalty float64
	reason  string
}

// AnalyzeWeather scores a reading for outdoor suitability.
func AnalyzeWeather(r WeatherReading) Suitability {
	var deductions []deduction

	if r.TemperatureCelsius < minComfortCelsius || r.TemperatureCelsius > maxComfortCelsius {
		deductions = append(deductions, deduction{temperaturePenalty,
			fmt.Sprintf("temperature %.1f°C outside %.0f–%.0f°C", r.TemperatureCelsius, minComfortCelsius, maxComfortCelsius)})
	}
	if cond := adverseCondition(r.ConditionText); cond != "" {
		deductions = append(deductions, deduction{conditionPenalty,
			fmt.Sprintf("conditions: %s", strings.TrimSpace(r.ConditionText))})
	}
	if r.WindSpeedKph > maxWindKph {
		deductions = append(deductions, deduction{windPenalty,
			fmt.Sprintf("high winds %.0f kph", r.WindSpeedKph)})
	}
	if r.HumidityPercent > maxHumidityPercent {
		deductions = append(deductions, deduction{humidityPenalty,
			fmt.Sprintf("high humidity %.0f%%", r.HumidityPercent)})
	}

	score := 1.0
	for _, d := range deductions {
		score -= d.penalty
	}
	score = clampScore(score)

	return Suitability{
		Score:             score,
		Confidence:        confidenceFor(score),
		Advisory:          composeAdvisory(r, deductions),
		IsOutdoorFriendly: score >= outdoorFriendlyScore,
	}
}

func adverseCondition(text string) string {
	lower := strings.ToLower(text)
	for _, c := range adverseConditions {
		if strings.Contains(lower, c) {
			return c
		}
	}
	return ""
}

// clampScore bounds the score to [0,1] and rounds to two decimals so that
// repeated float subtraction does not leak into band comparisons.
func clampScore(s float64) float64 {
	s = math.Round(s*100) / 100
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

func confidenceFor(score float64) Confidence {
	switch {
	case score >= highConfidenceScore:
		return ConfidenceHigh
	case score >= mediumConfidence:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// composeAdvisory names the deducting factors, largest penalty first.
func composeAdvisory(r WeatherReading, deductions []deduction) string {
	if len(deductions) == 0 {
		cond := strings.TrimSpace(r.ConditionText)
		if cond == "" {
			return fmt.Sprintf("good outdoor weather: %.0f°C", r.TemperatureCelsius)
		}
		return fmt.Sprintf("good outdoor weather: %.0f°C, %s", r.TemperatureCelsius, cond)
	}
	sorted := make([]deduction, len(deductions))
	copy(sorted, deductions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].penalty > sorted[j].penalty })

	reasons := make([]string, len(sorted))
	for i, d := range sorted {
		reasons[i] = d.reason
	}
	return strings.Join(reasons, "; ")
}
