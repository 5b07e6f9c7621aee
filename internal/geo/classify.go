package geo

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Proximity classification labels.
const (
	LabelSameCity      = "same_city"
	LabelMetroArea     = "metro_area"
	LabelLogisticsHub  = "logistics_hub"
	LabelOutOfCoverage = "out_of_coverage"
)

// Proximity scores per classification (1-5 scale).
const (
	scoreSameCity      = 5.0
	scoreMetroArea     = 4.0
	scoreLogisticsHub  = 3.5
	scoreOutOfCoverage = 3.0
)

// ClassifyProximity returns the proximity score and label for an advisor
// location relative to a request location. Total function: unresolved or
// partial locations degrade to out_of_coverage, never an error.
// Rules, first match wins:
//   - same_city: matching city (5.0)
//   - metro_area: both in the same non-empty metro area (4.0)
//   - logistics_hub: served by the same hub (3.5)
//   - out_of_coverage: anything else (3.0)
func ClassifyProximity(request, advisor Location) (float64, string) {
	if sameID(request.CityID, advisor.CityID) {
		return scoreSameCity, LabelSameCity
	}
	if request.MetroAreaID != "" && sameID(request.MetroAreaID, advisor.MetroAreaID) {
		return scoreMetroArea, LabelMetroArea
	}
	if sameID(request.HubID, advisor.HubID) {
		return scoreLogisticsHub, LabelLogisticsHub
	}
	return scoreOutOfCoverage, LabelOutOfCoverage
}

// sameID compares two identifiers after normalization. Empty identifiers
// never match anything.
func sameID(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return NormalizeID(a) == NormalizeID(b)
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeID folds an identifier for comparison: lowercase, trimmed, and
// accent-stripped (place identifiers arrive with inconsistent diacritics,
// e.g. "Bogotá" vs "bogota").
func NormalizeID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	out, _, err := transform.String(stripAccents, s)
	if err != nil {
		return s
	}
	return out
}
