package semantic

import (
	"regexp"

	"github.com/ppiankov/geoinfer/internal/model"
)

const (
	noneFloor       = 0.09
	lowConfidence   = 0.2
	ambiguousMargin = 0.04
	multiMargin     = 0.06
	explicitTitle   = 0.82
	closePairFloor  = 0.45
	closePairSpread = 0.08
)

var conflictRe = regexp.MustCompile(`(?i)\b(?:vs\.?|versus)\s+\S|\bstrikes?\b.*\bagainst\b|\b(?:war|conflict)\s+between\b`)

// DecideGeoType maps confidences sorted descending to a geo type
func DecideGeoType(confidences []float64, eventType model.EventType) model.GeoType {
	if len(confidences) == 0 {
		return model.GeoTypeNone
	}

	top := confidences[0]
	second := 0.0
	if len(confidences) > 1 {
		second = confidences[1]
	}
	margin := top - second

	switch {
	case top < noneFloor:
		return model.GeoTypeNone
	case top < lowConfidence && margin < ambiguousMargin:
		return model.GeoTypeAmbiguous
	case len(confidences) > 1 && top >= lowConfidence && margin < multiMargin:
		return model.GeoTypeMulti
	case eventType == model.EventTypeGlobal && top < lowConfidence:
		return model.GeoTypeGlobal
	}
	return model.GeoTypeInferred
}

// PostProcess adjusts a decided geo type: a very strong title match makes
// the answer explicit, and two strong close candidates or comparison
// language in text force multi.
func PostProcess(geo model.GeoType, confidences []float64, bestTitleScore float64, text string) model.GeoType {
	if (geo == model.GeoTypeInferred || geo == model.GeoTypeMulti) && bestTitleScore >= explicitTitle {
		geo = model.GeoTypeExplicit
	}

	if len(confidences) > 1 {
		a, b := confidences[0], confidences[1]
		if a >= closePairFloor && b >= closePairFloor && a-b <= closePairSpread {
			return model.GeoTypeMulti
		}
		if HasConflictLanguage(text) {
			return model.GeoTypeMulti
		}
	}
	return geo
}

// HasConflictLanguage reports comparison or conflict phrasing such as
// "X vs Y" or "strike ... against"
func HasConflictLanguage(text string) bool {
	return conflictRe.MatchString(text)
}
