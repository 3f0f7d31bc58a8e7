package semantic

import (
	"sort"

	"github.com/ppiankov/geoinfer/internal/model"
)

const (
	DefaultTopK        = 5
	agreementThreshold = 0.4
	maxEvidence        = 6
)

// ScoredPlace is a calibrated place candidate with its best hits
type ScoredPlace struct {
	Record     *model.IndexRecord
	Confidence float64
	FieldMax   map[model.Field]float64
	Evidence   []RetrievalHit
}

// Scorer groups hits by place and calibrates a confidence for each
type Scorer struct {
	calibrator *Calibrator
	topK       int
}

// NewScorer creates a scorer returning at most topK places
func NewScorer(c *Calibrator, topK int) *Scorer {
	if c == nil {
		c = NewCalibrator(DefaultCalibration())
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Scorer{calibrator: c, topK: topK}
}

// Score returns places ordered by confidence, best first
func (s *Scorer) Score(hitsByField map[model.Field][]RetrievalHit) []ScoredPlace {
	var order []string
	buckets := make(map[string][]RetrievalHit)
	for _, field := range Fields {
		for _, h := range hitsByField[field] {
			id := h.Record.PlaceID
			if _, ok := buckets[id]; !ok {
				order = append(order, id)
			}
			buckets[id] = append(buckets[id], h)
		}
	}

	out := make([]ScoredPlace, 0, len(order))
	for _, id := range order {
		hits := buckets[id]
		fieldMax := make(map[model.Field]float64, len(Fields))
		for _, h := range hits {
			if h.Score > fieldMax[h.Field] {
				fieldMax[h.Field] = h.Score
			}
		}

		agree := 0
		for _, f := range []model.Field{model.FieldTitle, model.FieldDescription, model.FieldChoices} {
			if fieldMax[f] > agreementThreshold {
				agree++
			}
		}

		rec := hits[0].Record
		conf := s.calibrator.Confidence(Features{
			Combined:    fieldMax[model.FieldCombined],
			Title:       fieldMax[model.FieldTitle],
			Description: fieldMax[model.FieldDescription],
			Choices:     fieldMax[model.FieldChoices],
			Agreement:   float64(agree) / 3,
			Importance:  clamp01(rec.Importance),
		})

		evidence := append([]RetrievalHit(nil), hits...)
		sort.SliceStable(evidence, func(i, j int) bool { return evidence[i].Score > evidence[j].Score })
		if len(evidence) > maxEvidence {
			evidence = evidence[:maxEvidence]
		}

		out = append(out, ScoredPlace{Record: rec, Confidence: conf, FieldMax: fieldMax, Evidence: evidence})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if len(out) > s.topK {
		out = out[:s.topK]
	}
	return out
}
