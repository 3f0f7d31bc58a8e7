package semantic

import "github.com/ppiankov/geoinfer/internal/model"

const (
	DefaultTopN  = 8
	DefaultFloor = 0.05
)

// Fields are searched in this order
var Fields = []model.Field{
	model.FieldTitle,
	model.FieldDescription,
	model.FieldChoices,
	model.FieldCombined,
}

// RetrievalHit is one index match for one prompt field
type RetrievalHit struct {
	Field  model.Field
	Record *model.IndexRecord
	Score  float64
}

// Retriever runs per-field nearest-neighbour search over an Index
type Retriever struct {
	index *Index
	topN  int
	floor float64
}

// NewRetriever creates a retriever. Non-positive values select the defaults.
func NewRetriever(index *Index, topN int, floor float64) *Retriever {
	if topN <= 0 {
		topN = DefaultTopN
	}
	if floor <= 0 {
		floor = DefaultFloor
	}
	return &Retriever{index: index, topN: topN, floor: floor}
}

// Retrieve returns the hits for every field. Empty fields have no hits.
func (r *Retriever) Retrieve(c Composed) map[model.Field][]RetrievalHit {
	out := make(map[model.Field][]RetrievalHit, len(Fields))
	for _, field := range Fields {
		text := c.Text(field)
		if text == "" || r.index.Len() == 0 {
			out[field] = nil
			continue
		}

		q := r.index.Embedder().Embed(text)
		for _, h := range r.index.Search(q, r.topN, r.floor) {
			out[field] = append(out[field], RetrievalHit{Field: field, Record: h.Record, Score: h.Score})
		}
	}
	return out
}
