package semantic

import (
	"fmt"
	"time"

	"github.com/ppiankov/geoinfer/internal/logging"
	"github.com/ppiankov/geoinfer/internal/model"
)

// Output is what one semantic pass produces
type Output struct {
	Candidates []model.Candidate // Refined, best first
	EventType  model.EventType
	GeoType    model.GeoType
	PolicyLike bool
}

// Pipeline composes the prompt, retrieves, scores, classifies and refines.
// It is read-only after construction and safe for concurrent use.
type Pipeline struct {
	index      *Index
	retriever  *Retriever
	scorer     *Scorer
	classifier *Classifier
	log        logging.Logger
}

// NewPipeline loads or builds the index and wires the stages from cfg.
// A configured seed file that does not exist fails with ErrSeedMissing.
func NewPipeline(cfg model.SemanticConfig, log logging.Logger) (*Pipeline, error) {
	log = logging.OrNop(log)
	embedder := NewEmbedder(cfg.Dim)

	seed, err := ReadSeed(cfg.SeedPath)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	index, err := LoadOrBuild(seed, cfg.IndexDir, embedder)
	if err != nil {
		return nil, fmt.Errorf("semantic index: %w", err)
	}
	log.Debug("semantic index ready",
		logging.Int("records", index.Len()),
		logging.Int("dim", embedder.Dim()),
		logging.Duration("elapsed", time.Since(start)))

	params := DefaultCalibration()
	if cfg.CalibrationFile != "" {
		if params, err = LoadCalibration(cfg.CalibrationFile); err != nil {
			return nil, err
		}
	}

	return NewPipelineFromIndex(index, NewCalibrator(params), cfg.TopN, cfg.TopK, cfg.Floor, log), nil
}

// NewPipelineFromIndex wires a pipeline around an existing index
func NewPipelineFromIndex(index *Index, cal *Calibrator, topN, topK int, floor float64, log logging.Logger) *Pipeline {
	return &Pipeline{
		index:      index,
		retriever:  NewRetriever(index, topN, floor),
		scorer:     NewScorer(cal, topK),
		classifier: NewDefaultClassifier(),
		log:        logging.OrNop(log),
	}
}

// Index returns the underlying place index
func (p *Pipeline) Index() *Index { return p.index }

// Classifier returns the event type classifier
func (p *Pipeline) Classifier() *Classifier { return p.classifier }

// Run infers semantic candidates for in
func (p *Pipeline) Run(in model.Input) Output {
	composed := Compose(in)
	eventType := p.classifier.Predict(composed.Combined)
	policy := p.classifier.IsPolicyLike(eventType, composed.Combined)

	scored := p.scorer.Score(p.retriever.Retrieve(composed))
	cands := make([]model.Candidate, 0, len(scored))
	for _, s := range scored {
		cands = append(cands, toCandidate(s, composed))
	}
	cands = Refine(cands, p.index, policy)

	confs := make([]float64, len(cands))
	bestTitle := 0.0
	for i, c := range cands {
		confs[i] = c.Confidence
		if i == 0 {
			bestTitle = c.TitleScore
		}
	}
	geo := PostProcess(DecideGeoType(confs, eventType), confs, bestTitle, composed.Combined)

	p.log.Debug("semantic pass",
		logging.String("event_type", string(eventType)),
		logging.String("geo_type", string(geo)),
		logging.Int("candidates", len(cands)))

	return Output{Candidates: cands, EventType: eventType, GeoType: geo, PolicyLike: policy}
}

func toCandidate(s ScoredPlace, c Composed) model.Candidate {
	rec := s.Record
	evidence := make([]model.EvidenceItem, 0, len(s.Evidence))
	for _, h := range s.Evidence {
		field := h.Field
		if field == model.FieldCombined {
			field = model.FieldTitle
		}
		evidence = append(evidence, model.EvidenceItem{
			Field:        field,
			Snippet:      c.Snippet(h.Field),
			RetrievalHit: h.Record.SearchableText,
			Score:        model.Round2(h.Score),
		})
	}

	return model.Candidate{
		Name:       rec.PlaceName,
		Kind:       model.ParseKind(rec.Granularity),
		Confidence: s.Confidence,
		Reason:     fmt.Sprintf("Semantic match %q (%.2f)", rec.PlaceName, s.Confidence),
		Method:     model.MethodSemantic,
		Coords:     &model.Coordinates{Lat: rec.Lat, Lon: rec.Lon},
		PlaceID:    rec.PlaceID,
		Country:    rec.Country,
		Evidence:   evidence,
		TitleScore: s.FieldMax[model.FieldTitle],
	}
}
