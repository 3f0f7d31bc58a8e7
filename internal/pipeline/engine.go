package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/geoinfer/internal/event"
	"github.com/ppiankov/geoinfer/internal/gazetteer"
	"github.com/ppiankov/geoinfer/internal/geocode"
	"github.com/ppiankov/geoinfer/internal/heuristics"
	"github.com/ppiankov/geoinfer/internal/jurisdiction"
	"github.com/ppiankov/geoinfer/internal/llm"
	"github.com/ppiankov/geoinfer/internal/logging"
	"github.com/ppiankov/geoinfer/internal/metrics"
	"github.com/ppiankov/geoinfer/internal/model"
	"github.com/ppiankov/geoinfer/internal/nlp"
	"github.com/ppiankov/geoinfer/internal/score"
	"github.com/ppiankov/geoinfer/internal/semantic"
	"github.com/ppiankov/geoinfer/internal/util"
)

// Confidence constants for engine-built candidates
const (
	globalConfidence = 0.90

	gazetteerCityConf    = 0.75
	gazetteerCountryConf = 0.70
	gazetteerStateConf   = 0.65
	gazetteerOtherConf   = 0.45
	gazetteerBonus       = 0.05
	gazetteerMaxConf     = 0.95
	gazetteerEarlyChars  = 100

	eventConfirmedMin = 0.55
	eventConfirmedMax = 0.90
	eventMissingMin   = 0.25
	eventMissingMax   = 0.50

	evidenceSnippetChars = 160
)

// EventResolver resolves named-event venues. It never fails; nil means no
// event was named.
type EventResolver interface {
	Resolve(ctx context.Context, text string) *model.EventVenueResult
}

// Deps are the components an Engine runs. Nil tables fall back to the
// embedded defaults; nil optional stages are skipped.
type Deps struct {
	Gazetteer    *gazetteer.Matcher
	Heuristics   *heuristics.Engine
	Jurisdiction *jurisdiction.Heuristic
	Recognizer   nlp.Recognizer
	Events       EventResolver
	Semantic     *semantic.Pipeline
	Classifier   *semantic.Classifier
	Geocoder     geocode.Geocoder
	LLM          *llm.Locator
	Metrics      *metrics.Metrics
	Logger       logging.Logger
	NewID        func() string
}

// Engine runs every signal generator over a prompt and arbitrates the
// candidates. It is read-only after NewEngine and safe for concurrent use.
type Engine struct {
	geo          *gazetteer.Matcher
	heuristics   *heuristics.Engine
	jurisdiction *jurisdiction.Heuristic
	recognizer   nlp.Recognizer
	events       EventResolver
	semantic     *semantic.Pipeline
	classifier   *semantic.Classifier
	geocoder     geocode.Geocoder
	llm          *llm.Locator
	metrics      *metrics.Metrics
	arbiter      *score.Arbiter
	mergeFloor   float64
	log          logging.Logger
	newID        func() string
}

// NewEngine wires an engine from cfg and deps
func NewEngine(cfg *model.Config, deps Deps) *Engine {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}

	e := &Engine{
		geo:          deps.Gazetteer,
		heuristics:   deps.Heuristics,
		jurisdiction: deps.Jurisdiction,
		recognizer:   deps.Recognizer,
		events:       deps.Events,
		semantic:     deps.Semantic,
		classifier:   deps.Classifier,
		geocoder:     deps.Geocoder,
		llm:          deps.LLM,
		metrics:      deps.Metrics,
		arbiter:      score.NewArbiter(cfg.Inference.MinConfidence, cfg.Inference.MaxCandidates),
		mergeFloor:   cfg.Semantic.MergeFloor,
		log:          logging.OrNop(deps.Logger),
		newID:        deps.NewID,
	}

	if e.geo == nil {
		e.geo = gazetteer.New(gazetteer.DefaultTable())
	}
	if e.heuristics == nil {
		e.heuristics = heuristics.NewEngine(heuristics.DefaultTables())
	}
	if e.jurisdiction == nil {
		e.jurisdiction = jurisdiction.New(jurisdiction.DefaultTables())
	}
	if e.recognizer == nil {
		e.recognizer = nlp.New(cfg.Inference.NLP, e.geo)
	}
	if e.classifier == nil {
		if e.semantic != nil {
			e.classifier = e.semantic.Classifier()
		} else {
			e.classifier = semantic.NewDefaultClassifier()
		}
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

// Infer runs the full pipeline for one prompt
func (e *Engine) Infer(ctx context.Context, in model.Input) (*model.Result, error) {
	if err := in.Validate(); err != nil {
		e.metrics.IncInferenceError()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		e.metrics.IncInferenceError()
		return nil, err
	}

	start := time.Now()
	id := in.ID
	if id == "" {
		id = e.newID()
	}
	composed := semantic.Compose(in)
	text := flatten(composed)
	log := e.log.With(logging.String("id", id))

	// 0. Global topics short-circuit everything else
	if e.heuristics.IsGlobalTopic(text, e.geo) {
		keyword, _ := e.heuristics.GlobalKeyword(text)
		result := e.globalResult(id, composed.Title, keyword)
		e.finish(result, start)
		log.Debug("global topic", logging.String("keyword", keyword))
		return result, nil
	}

	var cands []model.Candidate

	// 1. Domain heuristics
	e.stage(metrics.StageHeuristics, func() {
		cands = append(cands, e.heuristics.Apply(text)...)
	})

	// 2. Gazetteer
	var countries []string
	e.stage(metrics.StageGazetteer, func() {
		var geoCands []model.Candidate
		geoCands, countries = e.gazetteerCandidates(text)
		cands = append(cands, geoCands...)
	})

	// 3. Proper nouns, skipped for named events where titles like
	// "Best Picture Winner" are not places
	intent := event.Detect(text)
	if intent == nil {
		e.stage(metrics.StageNLP, func() {
			cands = append(cands, e.recognizer.Locations(text)...)
		})
	}

	// 4. Seat of government for policy prompts
	e.stage(metrics.StageJurisdiction, func() {
		cands = append(cands, e.jurisdiction.Apply(text, countries, cands)...)
	})

	// 5. Event venue
	var venue *model.EventVenueResult
	if intent != nil && e.events != nil {
		e.stage(metrics.StageEvent, func() {
			venue = e.events.Resolve(ctx, text)
		})
		cands = append(cands, e.eventCandidates(venue, cands)...)
	}
	missingVenue := venue != nil && venue.Status != model.VenueConfirmed

	// 6. Semantic retrieval
	var semOut *semantic.Output
	if e.semantic != nil {
		e.stage(metrics.StageSemantic, func() {
			out := e.semantic.Run(in)
			semOut = &out
		})
		if !missingVenue {
			cands = e.mergeSemantic(cands, semOut.Candidates)
		}
	}

	attribute(cands, composed)

	// 7. Arbitration. Sentinels are held out so they never discount or
	// outrank a concrete location.
	concrete, sentinels := partition(cands)
	concrete = semantic.DropCoveredCountries(e.withCountries(concrete))
	final := e.arbiter.Arbitrate(concrete)
	if len(final) == 0 {
		final = bestSentinel(sentinels)
	}

	// 8. LLM fallback
	if len(final) == 0 && e.llm.IsEnabled() {
		final = e.fallback(ctx, in, log)
	}

	// 9. Coordinates and place ids
	e.stage(metrics.StageGeocode, func() {
		for i := range final {
			e.resolvePlace(ctx, &final[i], log)
		}
	})

	// 10. Geo type and event type
	var eventType model.EventType
	if semOut != nil {
		eventType = semOut.EventType
	} else {
		eventType = e.classifier.Predict(composed.Combined)
	}

	result := &model.Result{
		ID:        id,
		Title:     composed.Title,
		GeoType:   decideGeoType(final, eventType, text),
		EventType: eventType,
		Locations: toLocations(final),
	}
	for _, c := range final {
		if !c.IsSentinel() {
			result.HasLocation = true
		}
	}
	result.IsGlobal = result.GeoType == model.GeoTypeGlobal

	e.finish(result, start)
	log.Debug("inference complete",
		logging.String("geo_type", string(result.GeoType)),
		logging.String("event_type", string(result.EventType)),
		logging.Int("locations", len(result.Locations)),
		logging.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (e *Engine) stage(name string, fn func()) {
	start := time.Now()
	fn()
	e.metrics.ObserveStage(name, time.Since(start))
}

func (e *Engine) finish(result *model.Result, start time.Time) {
	e.metrics.ObserveStage(metrics.StageTotal, time.Since(start))
	e.metrics.ObserveInference(result.GeoType)
}

func (e *Engine) globalResult(id, title, keyword string) *model.Result {
	reason := "Prompt topic is global"
	if keyword != "" {
		reason = fmt.Sprintf("Prompt topic is global (keyword '%s')", keyword)
	}
	return &model.Result{
		ID:        id,
		Title:     title,
		GeoType:   model.GeoTypeGlobal,
		EventType: model.EventTypeGlobal,
		Locations: []model.Location{{
			PlaceID:     model.GlobalPlaceID,
			Name:        model.GlobalName,
			Granularity: model.GranularityGlobal,
			Confidence:  globalConfidence,
			Reason:      reason,
			Method:      model.MethodHeuristic,
			Evidence:    []model.EvidenceItem{},
		}},
		IsGlobal: true,
	}
}

// gazetteerCandidates scores every gazetteer match, keeping the best per
// entry, and returns the names of the countries found
func (e *Engine) gazetteerCandidates(text string) ([]model.Candidate, []string) {
	var (
		out       []model.Candidate
		countries []string
		index     = make(map[*gazetteer.Entry]int)
	)

	for _, m := range e.geo.FindAll(text) {
		entry := m.Entry
		conf := gazetteerScore(m)

		if entry.Kind == model.KindCountry {
			countries = append(countries, entry.Name)
		}

		if i, seen := index[entry]; seen {
			if conf > out[i].Confidence {
				out[i].Confidence = conf
			}
			continue
		}
		index[entry] = len(out)
		out = append(out, model.Candidate{
			Name:       entry.Name,
			Kind:       entry.Kind,
			Confidence: conf,
			Reason:     fmt.Sprintf("Gazetteer match: '%s' -> %s", m.Surface, entry.Name),
			Method:     model.MethodGazetteer,
			Coords:     entry.Coords(),
			Country:    entry.Country,
			Evidence: []model.EvidenceItem{{
				Field:        model.FieldCombined,
				Snippet:      m.Surface,
				RetrievalHit: entry.Name,
				Score:        conf,
			}},
		})
	}
	return out, countries
}

func gazetteerScore(m gazetteer.Match) float64 {
	var conf float64
	switch m.Entry.Kind {
	case model.KindCity:
		conf = gazetteerCityConf
	case model.KindCountry:
		conf = gazetteerCountryConf
	case model.KindState:
		conf = gazetteerStateConf
	default:
		conf = gazetteerOtherConf
	}
	if m.Surface == util.Fold(m.Entry.Head()) {
		conf += gazetteerBonus
	}
	if m.Start < gazetteerEarlyChars {
		conf += gazetteerBonus
	}
	return model.Round2(math.Min(conf, gazetteerMaxConf))
}

// eventCandidates turns a venue resolution into a city candidate or the
// not_available sentinel. The event name itself never becomes a location.
func (e *Engine) eventCandidates(res *model.EventVenueResult, existing []model.Candidate) []model.Candidate {
	if res == nil {
		return nil
	}
	snippet := strings.ReplaceAll(res.EventKey, "_", " ")

	if res.Status == model.VenueConfirmed && res.City != "" {
		name, entry := e.venueName(res.City, res.Country)
		for _, c := range existing {
			if score.MergeKey(c.Name) == score.MergeKey(name) {
				return nil
			}
		}

		conf := model.Round2(math.Max(eventConfirmedMin, math.Min(res.Confidence, eventConfirmedMax)))
		reason := "Event venue lookup: confirmed"
		if res.VenueName != "" {
			reason += fmt.Sprintf(" venue '%s'", res.VenueName)
		}
		if res.SourceURL != "" {
			reason += fmt.Sprintf(" (source: %s)", res.SourceURL)
		}

		c := model.Candidate{
			Name:       name,
			Kind:       model.KindCity,
			Confidence: conf,
			Reason:     reason,
			Method:     model.MethodEvent,
			Coords:     res.Coords,
			Country:    res.Country,
			Evidence: []model.EvidenceItem{{
				Field:        model.FieldCombined,
				Snippet:      snippet,
				RetrievalHit: res.VenueName,
				Score:        conf,
			}},
		}
		if entry != nil {
			c.Country = entry.Country
			if c.Coords == nil {
				c.Coords = entry.Coords()
			}
		}
		return []model.Candidate{c}
	}

	reason := res.Reason
	if reason == "" {
		reason = "Event venue not publicly available"
	}
	conf := model.Round2(math.Max(eventMissingMin, math.Min(res.Confidence, eventMissingMax)))
	return []model.Candidate{{
		Name:       model.NotAvailableName,
		Kind:       model.KindGlobal,
		Confidence: conf,
		Reason:     reason,
		Method:     model.MethodEvent,
		PlaceID:    model.NotAvailablePlaceID,
		Evidence: []model.EvidenceItem{{
			Field:        model.FieldCombined,
			Snippet:      snippet,
			RetrievalHit: res.EventKey,
			Score:        conf,
		}},
	}}
}

// venueName maps a resolved city onto its gazetteer name when one exists
func (e *Engine) venueName(city, country string) (string, *gazetteer.Entry) {
	queries := []string{city}
	raw := city
	if country != "" {
		raw = city + ", " + country
		queries = []string{raw, city}
	}
	for _, q := range queries {
		if entry, ok := e.geo.Lookup(q); ok && entry.Kind != model.KindCountry {
			return entry.Name, entry
		}
	}
	return raw, nil
}

// mergeSemantic adds semantic candidates that either corroborate an existing
// candidate or clear the merge floor on their own
func (e *Engine) mergeSemantic(cands, sem []model.Candidate) []model.Candidate {
	have := make(map[string]bool, len(cands))
	for _, c := range cands {
		have[score.MergeKey(c.Name)] = true
	}
	for _, c := range sem {
		if have[score.MergeKey(c.Name)] || c.Confidence >= e.mergeFloor {
			cands = append(cands, c)
		}
	}
	return cands
}

func bestSentinel(sentinels []model.Candidate) []model.Candidate {
	best := score.Finalize(sentinels, 0, 1)
	if len(best) == 0 {
		return nil
	}
	return best
}

func (e *Engine) fallback(ctx context.Context, in model.Input, log logging.Logger) []model.Candidate {
	var (
		cands []model.Candidate
		err   error
	)
	e.stage(metrics.StageLLM, func() {
		cands, err = e.llm.Locate(ctx, in)
	})
	if err != nil {
		e.metrics.ObserveLLMFallback("error")
		log.Warn("llm fallback failed", logging.String("provider", e.llm.ProviderName()), logging.Error(err))
		return nil
	}
	if len(cands) == 0 {
		e.metrics.ObserveLLMFallback("empty")
		return nil
	}
	e.metrics.ObserveLLMFallback("ok")

	for i := range cands {
		cands[i].Evidence = []model.EvidenceItem{{
			Field:        model.FieldTitle,
			Snippet:      util.Snippet(strings.TrimSpace(in.Title), evidenceSnippetChars),
			RetrievalHit: cands[i].Name,
			Score:        cands[i].Confidence,
		}}
	}

	concrete, sentinels := partition(cands)
	concrete = semantic.DropCoveredCountries(e.withCountries(concrete))
	final := e.arbiter.Arbitrate(concrete)
	if len(final) == 0 {
		final = bestSentinel(sentinels)
	}
	return final
}

// resolvePlace fills coordinates, country and place id from the gazetteer,
// then the semantic index, then the external geocoder
func (e *Engine) resolvePlace(ctx context.Context, c *model.Candidate, log logging.Logger) {
	if c.IsSentinel() {
		if c.PlaceID == "" {
			c.PlaceID = model.GlobalPlaceID
		}
		return
	}

	canonical := c.Name
	if entry, ok := e.geo.Lookup(c.Name); ok {
		canonical = entry.Name
		if c.Coords == nil {
			c.Coords = entry.Coords()
		}
		if c.Country == "" {
			c.Country = entry.Country
		}
	}

	if e.semantic != nil && (c.PlaceID == "" || c.Coords == nil) {
		idx := e.semantic.Index()
		rec, ok := idx.Lookup(c.Name)
		if !ok {
			rec, ok = idx.Lookup(canonical)
		}
		if ok {
			if c.PlaceID == "" {
				c.PlaceID = rec.PlaceID
			}
			if c.Coords == nil {
				c.Coords = &model.Coordinates{Lat: rec.Lat, Lon: rec.Lon}
			}
		}
	}

	if c.Coords == nil && e.geocoder != nil {
		res, err := e.geocoder.Geocode(ctx, c.Name)
		if err != nil {
			log.Debug("geocode failed", logging.String("name", c.Name), logging.Error(err))
		} else if coords := res.Coords(); coords != nil {
			c.Coords = coords
		}
	}

	if c.PlaceID == "" {
		c.PlaceID = slug(canonical)
	}
}

// withCountries fills in Country for sub-national candidates the gazetteer
// can resolve, so a city can cover its country
func (e *Engine) withCountries(cands []model.Candidate) []model.Candidate {
	for i := range cands {
		c := &cands[i]
		if c.Country != "" || c.Kind == model.KindCountry {
			continue
		}
		if entry, ok := e.geo.Lookup(c.Name); ok && entry.Kind != model.KindCountry {
			c.Country = entry.Country
		}
	}
	return cands
}

// partition splits concrete candidates from sentinels
func partition(cands []model.Candidate) (concrete, sentinels []model.Candidate) {
	for _, c := range cands {
		if c.IsSentinel() {
			sentinels = append(sentinels, c)
		} else {
			concrete = append(concrete, c)
		}
	}
	return concrete, sentinels
}

// attribute points combined-text evidence at the field that contains it
func attribute(cands []model.Candidate, composed semantic.Composed) {
	fields := []model.Field{model.FieldTitle, model.FieldDescription, model.FieldChoices}
	for i := range cands {
		for j := range cands[i].Evidence {
			ev := &cands[i].Evidence[j]
			if ev.Field != model.FieldCombined {
				continue
			}
			ev.Field = model.FieldTitle
			needle := util.Fold(ev.Snippet)
			for _, f := range fields {
				if needle != "" && strings.Contains(util.Fold(composed.Text(f)), needle) {
					ev.Field = f
					break
				}
			}
			if ev.RetrievalHit == "" {
				ev.RetrievalHit = ev.Snippet
			}
			ev.Snippet = util.Snippet(composed.Text(ev.Field), evidenceSnippetChars)
			ev.Score = model.Round2(ev.Score)
		}
	}
}

func decideGeoType(final []model.Candidate, eventType model.EventType, text string) model.GeoType {
	if len(final) == 0 {
		return model.GeoTypeNone
	}
	if final[0].IsNotAvailable() {
		return model.GeoTypeNone
	}
	if final[0].IsSentinel() {
		return model.GeoTypeGlobal
	}

	confs := make([]float64, len(final))
	for i, c := range final {
		confs[i] = c.Confidence
	}
	geo := semantic.DecideGeoType(confs, eventType)
	return semantic.PostProcess(geo, confs, titleScore(final[0]), text)
}

// titleScore is the strongest title-field signal behind c, from retrieval or
// from any generator's title evidence
func titleScore(c model.Candidate) float64 {
	best := c.TitleScore
	for _, ev := range c.Evidence {
		if ev.Field == model.FieldTitle && ev.Score > best {
			best = ev.Score
		}
	}
	return best
}

func toLocations(final []model.Candidate) []model.Location {
	out := make([]model.Location, 0, len(final))
	for _, c := range final {
		loc := model.Location{
			PlaceID:     c.PlaceID,
			Name:        c.Name,
			Granularity: c.Kind.Granularity(),
			Confidence:  model.Round2(model.Clamp01(c.Confidence)),
			Reason:      c.Reason,
			Method:      c.Method,
			Evidence:    c.Evidence,
		}
		if c.Coords != nil {
			lat, lon := c.Coords.Lat, c.Coords.Lon
			loc.Lat, loc.Lon = &lat, &lon
		}
		if loc.Evidence == nil {
			loc.Evidence = []model.EvidenceItem{}
		}
		out = append(out, loc)
	}
	return out
}

// flatten joins the prompt fields into the text the rule stages scan
func flatten(c semantic.Composed) string {
	parts := []string{c.Title}
	if c.Description != "" {
		parts = append(parts, c.Description)
	}
	if c.Choices != "" {
		parts = append(parts, c.Choices)
	}
	return strings.Join(parts, " ")
}

func slug(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range util.Fold(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
