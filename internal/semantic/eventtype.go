package semantic

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/geoinfer/internal/model"
)

//go:embed data/event_types.yaml
var defaultPrototypes []byte

const eventTypeThreshold = 0.22

// ClassifierDim is the embedding width of the default classifier. It is
// wider than the index embedder so short prototypes rarely share buckets.
const ClassifierDim = 4096

// Question scaffolding and generic verbs carry no topic and are dropped
// before embedding.
var fillerWords = toSet(`a an the will would be is are was were been being who what which when where
why how whom by in on at of to for from with into over under about as this that these those it its
and or but if than then do does did has have had can could should may might yes no not any some
there their his her they them he she we you i next end title description choices hit reach see get
new make take`)

// Prototype is one labelled reference text
type Prototype struct {
	Label model.EventType `yaml:"label"`
	Text  string          `yaml:"text"`
}

// Prototypes is the classifier's reference data
type Prototypes struct {
	Governance string      `yaml:"governance"`
	Items      []Prototype `yaml:"prototypes"`
}

// LoadPrototypes decodes a YAML prototype table
func LoadPrototypes(r io.Reader) (*Prototypes, error) {
	var p Prototypes
	if err := yaml.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode prototypes: %w", err)
	}
	return &p, nil
}

// DefaultPrototypes returns the embedded prototypes
func DefaultPrototypes() *Prototypes {
	var p Prototypes
	if err := yaml.Unmarshal(defaultPrototypes, &p); err != nil {
		panic(fmt.Sprintf("embedded event type prototypes are invalid: %v", err))
	}
	return &p
}

// Classifier predicts an event type from the nearest prototype
type Classifier struct {
	embedder   *Embedder
	items      []Prototype
	vectors    []Vector
	governance Vector
}

// NewClassifier embeds the prototypes once
func NewClassifier(e *Embedder, p *Prototypes) *Classifier {
	c := &Classifier{embedder: e, items: p.Items}
	for _, item := range p.Items {
		c.vectors = append(c.vectors, c.embed(item.Text))
	}
	if p.Governance != "" {
		c.governance = c.embed(p.Governance)
	}
	return c
}

// NewDefaultClassifier returns a classifier over the embedded prototypes
func NewDefaultClassifier() *Classifier {
	return NewClassifier(NewEmbedder(ClassifierDim), DefaultPrototypes())
}

func (c *Classifier) embed(text string) Vector {
	return c.embedder.Embed(contentWords(text))
}

// contentWords normalizes text the way Tokenize does and drops filler words
// and bare numbers
func contentWords(text string) string {
	folded := nonAlnumRe.ReplaceAllString(abbrevs.Replace(strings.ToLower(text)), " ")
	fields := strings.Fields(folded)
	kept := fields[:0]
	for _, f := range fields {
		if fillerWords[f] || strings.Trim(f, "0123456789") == "" {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

func toSet(words string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(words) {
		set[w] = true
	}
	return set
}

// Predict returns the nearest label, or unknown below the threshold
func (c *Classifier) Predict(text string) model.EventType {
	if len(c.vectors) == 0 {
		return model.EventTypeUnknown
	}
	q := c.embed(text)

	best, bestScore := -1, -1.0
	for i, v := range c.vectors {
		if s := Cosine(v, q); s > bestScore {
			best, bestScore = i, s
		}
	}
	if bestScore < eventTypeThreshold {
		return model.EventTypeUnknown
	}
	return c.items[best].Label
}

// Governance returns the cosine of text to the governance prototype
func (c *Classifier) Governance(text string) float64 {
	if c.governance == nil {
		return 0
	}
	return Cosine(c.governance, c.embed(text))
}
