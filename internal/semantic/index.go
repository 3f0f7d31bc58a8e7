package semantic

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/geoinfer/internal/model"
	"github.com/ppiankov/geoinfer/internal/util"
)

//go:embed data/seed_records.jsonl
var defaultSeed []byte

// ErrSeedMissing is returned when the configured seed dataset does not exist
var ErrSeedMissing = errors.New("semantic seed dataset not found")

const (
	recordsFile  = "records.jsonl"
	vectorsFile  = "vectors.bin"
	manifestFile = "manifest.json"
)

// Index is the read-only place index: one embedding row per record
type Index struct {
	embedder *Embedder
	records  []model.IndexRecord
	vectors  []Vector
	byName   map[string]int
	capitals map[string]int
}

type manifest struct {
	Dim     int       `json:"dim"`
	Count   int       `json:"count"`
	SeedSHA string    `json:"seed_sha256"`
	BuiltAt time.Time `json:"built_at"`
}

// Seed holds seed dataset bytes and where they came from
type Seed struct {
	Data    []byte
	Path    string // Empty for the built-in dataset
	ModTime time.Time
}

// DefaultSeed returns the built-in seed dataset
func DefaultSeed() Seed {
	return Seed{Data: defaultSeed}
}

// ReadSeed loads a seed file. An empty path selects the built-in dataset.
func ReadSeed(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed(), nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Seed{}, fmt.Errorf("%w: %s", ErrSeedMissing, path)
	}
	if err != nil {
		return Seed{}, fmt.Errorf("stat seed: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed: %w", err)
	}
	return Seed{Data: data, Path: path, ModTime: info.ModTime()}, nil
}

func (s Seed) sha() string {
	sum := sha256.Sum256(s.Data)
	return hex.EncodeToString(sum[:])
}

// LoadOrBuild returns the index for seed, reading cached artifacts from dir
// when they are current and rebuilding them otherwise. An empty dir builds
// in memory without persisting.
func LoadOrBuild(seed Seed, dir string, embedder *Embedder) (*Index, error) {
	if dir != "" {
		if idx, ok := loadArtifacts(seed, dir, embedder); ok {
			return idx, nil
		}
	}

	records, err := readRecords(bytes.NewReader(seed.Data))
	if err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	idx := newIndex(embedder, records, nil)
	if dir != "" {
		if err := idx.write(dir, seed.sha()); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Build embeds seed and writes the artifacts to dir unconditionally
func Build(seed Seed, dir string, embedder *Embedder) (*Index, error) {
	records, err := readRecords(bytes.NewReader(seed.Data))
	if err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	idx := newIndex(embedder, records, nil)
	if err := idx.write(dir, seed.sha()); err != nil {
		return nil, err
	}
	return idx, nil
}

// NewIndex embeds records in memory
func NewIndex(embedder *Embedder, records []model.IndexRecord) *Index {
	return newIndex(embedder, records, nil)
}

func newIndex(embedder *Embedder, records []model.IndexRecord, vectors []Vector) *Index {
	if vectors == nil {
		texts := make([]string, len(records))
		for i, r := range records {
			texts[i] = r.SearchableText
		}
		vectors = embedder.EmbedAll(texts)
	}

	idx := &Index{
		embedder: embedder,
		records:  records,
		vectors:  vectors,
		byName:   make(map[string]int, len(records)),
		capitals: make(map[string]int),
	}
	for i, r := range records {
		name := strings.ToLower(r.PlaceName)
		if _, seen := idx.byName[name]; !seen {
			idx.byName[name] = i
		}
		if r.IsCapital && r.Country != "" {
			idx.capitals[strings.ToLower(r.Country)] = i
		}
	}
	return idx
}

func loadArtifacts(seed Seed, dir string, embedder *Embedder) (*Index, bool) {
	recPath := filepath.Join(dir, recordsFile)
	vecPath := filepath.Join(dir, vectorsFile)

	recInfo, err := os.Stat(recPath)
	if err != nil {
		return nil, false
	}
	vecInfo, err := os.Stat(vecPath)
	if err != nil {
		return nil, false
	}
	if !seed.ModTime.IsZero() && (seed.ModTime.After(recInfo.ModTime()) || seed.ModTime.After(vecInfo.ModTime())) {
		return nil, false
	}

	var m manifest
	raw, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil || json.Unmarshal(raw, &m) != nil {
		return nil, false
	}
	if m.Dim != embedder.Dim() || m.SeedSHA != seed.sha() {
		return nil, false
	}

	f, err := os.Open(recPath)
	if err != nil {
		return nil, false
	}
	defer f.Close()
	records, err := readRecords(f)
	if err != nil || len(records) != m.Count {
		return nil, false
	}

	data, err := os.ReadFile(vecPath)
	if err != nil {
		return nil, false
	}
	vectors, ok := decodeVectors(data, len(records), embedder.Dim())
	if !ok {
		return nil, false
	}
	return newIndex(embedder, records, vectors), true
}

func (idx *Index) write(dir, seedSHA string) error {
	var recs bytes.Buffer
	enc := json.NewEncoder(&recs)
	for _, r := range idx.records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode record %s: %w", r.DocID, err)
		}
	}

	m, err := json.MarshalIndent(manifest{
		Dim:     idx.embedder.Dim(),
		Count:   len(idx.records),
		SeedSHA: seedSHA,
		BuiltAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	if err := util.WriteFileAtomic(filepath.Join(dir, recordsFile), recs.Bytes()); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	if err := util.WriteFileAtomic(filepath.Join(dir, vectorsFile), encodeVectors(idx.vectors)); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	if err := util.WriteFileAtomic(filepath.Join(dir, manifestFile), m); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func readRecords(r io.Reader) ([]model.IndexRecord, error) {
	var out []model.IndexRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec model.IndexRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.PlaceID == "" || rec.SearchableText == "" {
			return nil, fmt.Errorf("line %d: place_id and searchable_text are required", line)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// encodeVectors flattens rows into little-endian float32s
func encodeVectors(vectors []Vector) []byte {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	buf := make([]byte, len(vectors)*dim*4)
	for i, v := range vectors {
		for j, f := range v {
			binary.LittleEndian.PutUint32(buf[(i*dim+j)*4:], math.Float32bits(f))
		}
	}
	return buf
}

func decodeVectors(data []byte, rows, dim int) ([]Vector, bool) {
	if len(data) != rows*dim*4 {
		return nil, false
	}
	out := make([]Vector, rows)
	for i := range out {
		v := make(Vector, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[(i*dim+j)*4:]))
		}
		out[i] = v
	}
	return out, true
}

// Len returns the number of indexed records
func (idx *Index) Len() int { return len(idx.records) }

// Records returns the indexed records. The slice must not be modified.
func (idx *Index) Records() []model.IndexRecord { return idx.records }

// Embedder returns the embedder the index was built with
func (idx *Index) Embedder() *Embedder { return idx.embedder }

// Hit is one scored index row
type Hit struct {
	Record *model.IndexRecord
	Score  float64
}

// Search returns up to topN records by cosine to q, best first, dropping
// scores below floor. Negative similarity counts as zero.
func (idx *Index) Search(q Vector, topN int, floor float64) []Hit {
	hits := make([]Hit, 0, len(idx.records))
	for i := range idx.records {
		s := math.Max(0, Cosine(idx.vectors[i], q))
		hits = append(hits, Hit{Record: &idx.records[i], Score: s})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if len(hits) > topN {
		hits = hits[:topN]
	}

	out := hits[:0]
	for _, h := range hits {
		if h.Score >= floor {
			out = append(out, h)
		}
	}
	return out
}

// Lookup finds a record by place name, case-insensitively
func (idx *Index) Lookup(name string) (*model.IndexRecord, bool) {
	i, ok := idx.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return &idx.records[i], true
}

// CapitalOf returns the capital record for country
func (idx *Index) CapitalOf(country string) (*model.IndexRecord, bool) {
	i, ok := idx.capitals[strings.ToLower(strings.TrimSpace(country))]
	if !ok {
		return nil, false
	}
	return &idx.records[i], true
}
