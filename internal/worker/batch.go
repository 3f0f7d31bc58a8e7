package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/ppiankov/geoinfer/internal/logging"
	"github.com/ppiankov/geoinfer/internal/model"
)

const maxLineBytes = 1 << 20

// Inferrer runs inference on one prompt
type Inferrer interface {
	Infer(ctx context.Context, in model.Input) (*model.Result, error)
}

// InferJob is one prompt to run
type InferJob struct {
	Input    model.Input
	Inferrer Inferrer
}

// Execute runs the inference
func (j *InferJob) Execute(ctx context.Context) Result {
	result, err := j.Inferrer.Infer(ctx, j.Input)
	return &InferResult{
		Input:  j.Input,
		Result: result,
		Error:  err,
	}
}

// InferResult is the outcome of one prompt
type InferResult struct {
	Input  model.Input
	Result *model.Result
	Error  error
}

// GetError returns the error from the inference
func (r *InferResult) GetError() error {
	return r.Error
}

// BatchProcessor runs many prompts concurrently
type BatchProcessor struct {
	inferrer    Inferrer
	concurrency int
	log         logging.Logger
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(inferrer Inferrer, concurrency int, log logging.Logger) *BatchProcessor {
	return &BatchProcessor{
		inferrer:    inferrer,
		concurrency: concurrency,
		log:         logging.OrNop(log),
	}
}

// ProcessInputs runs every input and returns results in input order.
// Inputs not started before ctx is cancelled are omitted.
func (b *BatchProcessor) ProcessInputs(ctx context.Context, inputs []model.Input) []*InferResult {
	if len(inputs) == 0 {
		return []*InferResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, in := range inputs {
		if !pool.Submit(&InferJob{Input: in, Inferrer: b.inferrer}) {
			b.log.Warn("batch cancelled", logging.Int("submitted", len(inputs)))
			break
		}
	}

	results := pool.Wait()

	out := make([]*InferResult, len(results))
	failed := 0
	for i, result := range results {
		out[i] = result.(*InferResult)
		if out[i].Error != nil {
			failed++
		}
	}
	b.log.Info("batch finished",
		logging.Int("inputs", len(inputs)),
		logging.Int("completed", len(out)),
		logging.Int("failed", failed))

	return out
}

// ProcessFile reads prompts from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*InferResult, error) {
	inputs, err := ReadInputsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}

	return b.ProcessInputs(ctx, inputs), nil
}

// ReadInputsFromFile reads prompts from a file, see ReadInputs
func ReadInputsFromFile(filePath string) ([]model.Input, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadInputs(file)
}

// ReadInputs reads one prompt per line. A line starting with "{" is a JSON
// object with title, description, choices and an optional id; any other line
// is a bare title. Blank lines and # comments are skipped, repeated lines are
// read once, and inputs without an id get a random one.
func ReadInputs(r io.Reader) ([]model.Input, error) {
	var inputs []model.Input
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true

		var in model.Input
		if strings.HasPrefix(line, "{") {
			if err := json.Unmarshal([]byte(line), &in); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		} else {
			in.Title = line
		}

		if in.ID == "" {
			in.ID = uuid.NewString()
		}
		inputs = append(inputs, in)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return inputs, nil
}
