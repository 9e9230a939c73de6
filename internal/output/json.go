/*
PURPOSE:
  Writes benchmark samples to a JSON Lines file (NDJSON) and whole results
  records to a JSON document.

REQUIREMENTS:
  User-specified:
  - JSON output for easier parsing.

  Implementation-discovered:
  - JSON Lines is better for streaming/logging than a single large array (append-friendly).
  - The results record (meta + set + samples) is a single indented document per benchmark.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Consumes: internal/model.Sample, internal/model.Results

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/json.NewEncoder.
  - Thread-safe.

USAGE:
  w, err := output.NewJSONWriter("samples.jsonl")
  w.Write("initial-render", sample)
  w.Close()
*/

package output

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/daryltucker/render-runner/internal/model"
)

// Row is one sample tagged with the benchmark that produced it.
type Row struct {
	Benchmark string `json:"benchmark"`
	model.Sample
}

// JSONWriter handles writing samples to a JSON Lines file.
type JSONWriter struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter creates a new JSONWriter.
func NewJSONWriter(path string) (*JSONWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	return &JSONWriter{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// Write writes a single sample as a JSON line.
func (jw *JSONWriter) Write(benchmark string, s model.Sample) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	return jw.encoder.Encode(Row{Benchmark: benchmark, Sample: s})
}

// Close closes the underlying file.
func (jw *JSONWriter) Close() error {
	return jw.file.Close()
}

// WriteResults writes a results record as an indented JSON document.
func WriteResults(path string, r *model.Results) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
