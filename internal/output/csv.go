/*
PURPOSE:
  Writes benchmark samples to a CSV file.
  Ensures data integrity by flushing writes immediately.

REQUIREMENTS:
  User-specified:
  - Output to CSV.
  - Keep file handle open for flushing.

  Implementation-discovered:
  - Phases vary per benchmark, so they are flattened into one
    "label=duration" column instead of dynamic headers.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Consumes: internal/model.Sample

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() after every write (critical for crash resilience).

USAGE:
  w, err := output.NewCSVWriter("samples.csv")
  w.Write("initial-render", sample)
  w.Close()
*/

package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/daryltucker/render-runner/internal/model"
)

// CSVWriter handles writing samples to a CSV file.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates a new CSVWriter.
// It overwrites the file if it exists.
func NewCSVWriter(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)

	header := []string{
		"benchmark", "iteration", "duration_us", "js_us", "gc_us", "phases",
	}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()

	return &CSVWriter{
		file:   f,
		writer: w,
	}, nil
}

// Write writes a single sample to the CSV file.
// It is thread-safe.
func (cw *CSVWriter) Write(benchmark string, s model.Sample) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	gc := ""
	if s.GC != nil {
		gc = fmt.Sprintf("%d", s.GC.Total)
	}

	phases := make([]string, 0, len(s.Phases))
	for _, p := range s.Phases {
		phases = append(phases, fmt.Sprintf("%s=%d", p.Phase, p.Duration))
	}

	record := []string{
		benchmark,
		fmt.Sprintf("%d", s.Iteration),
		fmt.Sprintf("%d", s.Duration),
		fmt.Sprintf("%d", s.JS),
		gc,
		strings.Join(phases, ";"),
	}

	if err := cw.writer.Write(record); err != nil {
		return err
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// Close closes the underlying file.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	return cw.file.Close()
}
