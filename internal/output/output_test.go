package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/render-runner/internal/model"
)

var sample = model.Sample{
	Iteration: 2,
	Duration:  1100,
	JS:        300,
	GC:        &model.GCSample{Minor: 40, Total: 40},
	Phases: []model.PhaseSample{
		{Phase: "fetch", Duration: 500},
		{Phase: "render", Start: 500, Duration: 600},
	},
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.csv")
	w, err := NewCSVWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write("initial-render", sample))
	require.NoError(t, w.Write("initial-render", model.Sample{Iteration: 3, Duration: 900}))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, "duration_us", records[0][2])
	assert.Equal(t, []string{"initial-render", "2", "1100", "300", "40", "fetch=500;render=600"}, records[1])
	assert.Equal(t, []string{"initial-render", "3", "900", "0", "", ""}, records[2])
}

func TestJSONWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.jsonl")
	w, err := NewJSONWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write("initial-render", sample))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var row map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &row))
	assert.Equal(t, "initial-render", row["benchmark"])
	assert.Equal(t, 1100.0, row["duration"])
	assert.Equal(t, 2.0, row["iteration"])
}

func TestWriteResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "initial-render.json")
	res := model.NewResults(model.Meta{RunID: "abc", Iterations: 1}, "initial-render")
	res.Append(sample)

	require.NoError(t, WriteResults(path, res))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got model.Results
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "initial-render", got.Set)
	assert.Equal(t, "abc", got.Meta.RunID)
	require.Len(t, got.Samples, 1)
	assert.Equal(t, sample.Phases, got.Samples[0].Phases)
}

func TestConfigure(t *testing.T) {
	defer SetLogger(Logger)

	var buf bytes.Buffer
	require.NoError(t, Configure(&buf, "json", false))
	Logger.Debug("hidden")
	Logger.Info("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"k":"v"`)

	assert.Error(t, Configure(&buf, "xml", false))
}
