package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jmgilman/pngopt/internal/optipng"
)

func sampleResult() *optipng.Result {
	return &optipng.Result{
		Succeeded: map[string]float64{"b.png": 0.0, "a.png": -45.6},
		Errors: []optipng.FileError{
			{Path: "c.png", Message: "invalid format"},
			{Message: "disk full", Unattributed: true},
			{Path: "", Message: "Can't open file"},
		},
	}
}

func TestWrite_Text(t *testing.T) {
	t.Run("table and errors", func(t *testing.T) {
		var buf bytes.Buffer

		err := Write(&buf, sampleResult(), Options{Format: FormatText})

		require.NoError(t, err)
		want := "FILE   STATUS           CHANGE\n" +
			"a.png  optimized        -45.60%\n" +
			"b.png  already optimal  0.00%\n" +
			"\n" +
			"3 error(s):\n" +
			"  c.png: invalid format\n" +
			"  (unknown file): disk full\n" +
			"  \"\": Can't open file\n"
		assert.Equal(t, want, buf.String())
	})

	t.Run("size column", func(t *testing.T) {
		var buf bytes.Buffer
		sizes := map[string]int64{"a.png": 2048}
		size := func(path string) (int64, error) {
			n, ok := sizes[path]
			if !ok {
				return 0, errors.New("missing")
			}
			return n, nil
		}

		err := Write(&buf, &optipng.Result{
			Succeeded: map[string]float64{"a.png": -10, "gone.png": -5},
		}, Options{Format: FormatText, Size: size})

		require.NoError(t, err)
		assert.Contains(t, buf.String(), "SIZE")
		assert.Contains(t, buf.String(), "2.0 KiB")
		assert.Regexp(t, `gone\.png\s+optimized\s+-5\.00%\s+-`, buf.String())
	})

	t.Run("empty result", func(t *testing.T) {
		var buf bytes.Buffer

		err := Write(&buf, optipng.Parse(""), Options{})

		require.NoError(t, err)
		assert.Equal(t, "No files processed.\n", buf.String())
	})
}

func TestWrite_YAML(t *testing.T) {
	var buf bytes.Buffer

	err := Write(&buf, sampleResult(), Options{Format: FormatYAML})
	require.NoError(t, err)

	var decoded struct {
		Succeeded map[string]float64 `yaml:"succeeded"`
		Errors    []map[string]any   `yaml:"errors"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, -45.6, decoded.Succeeded["a.png"])
	assert.Equal(t, 0.0, decoded.Succeeded["b.png"])
	require.Len(t, decoded.Errors, 3)
	assert.Equal(t, "c.png", decoded.Errors[0]["path"])
	assert.NotContains(t, decoded.Errors[0], "unattributed")
	assert.Equal(t, true, decoded.Errors[1]["unattributed"])
	assert.Equal(t, "", decoded.Errors[2]["path"])
	assert.NotContains(t, decoded.Errors[2], "unattributed")
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer

	err := Write(&buf, sampleResult(), Options{Format: FormatJSON})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, map[string]any{"a.png": -45.6, "b.png": 0.0}, decoded["succeeded"])
	assert.Len(t, decoded["errors"], 3)
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, sampleResult(), Options{Format: "xml"})

	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFormatChange(t *testing.T) {
	assert.Equal(t, "-45.60%", FormatChange(-45.6))
	assert.Equal(t, "0.00%", FormatChange(0))
	assert.Equal(t, "+1.00%", FormatChange(1))
}

func TestFileSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o644))

	n, err := FileSize(path)
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)

	_, err = FileSize(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
