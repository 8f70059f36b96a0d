package pagegrid_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pagegrid"
)

func TestLogger_LoadRangeCount(t *testing.T) {
	var buf bytes.Buffer
	l := pagegrid.NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).
		WithManager("rows")

	l.LogLoadRange(t.Context(), "[0,40)", 4, nil)
	l.LogLoadRange(t.Context(), "[40,80)", 2, errors.New("boom"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var ok, failed map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &ok))
	require.NoError(t, json.Unmarshal(lines[1], &failed))

	assert.Equal(t, "range load completed", ok["msg"])
	assert.Equal(t, "rows", ok["manager"])
	assert.EqualValues(t, 4, ok["count"])
	assert.Equal(t, "[0,40)", ok["range"])

	assert.Equal(t, "range load failed", failed["msg"])
	assert.EqualValues(t, 2, failed["count"])
	assert.Equal(t, "boom", failed["error"])
}
