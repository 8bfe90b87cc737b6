package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONCarriesTag(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "info", "json")
	require.NoError(t, err)
	log.Info("extract.start", "files", 3)
	log.Debug("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "groq", rec["tag"])
	assert.Equal(t, "extract.start", rec["msg"])
	assert.Equal(t, float64(3), rec["files"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "warn", "")
	require.NoError(t, err)
	log.Info("quiet")
	log.Warn("cache.lookup.miss")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "tag=groq")
	assert.Contains(t, buf.String(), "msg=cache.lookup.miss")
}

func TestNew_BadInput(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", "text")
	assert.Error(t, err)
	_, err = New(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}
