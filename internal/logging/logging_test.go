package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, "debug", "json")
	t.Cleanup(func() { Init(nil, "info", "text") })

	For("store").WithField("date", "2026-02-10").Debug("wrote document")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "store", line["component"])
	assert.Equal(t, "2026-02-10", line["date"])
	assert.Equal(t, "wrote document", line["msg"])
}

func TestInitFallsBackToInfo(t *testing.T) {
	l := Init(&bytes.Buffer{}, "loud", "yaml")
	t.Cleanup(func() { Init(nil, "info", "text") })

	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	_, ok := l.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
}
