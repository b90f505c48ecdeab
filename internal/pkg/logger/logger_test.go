package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(DEBUG)
	SetRedactPII(true)
	t.Cleanup(func() {
		SetLevel(INFO)
	})
	return &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestMaskAddress(t *testing.T) {
	assert.Equal(t, "jo***@example.com", maskAddress("john.doe@example.com"))
	assert.Equal(t, "***@example.com", maskAddress("ab@example.com"))
	assert.Equal(t, "***@***", maskAddress("not-an-address"))
}

func TestInfo_RedactsAddresses(t *testing.T) {
	buf := capture(t)
	Info("reply stored", "from", "jane.roe@acme.io", "note", "cc bob.smith@acme.io please")

	entry := decode(t, buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "reply stored", entry["msg"])
	assert.Equal(t, "ja***@acme.io", entry["from"])
	assert.Equal(t, "cc bo***@acme.io please", entry["note"])
}

func TestInfo_KeepsMessageIDs(t *testing.T) {
	buf := capture(t)
	Info("linked", "message_id", "abc123@mail.acme.io")

	entry := decode(t, buf)
	assert.Equal(t, "abc123@mail.acme.io", entry["message_id"])
}

func TestError_RedactsErrorValues(t *testing.T) {
	buf := capture(t)
	Error("send failed", "error", errors.New("550 mailbox jane.roe@acme.io unavailable"))

	entry := decode(t, buf)
	assert.Equal(t, "550 mailbox ja***@acme.io unavailable", entry["error"])
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLevel(WARN)
	Info("hidden")
	assert.Zero(t, buf.Len())
	Warn("shown")
	assert.NotZero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("DEBUG"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel(""))
}
