package logging

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraylogHandler_SendsGELF(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	h, w, err := NewGraylogHandler(pc.LocalAddr().String(), "info")
	require.NoError(t, err)
	defer w.Close()

	slog.New(h).Info("hello graylog", "car", 7)

	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 8192)
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)

	zr, err := gzip.NewReader(bytes.NewReader(buf[:n]))
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Contains(t, msg["short_message"], "hello graylog")
	assert.Equal(t, ServiceName, msg["facility"])
}

func TestSetup_ExtraHandlers(t *testing.T) {
	var file, extra bytes.Buffer
	m := NewSlogManager()
	m.Setup(&file, "info", nil, slog.NewJSONHandler(&extra, nil))
	m.Logger().Info("to both")

	assert.Contains(t, file.String(), "to both")
	assert.Contains(t, extra.String(), `"msg":"to both"`)
}

func TestSetup_ContextProvider(t *testing.T) {
	var buf bytes.Buffer
	tick := 0
	m := NewSlogManager()
	m.SetContextProvider(func() []slog.Attr {
		return []slog.Attr{slog.Int("tick", tick)}
	})
	m.Setup(&buf, "info", nil)

	tick = 42
	m.Logger().Info("ticked")
	assert.Contains(t, buf.String(), "tick=42")
}
