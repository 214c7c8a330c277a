package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRenamesCoreKeys(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, " vaultd ").Info("wrapped", MaskField("token", "secret"), slog.String("reason", "ok"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "wrapped", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "vaultd", line["service"])
	require.Equal(t, RedactedValue, line["token"])
	require.Equal(t, "ok", line["reason"])
	require.Contains(t, line, "timestamp")
}

func TestRotatingWriterDefaults(t *testing.T) {
	w := rotatingWriter(Options{File: filepath.Join(t.TempDir(), "vaultd.log")})
	require.Equal(t, 100, w.MaxSize)
	require.Equal(t, 5, w.MaxBackups)
	require.Equal(t, 28, w.MaxAge)
	_, err := w.Write([]byte("line\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestMaskFieldPassesPlainKeys(t *testing.T) {
	require.Equal(t, "0xabc", MaskField("vault", "0xabc").Value.String())
	require.Equal(t, RedactedValue, MaskField("api_key", "k-123").Value.String())
	require.Equal(t, "", MaskField("api_key", "").Value.String())
}
