package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/vip_task_server/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(config.LogConfig{Level: "info", Format: "json"}, &buf)

	l.Debug("hidden")
	l.Info("购买完成", "access_id", 7)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "购买完成", line["msg"])
	assert.Equal(t, float64(7), line["access_id"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	l := New(config.LogConfig{Level: "debug"}, &buf)

	l.Warn("释放锁失败", "error", errors.New("boom"))
	out := buf.String()
	assert.Contains(t, out, "释放锁失败")
	assert.Contains(t, out, "boom")
	assert.NotContains(t, out, "\x1b[")
}
