package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSystemHandler(t *testing.T) {
	h := NewSystemHandler("mfi-backend", "test")
	assert.Equal(t, "mfi-backend", h.serviceName)
	assert.False(t, h.startedAt.IsZero())

	t.Run("empty name falls back to default", func(t *testing.T) {
		h := NewSystemHandler("", "test")
		assert.Equal(t, "mfi-backend", h.serviceName)
	})
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler("mfi-backend", "staging")

	c, w := newHandlerContext(t)
	h.GetSystemInfo(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "mfi-backend", data["name"])
	assert.Equal(t, "staging", data["environment"])
	assert.Equal(t, Version, data["version"])
	assert.NotEmpty(t, data["go_version"])
	assert.NotEmpty(t, data["uptime"])

	startedAt, err := time.Parse(time.RFC3339, data["started_at"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), startedAt, time.Minute)
}

func TestSystemHandler_Ping(t *testing.T) {
	h := NewSystemHandler("mfi-backend", "test")

	c, w := newHandlerContext(t)
	h.Ping(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "pong", data["message"])

	_, err := time.Parse(time.RFC3339, data["timestamp"].(string))
	assert.NoError(t, err)
}
