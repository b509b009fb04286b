package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	values := map[string]interface{}{
		"type":     "generate",
		"taskId":   "task-1",
		"imageId":  "img-1",
		"effectId": "fx-1",
		"userId":   "user-1",
	}

	var payload TaskPayload
	require.NoError(t, DecodePayload(values, &payload))

	assert.Equal(t, TaskGenerate, payload.Type)
	assert.Equal(t, "task-1", payload.TaskID)
	assert.Equal(t, "img-1", payload.ImageID)
	assert.Equal(t, "fx-1", payload.EffectID)
	assert.Equal(t, "user-1", payload.UserID)
}

func TestDecodePayloadIgnoresUnknownFields(t *testing.T) {
	values := map[string]interface{}{
		"type":  "cleanup",
		"extra": "ignored",
	}

	var payload TaskPayload
	require.NoError(t, DecodePayload(values, &payload))
	assert.Equal(t, TaskCleanup, payload.Type)
	assert.Empty(t, payload.TaskID)
}
