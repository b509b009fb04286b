package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActionGuardsPerStatus(t *testing.T) {
	url := "https://cdn.example.com/renders/a.png"

	cases := []struct {
		status      GenerationStatus
		canCancel   bool
		canRetry    bool
		canDownload bool
	}{
		{GenerationStatusPending, true, false, false},
		{GenerationStatusProcessing, true, false, false},
		{GenerationStatusCompleted, false, false, true},
		{GenerationStatusFailed, false, true, false},
		{GenerationStatusCancelled, false, false, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			img := GeneratedImage{Status: tc.status, URL: &url}
			assert.Equal(t, tc.canCancel, img.CanCancel(), "cancel")
			assert.Equal(t, tc.canRetry, img.CanRetry(), "retry")
			assert.Equal(t, tc.canDownload, img.CanDownload(), "download")
		})
	}
}

func TestCompletedWithoutURLIsUnreachable(t *testing.T) {
	img := GeneratedImage{Status: GenerationStatusCompleted}
	assert.False(t, img.CanDownload())

	empty := ""
	img.URL = &empty
	assert.False(t, img.CanDownload())
}

func TestTerminalStatuses(t *testing.T) {
	assert.False(t, GenerationStatusPending.Terminal())
	assert.False(t, GenerationStatusProcessing.Terminal())
	assert.True(t, GenerationStatusCompleted.Terminal())
	assert.True(t, GenerationStatusFailed.Terminal())
	assert.True(t, GenerationStatusCancelled.Terminal())
}

func TestDownloadFilename(t *testing.T) {
	created := time.Date(2026, 8, 24, 15, 4, 5, 0, time.UTC)

	img := GeneratedImage{EffectName: "Vintage Glow", CreatedAt: created}
	assert.Equal(t, "vintage-glow-20260824-150405.png", img.DownloadFilename())

	img.EffectName = "  Néon Dream!! "
	assert.Equal(t, "non-dream-20260824-150405.png", img.DownloadFilename())

	img.EffectName = "!!!"
	assert.Equal(t, "generated-20260824-150405.png", img.DownloadFilename())
}
