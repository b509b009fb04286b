package models

import (
	"fmt"
	"strings"
	"time"
)

type GenerationStatus string

const (
	GenerationStatusPending    GenerationStatus = "pending"
	GenerationStatusProcessing GenerationStatus = "processing"
	GenerationStatusCompleted  GenerationStatus = "completed"
	GenerationStatusFailed     GenerationStatus = "failed"
	GenerationStatusCancelled  GenerationStatus = "cancelled"
)

// Terminal reports whether the status can no longer change without an
// explicit retry.
func (s GenerationStatus) Terminal() bool {
	switch s {
	case GenerationStatusCompleted, GenerationStatusFailed, GenerationStatusCancelled:
		return true
	case GenerationStatusPending, GenerationStatusProcessing:
		return false
	}
	return false
}

// GeneratedImage is one application of an effect, tracked through the
// worker-driven lifecycle pending -> processing -> completed/failed/cancelled.
// The worker is the status authority; the API only reads status and issues
// commands.
type GeneratedImage struct {
	ID           string
	UserID       string
	EffectID     string
	EffectName   string
	TaskID       string
	Bucket       string
	ObjectKey    string
	URL          *string
	Status       GenerationStatus
	Progress     int
	ErrorMessage *string
	Signature    []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanCancel reports whether a cancel command is valid for the current status.
func (g GeneratedImage) CanCancel() bool {
	switch g.Status {
	case GenerationStatusPending, GenerationStatusProcessing:
		return true
	case GenerationStatusCompleted, GenerationStatusFailed, GenerationStatusCancelled:
		return false
	}
	return false
}

// CanRetry reports whether a retry command is valid for the current status.
func (g GeneratedImage) CanRetry() bool {
	switch g.Status {
	case GenerationStatusFailed:
		return true
	case GenerationStatusPending, GenerationStatusProcessing,
		GenerationStatusCompleted, GenerationStatusCancelled:
		return false
	}
	return false
}

// CanDownload reports whether the rendered object may be served. A completed
// record with no URL is treated as unreachable.
func (g GeneratedImage) CanDownload() bool {
	if g.Status != GenerationStatusCompleted {
		return false
	}
	return g.URL != nil && *g.URL != ""
}

// DownloadFilename derives the client-side save name from the effect name
// and creation timestamp.
func (g GeneratedImage) DownloadFilename() string {
	name := strings.ToLower(strings.TrimSpace(g.EffectName))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		}
		return -1
	}, name)
	name = strings.Trim(name, "-")
	if name == "" {
		name = "generated"
	}
	return fmt.Sprintf("%s-%s.png", name, g.CreatedAt.UTC().Format("20060102-150405"))
}
