package models

import "time"

type EffectDifficulty string

const (
	DifficultyBeginner     EffectDifficulty = "beginner"
	DifficultyIntermediate EffectDifficulty = "intermediate"
	DifficultyAdvanced     EffectDifficulty = "advanced"
)

// Effect is a named AI image-transformation template browsable in the gallery.
type Effect struct {
	ID          string
	Name        string
	Description string
	Tags        []string
	Category    string
	Difficulty  EffectDifficulty
	PromptTmpl  string
	PreviewURL  *string
	LikesCount  int
	IsTrending  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
