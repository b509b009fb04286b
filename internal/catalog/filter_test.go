package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prismfx/internal/models"
)

func testEffects() []models.Effect {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []models.Effect{
		{
			ID:          "fx_vintage",
			Name:        "Vintage Glow",
			Description: "Warm film grain and faded tones",
			Tags:        []string{"retro", "film"},
			Category:    "Portrait",
			Difficulty:  models.DifficultyBeginner,
			LikesCount:  340,
			CreatedAt:   base,
		},
		{
			ID:          "fx_arcade",
			Name:        "Arcade",
			Description: "Pixelated neon look",
			Tags:        []string{"pixel", "neon"},
			Category:    "Stylized",
			Difficulty:  models.DifficultyIntermediate,
			LikesCount:  980,
			CreatedAt:   base.Add(48 * time.Hour),
		},
		{
			ID:          "fx_noir",
			Name:        "Noir",
			Description: "High contrast black and white",
			Tags:        []string{"film", "mono"},
			Category:    "Portrait",
			Difficulty:  models.DifficultyAdvanced,
			LikesCount:  120,
			CreatedAt:   base.Add(24 * time.Hour),
		},
	}
}

func TestFilterQueryMatchesAcrossFields(t *testing.T) {
	effects := testEffects()

	byName := Filter(effects, Options{Query: "vintage"})
	require.Len(t, byName, 1)
	assert.Equal(t, "Vintage Glow", byName[0].Name)

	byDescription := Filter(effects, Options{Query: "NEON"})
	require.Len(t, byDescription, 1)
	assert.Equal(t, "Arcade", byDescription[0].Name)

	byTag := Filter(effects, Options{Query: "film"})
	assert.Len(t, byTag, 2)
}

func TestFilterWildcardScenario(t *testing.T) {
	// query="Vintage", category=All, difficulty=All: the search predicate
	// still excludes non-matching effects even though the wildcards pass.
	effects := []models.Effect{
		{Name: "Vintage Glow"},
		{Name: "Arcade"},
	}

	got := Filter(effects, Options{
		Query:      "Vintage",
		Category:   Wildcard,
		Difficulty: Wildcard,
		Sort:       SortName,
	})

	require.Len(t, got, 1)
	assert.Equal(t, "Vintage Glow", got[0].Name)
}

func TestFilterIsIntersectionOfPredicates(t *testing.T) {
	effects := testEffects()

	got := Filter(effects, Options{
		Query:      "film",
		Category:   "Portrait",
		Difficulty: string(models.DifficultyAdvanced),
	})

	require.Len(t, got, 1)
	assert.Equal(t, "Noir", got[0].Name)

	// Each predicate alone admits more.
	assert.Len(t, Filter(effects, Options{Query: "film"}), 2)
	assert.Len(t, Filter(effects, Options{Category: "Portrait"}), 2)
	assert.Len(t, Filter(effects, Options{Difficulty: string(models.DifficultyAdvanced)}), 1)
}

func TestFilterCategoryExactMatch(t *testing.T) {
	effects := testEffects()

	got := Filter(effects, Options{Category: "Stylized"})
	require.Len(t, got, 1)
	assert.Equal(t, "Arcade", got[0].Name)

	assert.Len(t, Filter(effects, Options{Category: Wildcard}), 3)
	assert.Len(t, Filter(effects, Options{Category: ""}), 3)
	assert.Empty(t, Filter(effects, Options{Category: "Landscape"}))
}

func TestSortByNameNonDecreasing(t *testing.T) {
	got := Filter(testEffects(), Options{Sort: SortName})
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Name, got[i].Name)
	}
}

func TestSortByPopularNonIncreasing(t *testing.T) {
	got := Filter(testEffects(), Options{Sort: SortPopular})
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].LikesCount, got[i].LikesCount)
	}
}

func TestSortByNewestFirst(t *testing.T) {
	got := Filter(testEffects(), Options{Sort: SortNewest})
	require.Len(t, got, 3)
	assert.Equal(t, "Arcade", got[0].Name)
	assert.Equal(t, "Vintage Glow", got[2].Name)
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	effects := testEffects()
	first := effects[0].ID

	Filter(effects, Options{Sort: SortName})

	assert.Equal(t, first, effects[0].ID)
}

func TestCategoriesDistinctWithWildcardFirst(t *testing.T) {
	got := Categories(testEffects())
	assert.Equal(t, []string{Wildcard, "Portrait", "Stylized"}, got)
}
