// Package catalog derives filtered, sorted views of the effect collection.
package catalog

import (
	"sort"
	"strings"

	"prismfx/internal/models"
)

type SortKey string

const (
	SortPopular SortKey = "popular"
	SortNewest  SortKey = "newest"
	SortName    SortKey = "name"
)

// Wildcard matches every category or difficulty. The empty string is
// treated the same way.
const Wildcard = "All"

// Options narrows the effect collection. Query is a case-insensitive
// substring match over name, description and tags; Category and Difficulty
// are exact matches unless set to the wildcard.
type Options struct {
	Query      string
	Category   string
	Difficulty string
	Sort       SortKey
}

// Filter returns the effects matching every predicate in opts, sorted by
// opts.Sort. The input slice is not modified.
func Filter(effects []models.Effect, opts Options) []models.Effect {
	query := strings.ToLower(strings.TrimSpace(opts.Query))

	out := make([]models.Effect, 0, len(effects))
	for _, effect := range effects {
		if !matchesQuery(effect, query) {
			continue
		}
		if !matchesExact(effect.Category, opts.Category) {
			continue
		}
		if !matchesExact(string(effect.Difficulty), opts.Difficulty) {
			continue
		}
		out = append(out, effect)
	}

	sortEffects(out, opts.Sort)
	return out
}

func matchesQuery(effect models.Effect, query string) bool {
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(effect.Name), query) {
		return true
	}
	if strings.Contains(strings.ToLower(effect.Description), query) {
		return true
	}
	for _, tag := range effect.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

func matchesExact(value, want string) bool {
	if want == "" || want == Wildcard {
		return true
	}
	return strings.EqualFold(value, want)
}

func sortEffects(effects []models.Effect, key SortKey) {
	switch key {
	case SortName:
		sort.SliceStable(effects, func(i, j int) bool {
			return effects[i].Name < effects[j].Name
		})
	case SortNewest:
		sort.SliceStable(effects, func(i, j int) bool {
			return effects[i].CreatedAt.After(effects[j].CreatedAt)
		})
	case SortPopular:
		fallthrough
	default:
		sort.SliceStable(effects, func(i, j int) bool {
			return effects[i].LikesCount > effects[j].LikesCount
		})
	}
}

// Categories returns the distinct categories present in the collection,
// sorted, with the wildcard first.
func Categories(effects []models.Effect) []string {
	seen := make(map[string]struct{}, len(effects))
	for _, effect := range effects {
		if effect.Category != "" {
			seen[effect.Category] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen)+1)
	for category := range seen {
		out = append(out, category)
	}
	sort.Strings(out)
	return append([]string{Wildcard}, out...)
}
