package usecase

import (
	"sort"
	"strings"

	"github.com/mycheff/engine/internal/domain"
	"golang.org/x/text/cases"
)

// MatchFilter narrows ranked results. Zero values disable a filter.
type MatchFilter struct {
	// MinMatchPercent drops recipes below this fraction (0..1)
	MinMatchPercent float64
	// MaxMissing drops recipes missing more required ingredients than this
	MaxMissing int
}

// requiredIngredient is a recipe ingredient reduced to its identity and folded name
type requiredIngredient struct {
	id   string
	name string
}

// MatchRecipes ranks recipes by the fraction of their required ingredients
// found in userIngredients. Names are compared case-insensitively after
// Unicode case folding. Recipes without required ingredients or without any
// match are left out. Results are ordered by match percentage (highest
// first), then by fewest missing ingredients, then by recipe ID.
func MatchRecipes(recipes []domain.Recipe, userIngredients []string) []domain.MatchResult {
	return MatchRecipesWithFilter(recipes, userIngredients, MatchFilter{})
}

// MatchRecipesWithFilter is MatchRecipes followed by filter
func MatchRecipesWithFilter(recipes []domain.Recipe, userIngredients []string, filter MatchFilter) []domain.MatchResult {
	fold := cases.Fold()

	have := make(map[string]bool, len(userIngredients))
	for _, name := range userIngredients {
		if n := foldName(fold, name); n != "" {
			have[n] = true
		}
	}

	results := make([]domain.MatchResult, 0, len(recipes))
	for _, recipe := range recipes {
		required := requiredIngredients(fold, recipe)
		if len(required) == 0 {
			continue
		}

		matching := make([]string, 0, len(required))
		missing := make([]string, 0, len(required))
		for _, ing := range required {
			if have[ing.name] {
				matching = append(matching, ing.id)
			} else {
				missing = append(missing, ing.id)
			}
		}
		if len(matching) == 0 {
			continue
		}

		pct := float64(len(matching)) / float64(len(required))
		if pct < filter.MinMatchPercent {
			continue
		}
		if filter.MaxMissing > 0 && len(missing) > filter.MaxMissing {
			continue
		}

		results = append(results, domain.MatchResult{
			RecipeID:              recipe.ID,
			MatchingIngredientIDs: matching,
			MissingIngredientIDs:  missing,
			MatchPercentage:       pct,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.MatchPercentage != b.MatchPercentage {
			return a.MatchPercentage > b.MatchPercentage
		}
		if len(a.MissingIngredientIDs) != len(b.MissingIngredientIDs) {
			return len(a.MissingIngredientIDs) < len(b.MissingIngredientIDs)
		}
		return a.RecipeID < b.RecipeID
	})

	return results
}

// requiredIngredients returns the distinct required ingredients of r.
// An ingredient without an ID is identified by its folded name.
func requiredIngredients(fold cases.Caser, r domain.Recipe) []requiredIngredient {
	seen := make(map[string]bool)
	var out []requiredIngredient
	for _, ri := range r.Ingredients {
		if !ri.IsRequired {
			continue
		}
		name := ri.Name
		id := ri.IngredientID
		if ri.Ingredient != nil {
			if name == "" {
				name = ri.Ingredient.Name
			}
			if id == "" {
				id = ri.Ingredient.ID
			}
		}
		folded := foldName(fold, name)
		if folded == "" {
			continue
		}
		if id == "" {
			id = folded
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, requiredIngredient{id: id, name: folded})
	}
	return out
}

// foldName collapses whitespace and case-folds s
func foldName(fold cases.Caser, s string) string {
	return fold.String(strings.Join(strings.Fields(s), " "))
}
