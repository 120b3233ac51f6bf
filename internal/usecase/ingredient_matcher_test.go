package usecase

import (
	"testing"

	"github.com/mycheff/engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchRecipes_Percentage(t *testing.T) {
	recipes := []domain.Recipe{recipe("r1", "Tomato", "Onion", "Garlic")}

	results := MatchRecipes(recipes, []string{"tomato", "ONION"})

	require.Len(t, results, 1)
	got := results[0]
	assert.Equal(t, "r1", got.RecipeID)
	assert.InDelta(t, 2.0/3.0, got.MatchPercentage, 1e-9)
	assert.Equal(t, []string{"r1-i0", "r1-i1"}, got.MatchingIngredientIDs)
	assert.Equal(t, []string{"r1-i2"}, got.MissingIngredientIDs)
}

func TestMatchRecipes_Ranking(t *testing.T) {
	recipes := []domain.Recipe{
		recipe("half", "egg", "butter"),
		recipe("full", "egg"),
		recipe("third", "egg", "flour", "sugar"),
		recipe("half-more-missing", "egg", "milk", "flour", "sugar"),
		recipe("none", "rice"),
	}
	user := []string{"egg", "milk"}

	results := MatchRecipes(recipes, user)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.RecipeID
	}
	assert.Equal(t, []string{"full", "half", "half-more-missing", "third"}, ids)
	assert.Equal(t, 1.0, results[0].MatchPercentage)
	assert.Equal(t, 0.5, results[1].MatchPercentage)
	assert.Equal(t, 0.5, results[2].MatchPercentage)
	assert.Len(t, results[1].MissingIngredientIDs, 1)
	assert.Len(t, results[2].MissingIngredientIDs, 2)
}

func TestMatchRecipes_EdgeCases(t *testing.T) {
	t.Run("no user ingredients", func(t *testing.T) {
		assert.Empty(t, MatchRecipes([]domain.Recipe{recipe("r1", "egg")}, nil))
	})

	t.Run("recipe without required ingredients is skipped", func(t *testing.T) {
		r := recipe("r1")
		r.Ingredients = []domain.RecipeIngredient{{IngredientID: "salt", Name: "salt"}}
		assert.Empty(t, MatchRecipes([]domain.Recipe{r}, []string{"salt"}))
	})

	t.Run("optional ingredients do not count", func(t *testing.T) {
		r := recipe("r1", "egg", "milk")
		r.Ingredients = append(r.Ingredients, domain.RecipeIngredient{IngredientID: "salt", Name: "salt"})
		results := MatchRecipes([]domain.Recipe{r}, []string{"egg", "salt"})
		require.Len(t, results, 1)
		assert.Equal(t, 0.5, results[0].MatchPercentage)
	})

	t.Run("unicode case folding and whitespace", func(t *testing.T) {
		results := MatchRecipes([]domain.Recipe{recipe("r1", "Straße", "Yeşil  Biber")}, []string{"STRASSE", " yeşil biber "})
		require.Len(t, results, 1)
		assert.Equal(t, 1.0, results[0].MatchPercentage)
	})

	t.Run("duplicate required ingredients count once", func(t *testing.T) {
		r := recipe("r1", "egg", "milk")
		r.Ingredients = append(r.Ingredients, r.Ingredients[0])
		results := MatchRecipes([]domain.Recipe{r}, []string{"egg"})
		require.Len(t, results, 1)
		assert.Equal(t, 0.5, results[0].MatchPercentage)
	})

	t.Run("name taken from nested ingredient", func(t *testing.T) {
		r := domain.Recipe{ID: "r1", Ingredients: []domain.RecipeIngredient{{
			IsRequired: true,
			Ingredient: &domain.Ingredient{ID: "i1", Name: "Garlic"},
		}}}
		results := MatchRecipes([]domain.Recipe{r}, []string{"garlic"})
		require.Len(t, results, 1)
		assert.Equal(t, []string{"i1"}, results[0].MatchingIngredientIDs)
	})
}

func TestMatchRecipesWithFilter(t *testing.T) {
	recipes := []domain.Recipe{
		recipe("full", "egg"),
		recipe("half", "egg", "milk"),
		recipe("quarter", "egg", "milk", "flour", "sugar"),
	}
	user := []string{"egg"}

	tests := []struct {
		name   string
		filter MatchFilter
		want   []string
	}{
		{"no filter", MatchFilter{}, []string{"full", "half", "quarter"}},
		{"min percent", MatchFilter{MinMatchPercent: 0.5}, []string{"full", "half"}},
		{"max missing", MatchFilter{MaxMissing: 1}, []string{"full", "half"}},
		{"both", MatchFilter{MinMatchPercent: 0.6, MaxMissing: 3}, []string{"full"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := MatchRecipesWithFilter(recipes, user, tt.filter)
			ids := make([]string, len(results))
			for i, r := range results {
				ids[i] = r.RecipeID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestMatchRecipes_RanksBetweenNeighbours(t *testing.T) {
	recipes := []domain.Recipe{
		recipe("half", "tomato", "pepper"),
		recipe("soup", "tomato", "garlic", "onion"),
		recipe("full", "onion"),
	}

	results := MatchRecipes(recipes, []string{"tomato", "onion", "basil"})

	require.Len(t, results, 3)
	assert.Equal(t, "full", results[0].RecipeID)
	assert.Equal(t, "soup", results[1].RecipeID)
	assert.Equal(t, "half", results[2].RecipeID)
	assert.InDelta(t, 0.667, results[1].MatchPercentage, 0.001)
	assert.Equal(t, []string{"soup-i0", "soup-i2"}, results[1].MatchingIngredientIDs)
	assert.Equal(t, []string{"soup-i1"}, results[1].MissingIngredientIDs)
}
