package usecase

import (
	"github.com/mycheff/engine/internal/domain"
	"github.com/mycheff/engine/internal/infrastructure/cache"
)

// Query keys shared by the services and their invalidations
var (
	authKeys       = cache.Key("auth")
	recipeKeys     = cache.Key("recipes")
	favoriteKeys   = cache.Key("favorites")
	ingredientKeys = cache.Key("ingredients")
	userKeys       = cache.Key("user")
	categoryKeys   = cache.Key("categories")
	languageKeys   = cache.Key("languages")
)

func profileKey() cache.QueryKey { return authKeys.Append("profile") }

func recipeListsKey() cache.QueryKey { return recipeKeys.Append("list") }

func recipeListKey(filters domain.RecipeFilters) cache.QueryKey {
	return recipeListsKey().Append(map[string]any{"filters": filters})
}

func recipeDetailKey(id string) cache.QueryKey { return recipeKeys.Append("detail", id) }

func featuredKey() cache.QueryKey { return recipeKeys.Append("featured") }

func popularKey() cache.QueryKey { return recipeKeys.Append("popular") }

func recipeSearchKey(query string) cache.QueryKey { return recipeKeys.Append("search", query) }

func byIngredientsKey(params any) cache.QueryKey { return recipeKeys.Append("byIngredients", params) }

func matchPoolKey() cache.QueryKey { return recipeKeys.Append("matchPool") }

func favoriteListKey() cache.QueryKey { return favoriteKeys.Append("list") }

func favoriteCheckKey(recipeID string) cache.QueryKey {
	return favoriteKeys.Append("check", recipeID)
}

func ingredientSearchKey(query string) cache.QueryKey {
	return ingredientKeys.Append("search", query)
}

func allIngredientsKey() cache.QueryKey { return ingredientKeys.Append("all") }

func userIngredientsKey() cache.QueryKey { return userKeys.Append("ingredients") }

func categoryRecipesKey(id string) cache.QueryKey { return categoryKeys.Append(id, "recipes") }
