package domain

import "time"

// Recipe is a recipe as returned by the backend. Title, Description and
// Image are computed fields filled from the translation matching the
// preferred language.
type Recipe struct {
	ID                 string              `json:"id"`
	IsPremium          bool                `json:"isPremium"`
	IsFeatured         bool                `json:"isFeatured"`
	CookingTimeMinutes int                 `json:"cookingTimeMinutes"`
	AuthorID           string              `json:"authorId,omitempty"`
	DifficultyLevel    int                 `json:"difficultyLevel"`
	Translations       []RecipeTranslation `json:"translations,omitempty"`
	Categories         []Category          `json:"categories,omitempty"`
	Ingredients        []RecipeIngredient  `json:"ingredients,omitempty"`
	Title              string              `json:"title,omitempty"`
	Description        string              `json:"description,omitempty"`
	Image              string              `json:"image,omitempty"`
	AverageRating      float64             `json:"averageRating,omitempty"`
	FavoriteCount      int                 `json:"favoriteCount,omitempty"`
	IsFavorite         bool                `json:"isFavorite,omitempty"`
	CreatedAt          time.Time           `json:"createdAt,omitempty"`
	UpdatedAt          time.Time           `json:"updatedAt,omitempty"`
}

// RecipeTranslation holds the language-specific text of a recipe
type RecipeTranslation struct {
	LanguageCode string `json:"languageCode"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
}

// RecipeIngredient links a recipe to an ingredient
type RecipeIngredient struct {
	ID           string      `json:"id,omitempty"`
	RecipeID     string      `json:"recipeId,omitempty"`
	IngredientID string      `json:"ingredientId"`
	Name         string      `json:"name"`
	Quantity     float64     `json:"quantity,omitempty"`
	Unit         string      `json:"unit,omitempty"`
	IsRequired   bool        `json:"isRequired"`
	Ingredient   *Ingredient `json:"ingredient,omitempty"`
}

// Ingredient is a catalogue ingredient
type Ingredient struct {
	ID           string                  `json:"id"`
	DefaultUnit  string                  `json:"defaultUnit,omitempty"`
	Translations []IngredientTranslation `json:"translations,omitempty"`
	Name         string                  `json:"name,omitempty"`
	Aliases      []string                `json:"aliases,omitempty"`
}

// IngredientTranslation holds the language-specific name of an ingredient
type IngredientTranslation struct {
	LanguageCode string   `json:"languageCode"`
	Name         string   `json:"name"`
	Aliases      []string `json:"aliases,omitempty"`
}

// UserIngredient is an ingredient in the user's pantry
type UserIngredient struct {
	ID           string      `json:"id,omitempty"`
	IngredientID string      `json:"ingredientId"`
	Quantity     float64     `json:"quantity"`
	Unit         string      `json:"unit"`
	Name         string      `json:"name,omitempty"`
	Ingredient   *Ingredient `json:"ingredient,omitempty"`
}

// Category groups recipes
type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Icon     string `json:"icon,omitempty"`
	IsActive bool   `json:"isActive"`
}

// RecipeRating is a user's rating of a recipe
type RecipeRating struct {
	ID       string `json:"id,omitempty"`
	RecipeID string `json:"recipeId"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment,omitempty"`
}

// MatchResult is the derived relevance of a recipe against a set of user ingredients
type MatchResult struct {
	RecipeID              string   `json:"recipeId"`
	MatchingIngredientIDs []string `json:"matchingIngredientIds"`
	MissingIngredientIDs  []string `json:"missingIngredientIds"`
	MatchPercentage       float64  `json:"matchPercentage"`
}

// ServerMatch is a recipe ranked by the backend's ingredient matching endpoint
type ServerMatch struct {
	Recipe
	MatchPercentage          float64  `json:"matchPercentage"`
	MissingIngredients       []string `json:"missingIngredients"`
	MatchingIngredients      []string `json:"matchingIngredients"`
	TotalIngredients         int      `json:"totalIngredients"`
	MatchingIngredientsCount int      `json:"matchingIngredientsCount"`
}

// IngredientMatchParams are the filters accepted by the backend matching endpoint
type IngredientMatchParams struct {
	LanguageCode          string  `json:"languageCode,omitempty"`
	MinMatchPercent       float64 `json:"minMatchPercent,omitempty"`
	MaxMissingIngredients int     `json:"maxMissingIngredients,omitempty"`
	IncludePremium        bool    `json:"includePremium,omitempty"`
	Page                  int     `json:"page"`
	Limit                 int     `json:"limit"`
}

// RecipeFilters narrows recipe list queries
type RecipeFilters struct {
	CategoryIDs  []string `json:"categoryIds,omitempty"`
	MaxCookTime  int      `json:"maxCookingTime,omitempty"`
	Difficulty   int      `json:"difficultyLevel,omitempty"`
	PremiumOnly  bool     `json:"isPremium,omitempty"`
	FeaturedOnly bool     `json:"isFeatured,omitempty"`
	SortBy       string   `json:"sortBy,omitempty"`
}
