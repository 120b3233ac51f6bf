package backend

import (
	"github.com/mycheff/engine/internal/domain"
	"golang.org/x/text/language"
)

// LocalizeRecipe fills the computed text fields of r from the translation
// that best matches lang. Fields already set by the backend are kept.
func LocalizeRecipe(r *domain.Recipe, lang string) {
	if len(r.Translations) > 0 {
		codes := make([]string, len(r.Translations))
		for i, t := range r.Translations {
			codes[i] = t.LanguageCode
		}
		t := r.Translations[bestMatch(codes, lang)]
		if r.Title == "" {
			r.Title = t.Title
		}
		if r.Description == "" {
			r.Description = t.Description
		}
	}

	for i := range r.Ingredients {
		ri := &r.Ingredients[i]
		if ri.Ingredient != nil {
			LocalizeIngredient(ri.Ingredient, lang)
			if ri.Name == "" {
				ri.Name = ri.Ingredient.Name
			}
		}
		if ri.IngredientID == "" && ri.Ingredient != nil {
			ri.IngredientID = ri.Ingredient.ID
		}
	}
}

// LocalizeRecipes applies LocalizeRecipe to every element
func LocalizeRecipes(recipes []domain.Recipe, lang string) {
	for i := range recipes {
		LocalizeRecipe(&recipes[i], lang)
	}
}

// LocalizeIngredient fills Name and Aliases of ing from its best matching translation
func LocalizeIngredient(ing *domain.Ingredient, lang string) {
	if len(ing.Translations) == 0 {
		return
	}
	codes := make([]string, len(ing.Translations))
	for i, t := range ing.Translations {
		codes[i] = t.LanguageCode
	}
	t := ing.Translations[bestMatch(codes, lang)]
	if ing.Name == "" {
		ing.Name = t.Name
	}
	if len(ing.Aliases) == 0 {
		ing.Aliases = t.Aliases
	}
}

// LocalizeIngredients applies LocalizeIngredient to every element
func LocalizeIngredients(ingredients []domain.Ingredient, lang string) {
	for i := range ingredients {
		LocalizeIngredient(&ingredients[i], lang)
	}
}

// bestMatch returns the index of the language code closest to lang,
// falling back to the first entry
func bestMatch(codes []string, lang string) int {
	if len(codes) <= 1 || lang == "" {
		return 0
	}
	tags := make([]language.Tag, len(codes))
	for i, c := range codes {
		tags[i] = language.Make(c)
	}
	_, idx, conf := language.NewMatcher(tags).Match(language.Make(lang))
	if conf == language.No {
		return 0
	}
	return idx
}
