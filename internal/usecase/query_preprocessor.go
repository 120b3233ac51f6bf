package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mycheff/engine/internal/domain"
)

const (
	DefaultMinQueryLength = 2
	DefaultMaxQueryLength = 100

	maxRawQueryLength = 1000
)

// Compiled patterns stripped from search input
var (
	angleBracketPattern = regexp.MustCompile(`[<>]`)
	scriptSchemePattern = regexp.MustCompile(`(?i)javascript:`)
	eventHandlerPattern = regexp.MustCompile(`(?i)on\w+=`)
	multiSpacePattern   = regexp.MustCompile(`\s+`)
)

// QueryPreprocessor cleans and validates free-text search input
type QueryPreprocessor struct {
	minLength int
	maxLength int
}

// NewQueryPreprocessor creates a preprocessor. Zero lengths use the defaults.
func NewQueryPreprocessor(minLength, maxLength int) *QueryPreprocessor {
	if minLength <= 0 {
		minLength = DefaultMinQueryLength
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxQueryLength
	}
	return &QueryPreprocessor{minLength: minLength, maxLength: maxLength}
}

// MinLength is the shortest query that reaches the backend
func (p *QueryPreprocessor) MinLength() int {
	return p.minLength
}

// Sanitize strips markup and script fragments and trims whitespace
func (p *QueryPreprocessor) Sanitize(query string) string {
	if query == "" {
		return ""
	}
	if len(query) > maxRawQueryLength {
		query = truncateRunes(query, maxRawQueryLength)
	}

	cleaned := angleBracketPattern.ReplaceAllString(query, "")
	cleaned = scriptSchemePattern.ReplaceAllString(cleaned, "")
	cleaned = eventHandlerPattern.ReplaceAllString(cleaned, "")
	cleaned = multiSpacePattern.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// Validate sanitizes query and checks its length. Short or overlong
// queries fail with VALIDATION wrapping ErrInvalidQuery.
func (p *QueryPreprocessor) Validate(query string) (string, error) {
	cleaned := p.Sanitize(query)
	n := utf8.RuneCountInString(cleaned)
	if n < p.minLength || n > p.maxLength {
		return cleaned, &domain.Error{
			Kind:    domain.KindValidation,
			Message: fmt.Sprintf("search query must be %d to %d characters", p.minLength, p.maxLength),
			Cause:   domain.ErrInvalidQuery,
		}
	}
	return cleaned, nil
}

// TooShort reports whether the sanitized query is below the minimum length
func (p *QueryPreprocessor) TooShort(query string) bool {
	return utf8.RuneCountInString(p.Sanitize(query)) < p.minLength
}

// CacheKey normalizes a query for use in a QueryKey so equivalent input
// shares one cache entry
func (p *QueryPreprocessor) CacheKey(query string) string {
	return strings.ToLower(p.Sanitize(query))
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
