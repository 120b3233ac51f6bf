package usecase

import (
	"bytes"
	"encoding/json"

	"github.com/mycheff/engine/internal/domain"
)

// rawPagination mirrors the backend pagination object. Pointers tell a
// missing field apart from a zero.
type rawPagination struct {
	Page       *int `json:"page"`
	Limit      *int `json:"limit"`
	Total      *int `json:"total"`
	TotalPages *int `json:"totalPages"`
}

// NormalizePagination converts the backend pagination object into a
// cursor. It fails with VALIDATION when page, limit or total is missing or
// out of range. A missing totalPages is derived from total and limit.
func NormalizePagination(raw json.RawMessage) (domain.PaginationCursor, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return domain.PaginationCursor{}, invalidPagination("missing pagination")
	}

	var p rawPagination
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return domain.PaginationCursor{}, domain.NewError(domain.KindValidation, "malformed pagination", err)
	}

	switch {
	case p.Page == nil:
		return domain.PaginationCursor{}, invalidPagination("pagination.page is missing")
	case p.Limit == nil:
		return domain.PaginationCursor{}, invalidPagination("pagination.limit is missing")
	case p.Total == nil:
		return domain.PaginationCursor{}, invalidPagination("pagination.total is missing")
	case *p.Page < 1:
		return domain.PaginationCursor{}, invalidPagination("pagination.page must be at least 1")
	case *p.Limit < 1:
		return domain.PaginationCursor{}, invalidPagination("pagination.limit must be at least 1")
	case *p.Total < 0:
		return domain.PaginationCursor{}, invalidPagination("pagination.total must not be negative")
	}

	c := domain.PaginationCursor{
		Page:       *p.Page,
		Limit:      *p.Limit,
		Total:      *p.Total,
		TotalPages: -1,
	}
	if p.TotalPages != nil {
		c.TotalPages = *p.TotalPages
	}
	return Normalize(c), nil
}

// Normalize recomputes the derived fields of c. Applying it twice gives the
// same cursor. A negative TotalPages is derived as ceil(Total/Limit).
func Normalize(c domain.PaginationCursor) domain.PaginationCursor {
	if c.TotalPages < 0 {
		c.TotalPages = 0
		if c.Limit > 0 {
			c.TotalPages = (c.Total + c.Limit - 1) / c.Limit
		}
	}
	c.HasNext = c.Page < c.TotalPages
	c.HasPrev = c.Page > 1
	return c
}

func invalidPagination(msg string) error {
	return &domain.Error{Kind: domain.KindValidation, Message: msg, Cause: domain.ErrMalformedEnvelope}
}
