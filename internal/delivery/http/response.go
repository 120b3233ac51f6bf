package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mycheff/engine/internal/domain"
)

// success mirrors the backend envelope so app shells can share one decoder
type success struct {
	Success    bool                     `json:"success"`
	Data       any                      `json:"data"`
	Message    string                   `json:"message,omitempty"`
	Pagination *domain.PaginationCursor `json:"pagination,omitempty"`
}

type failure struct {
	Success bool     `json:"success"`
	Kind    string   `json:"kind,omitempty"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, success{Success: true, Data: data})
}

func respondPage[T any](c *gin.Context, page domain.Page[T]) {
	cursor := page.Cursor
	c.JSON(http.StatusOK, success{Success: true, Data: page.Items, Pagination: &cursor})
}

// respondInfinite flattens the loaded pages and reports the last cursor
func respondInfinite[T any](c *gin.Context, data domain.InfiniteData[T]) {
	items := data.Items()
	if items == nil {
		items = []T{}
	}
	resp := success{Success: true, Data: items}
	if cursor, ok := data.LastCursor(); ok {
		resp.Pagination = &cursor
	}
	c.JSON(http.StatusOK, resp)
}

// respondError writes err as a failure envelope with the status of its kind
func respondError(c *gin.Context, err error) {
	e := domain.AsError(err)
	_ = c.Error(err)
	message := e.Message
	if message == "" {
		message = e.Error()
	}
	c.AbortWithStatusJSON(statusForKind(e.Kind), failure{
		Success: false,
		Kind:    string(e.Kind),
		Message: message,
		Errors:  e.Errors,
	})
}

func badRequest(c *gin.Context, message string) {
	respondError(c, domain.NewError(domain.KindValidation, message, nil))
}

// routeNotFound answers unknown routes with a failure envelope
func routeNotFound(c *gin.Context) {
	respondError(c, domain.NewError(domain.KindNotFound, "route not found: "+c.Request.Method+" "+c.Request.URL.Path, nil))
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuthentication:
		return http.StatusUnauthorized
	case domain.KindPermission:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindNetwork:
		return http.StatusServiceUnavailable
	case domain.KindServer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// isNoMorePages reports the informative end-of-list condition of LoadMore
func isNoMorePages(err error) bool {
	return errors.Is(err, domain.ErrNoMorePages)
}
