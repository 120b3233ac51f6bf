package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mycheff/engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLanguage string

func (s staticLanguage) Language() string { return string(s) }

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(ClientConfig{BaseURL: server.URL + "/api/v1"}, staticLanguage("tr"), nil), server
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "https://api.example.com/"}, nil, nil)

	assert.NotNil(t, client)
	assert.Equal(t, "https://api.example.com", client.baseURL)
	assert.Equal(t, DefaultTimeout, client.timeout)
	assert.Equal(t, defaultUserAgent, client.userAgent)
	assert.NotNil(t, client.rateLimiter)
	assert.NotNil(t, client.logger)
}

func TestExecute_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/recipes/r1", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		assert.Equal(t, "tr", r.Header.Get("Accept-Language"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"id": "r1", "cookingTimeMinutes": 20},
		})
	})

	resp, err := client.Execute(context.Background(), Request{Path: "/recipes/r1", AccessToken: "access-1"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)

	recipe, err := DecodeData[domain.Recipe](resp)
	require.NoError(t, err)
	assert.Equal(t, "r1", recipe.ID)
	assert.Equal(t, 20, recipe.CookingTimeMinutes)
}

func TestExecute_OmitsAuthorizationWithoutToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": nil})
	})

	_, err := client.Execute(context.Background(), Request{Path: "/languages"})
	require.NoError(t, err)
}

func TestExecute_SendsJSONBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"email":"a@b.c","password":"secret"}`, string(body))
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": map[string]any{"token": "t"}})
	})

	resp, err := client.Execute(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   domain.Credentials{Email: "a@b.c", Password: "secret"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
}

func TestExecute_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		errors []string
		want   domain.ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, nil, domain.KindAuthentication},
		{"forbidden", http.StatusForbidden, nil, domain.KindPermission},
		{"not found", http.StatusNotFound, nil, domain.KindNotFound},
		{"conflict", http.StatusConflict, nil, domain.KindConflict},
		{"internal error", http.StatusInternalServerError, nil, domain.KindServer},
		{"bad gateway", http.StatusBadGateway, nil, domain.KindServer},
		{"bad request", http.StatusBadRequest, nil, domain.KindUnknown},
		{"bad request with field errors", http.StatusBadRequest, []string{"email is required"}, domain.KindValidation},
		{"unprocessable with field errors", http.StatusUnprocessableEntity, []string{"email is required"}, domain.KindValidation},
		{"unprocessable without field errors", http.StatusUnprocessableEntity, nil, domain.KindUnknown},
		{"too many requests", http.StatusTooManyRequests, nil, domain.KindUnknown},
		{"server error with field errors", http.StatusInternalServerError, []string{"x"}, domain.KindServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				body := map[string]any{"success": false, "message": "boom"}
				if tt.errors != nil {
					body["errors"] = tt.errors
				}
				writeJSON(w, tt.status, body)
			})

			_, err := client.Execute(context.Background(), Request{Path: "/x"})
			require.Error(t, err)

			var apiErr *domain.Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.want, apiErr.Kind)
			assert.Equal(t, tt.status, apiErr.HTTPStatus)
			assert.Equal(t, "boom", apiErr.Message)
			assert.NotEmpty(t, apiErr.Payload)
		})
	}
}

func TestExecute_ErrorWithoutEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("<html>down</html>"))
	})

	_, err := client.Execute(context.Background(), Request{Path: "/x"})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindServer))
	assert.Equal(t, http.StatusServiceUnavailable, domain.StatusOf(err))
	assert.Contains(t, err.Error(), "Server error occurred")
}

func TestExecute_FailureEnvelopeOnSuccessStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "Invalid input",
			"errors":  []string{"email is required"},
		})
	})

	_, err := client.Execute(context.Background(), Request{Path: "/x"})
	var apiErr *domain.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, domain.KindValidation, apiErr.Kind)
	assert.Equal(t, []string{"email is required"}, apiErr.Errors)
}

func TestExecute_RejectsNonEnvelopePayload(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []string{"bare", "array"})
	})

	_, err := client.Execute(context.Background(), Request{Path: "/x"})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	assert.ErrorIs(t, err, domain.ErrMalformedEnvelope)
}

func TestExecute_NoContent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	resp, err := client.Execute(context.Background(), Request{Method: http.MethodDelete, Path: "/x"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.Status)
	assert.Nil(t, resp.Data)
}

func TestExecute_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := NewClient(ClientConfig{BaseURL: baseURL}, nil, nil)
	_, err := client.Execute(context.Background(), Request{Path: "/x"})

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNetwork))
	assert.Zero(t, domain.StatusOf(err))
}

func TestExecute_Timeout(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	start := time.Now()
	_, err := client.Execute(context.Background(), Request{Path: "/slow", Timeout: 50 * time.Millisecond})

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNetwork))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestExecute_CancelledContextAbortsRequest(t *testing.T) {
	started := make(chan struct{})
	aborted := make(chan struct{})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
		close(aborted)
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.Execute(ctx, Request{Path: "/slow"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	select {
	case <-aborted:
	case <-time.After(time.Second):
		t.Fatal("server did not observe the cancellation")
	}
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, domain.KindAuthentication, KindForStatus(401))
	assert.Equal(t, domain.KindPermission, KindForStatus(403))
	assert.Equal(t, domain.KindNotFound, KindForStatus(404))
	assert.Equal(t, domain.KindServer, KindForStatus(500))
	assert.Equal(t, domain.KindServer, KindForStatus(599))
	assert.Equal(t, domain.KindUnknown, KindForStatus(418))
}
