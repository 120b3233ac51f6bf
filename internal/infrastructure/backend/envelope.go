package backend

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mycheff/engine/internal/domain"
)

// Envelope is the response wrapper used by every backend endpoint:
//
//	{ success: true,  data: <T>, message?, timestamp?, pagination? }
//	{ success: false, message, errors? }
type Envelope struct {
	Success    bool
	Data       json.RawMessage
	Message    string
	Errors     []string
	Timestamp  string
	Pagination json.RawMessage
}

type rawEnvelope struct {
	Success    *bool           `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Errors     json.RawMessage `json:"errors"`
	Timestamp  string          `json:"timestamp"`
	Pagination json.RawMessage `json:"pagination"`
}

// ParseEnvelope decodes body as an envelope. Payloads that are not JSON
// objects or that lack the success flag are rejected.
func ParseEnvelope(body []byte) (*Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: expected JSON object", domain.ErrMalformedEnvelope)
	}

	var raw rawEnvelope
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedEnvelope, err)
	}
	if raw.Success == nil {
		return nil, fmt.Errorf("%w: missing success flag", domain.ErrMalformedEnvelope)
	}

	env := &Envelope{
		Success:    *raw.Success,
		Data:       raw.Data,
		Message:    raw.Message,
		Timestamp:  raw.Timestamp,
		Pagination: raw.Pagination,
	}
	env.Errors = decodeErrors(raw.Errors)

	if env.Success && len(env.Data) == 0 {
		env.Data = json.RawMessage("null")
	}
	return env, nil
}

// decodeErrors accepts either a list of strings or a list of {message} objects
func decodeErrors(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var objs []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &objs); err == nil {
		out := make([]string, 0, len(objs))
		for _, o := range objs {
			if o.Field != "" {
				out = append(out, o.Field+": "+o.Message)
			} else {
				out = append(out, o.Message)
			}
		}
		return out
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}

// DecodeData decodes the envelope payload into T
func DecodeData[T any](resp *Response) (T, error) {
	var out T
	if resp == nil || len(resp.Data) == 0 || string(resp.Data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return out, &domain.Error{
			Kind:       domain.KindValidation,
			Message:    fmt.Sprintf("unexpected response payload: %v", err),
			HTTPStatus: resp.Status,
			Payload:    resp.Data,
			Cause:      fmt.Errorf("%w: %v", domain.ErrMalformedEnvelope, err),
		}
	}
	return out, nil
}
