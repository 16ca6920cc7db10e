package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/stemsi/classqa/internal/model"
)

// envelope mirrors the server's response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// apiError is a failed REST call.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// apiClient talks to the REST side of the server.
type apiClient struct {
	base   string
	ticket string
	http   *http.Client
}

func newAPIClient(base, ticket string) *apiClient {
	return &apiClient{base: strings.TrimRight(base, "/"), ticket: ticket, http: http.DefaultClient}
}

func (a *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.ticket != "" {
		req.Header.Set("Authorization", "Bearer "+a.ticket)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &apiError{Status: resp.StatusCode, Message: "unreadable response"}
	}
	if env.Error != nil || resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (a *apiClient) createParticipant(ctx context.Context, req model.CreateParticipantRequest) (model.ParticipantResponse, error) {
	var out model.ParticipantResponse
	err := a.do(ctx, http.MethodPost, "/api/v1/participants", req, &out)
	return out, err
}

func (a *apiClient) questions(ctx context.Context, sessionID string) ([]model.Question, error) {
	var out []model.Question
	err := a.do(ctx, http.MethodGet, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/questions", nil, &out)
	return out, err
}

func (a *apiClient) answers(ctx context.Context, sessionID string) ([]model.Answer, error) {
	var out []model.Answer
	err := a.do(ctx, http.MethodGet, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/answers", nil, &out)
	return out, err
}

// socketURL turns the server base URL into the classroom socket URL.
func socketURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	u.Path += "/ws/v1/classroom"
	return u.String(), nil
}
