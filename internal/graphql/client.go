// Package graphql executes queries against a Hasura GraphQL endpoint.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const requestTimeout = 10 * time.Second

var (
	// ErrTimeout marks a request that hit the per-query deadline.
	ErrTimeout = errors.New("graphql: request timed out")
)

// QueryError carries the error messages Hasura returned inside an
// otherwise well-formed response envelope.
type QueryError struct {
	Messages []string
}

func (e *QueryError) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}

// Identity is the acting user forwarded to Hasura on every request so
// row-level permissions apply.
type Identity struct {
	UserID    string
	CompanyID string
}

// Client is a Hasura GraphQL client authenticated with an admin secret
// and a fixed role.
type Client struct {
	endpoint    string
	adminSecret string
	role        string
	httpClient  *http.Client
}

func New(endpoint, adminSecret, role string) *Client {
	return &Client{
		endpoint:    endpoint,
		adminSecret: adminSecret,
		role:        role,
		httpClient:  &http.Client{Timeout: requestTimeout},
	}
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   map[string]any `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Run executes a query or mutation and returns the data object. Errors
// reported by Hasura come back as a *QueryError.
func (c *Client) Run(ctx context.Context, id Identity, query string, variables map[string]any) (map[string]any, error) {
	body, err := json.Marshal(request{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-hasura-admin-secret", c.adminSecret)
	req.Header.Set("x-hasura-role", c.role)
	if id.UserID != "" {
		req.Header.Set("x-hasura-user-id", id.UserID)
	}
	if id.CompanyID != "" {
		req.Header.Set("X-Hasura-Company-Id", id.CompanyID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graphql: unexpected status %d: %s", resp.StatusCode, snippet(payload))
	}

	var envelope response
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		qe := &QueryError{}
		for _, e := range envelope.Errors {
			qe.Messages = append(qe.Messages, e.Message)
		}
		return nil, qe
	}
	return envelope.Data, nil
}

func snippet(b []byte) string {
	s := string(b)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
