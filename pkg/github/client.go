// Copyright 2024-2026 Aiku AI

// Package github implements the forum side of the bridge's collaborator
// contract against the GitHub Discussions GraphQL API.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultEndpoint = "https://api.github.com/graphql"

// Distinguishable failure classes. Everything else is transient and wrapped.
var (
	ErrNotFound   = errors.New("github: not found")
	ErrPermission = errors.New("github: permission denied")
)

// Client talks to the GitHub Discussions GraphQL API for one repository.
type Client struct {
	endpoint string
	token    string
	owner    string
	repo     string
	http     *http.Client
	log      zerolog.Logger

	// repoID is resolved once by Resolve and reused by CreateDiscussion.
	repoID string
}

// NewClient builds a client for owner/repo authenticated with token.
func NewClient(token, owner, repo string, log zerolog.Logger) *Client {
	return &Client{
		endpoint: defaultEndpoint,
		token:    token,
		owner:    owner,
		repo:     repo,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      log.With().Str("component", "github").Logger(),
	}
}

// SetEndpoint overrides the GraphQL endpoint (tests, GitHub Enterprise).
func (c *Client) SetEndpoint(url string) {
	c.endpoint = url
}

// graphQLError is a single error entry in a GraphQL response.
type graphQLError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// do posts a GraphQL query and decodes the "data" object into out.
func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) error {
	reqBody, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrPermission, resp.StatusCode)
	case http.StatusNotFound:
		return fmt.Errorf("%w: status %d", ErrNotFound, resp.StatusCode)
	default:
		return fmt.Errorf("graphql request failed: status %d: %s", resp.StatusCode, raw)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		first := envelope.Errors[0]
		switch first.Type {
		case "NOT_FOUND":
			return fmt.Errorf("%w: %s", ErrNotFound, first.Message)
		case "FORBIDDEN", "INSUFFICIENT_SCOPES":
			return fmt.Errorf("%w: %s", ErrPermission, first.Message)
		default:
			return fmt.Errorf("graphql error: %s: %s", first.Type, first.Message)
		}
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode data: %w", err)
		}
	}
	return nil
}

// Resolve looks up the repository and the named discussion category,
// returning the category ID. The bridge treats any failure here as fatal:
// a missing repository, discussions being disabled, or an absent category
// all mean nothing can be mirrored.
func (c *Client) Resolve(ctx context.Context, category string) (string, error) {
	const query = `
query($owner: String!, $repo: String!) {
  repository(owner: $owner, name: $repo) {
    id
    hasDiscussionsEnabled
    discussionCategories(first: 25) {
      nodes { id name }
    }
  }
}`
	var resp struct {
		Repository *struct {
			ID                    string `json:"id"`
			HasDiscussionsEnabled bool   `json:"hasDiscussionsEnabled"`
			DiscussionCategories  struct {
				Nodes []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"nodes"`
			} `json:"discussionCategories"`
		} `json:"repository"`
	}
	if err := c.do(ctx, query, map[string]any{"owner": c.owner, "repo": c.repo}, &resp); err != nil {
		return "", fmt.Errorf("failed to resolve repository: %w", err)
	}
	if resp.Repository == nil {
		return "", fmt.Errorf("%w: repository %s/%s", ErrNotFound, c.owner, c.repo)
	}
	if !resp.Repository.HasDiscussionsEnabled {
		return "", fmt.Errorf("discussions are disabled on %s/%s", c.owner, c.repo)
	}
	c.repoID = resp.Repository.ID

	for _, node := range resp.Repository.DiscussionCategories.Nodes {
		if node.Name == category {
			c.log.Info().Str("category", category).Str("category_id", node.ID).Msg("Resolved discussion category")
			return node.ID, nil
		}
	}
	return "", fmt.Errorf("%w: discussion category %q", ErrNotFound, category)
}
