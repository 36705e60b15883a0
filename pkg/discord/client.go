// Copyright 2024-2026 Aiku AI

// Package discord implements the chat side of the bridge's collaborator
// contract against the Discord REST API, plus the gateway connection that
// delivers live thread and message events.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/discussion-bridge/pkg/bridge"
)

const defaultBaseURL = "https://discord.com/api/v10"

// Distinguishable failure classes. Everything else is transient and wrapped.
var (
	ErrNotFound   = errors.New("discord: not found")
	ErrPermission = errors.New("discord: permission denied")
)

// Client talks to the Discord REST API as a bot in one guild.
type Client struct {
	baseURL string
	token   string
	guildID string
	http    *http.Client
	log     zerolog.Logger
}

// Compile-time assertion that Client satisfies the core's chat contract.
var _ bridge.ChatAPI = (*Client)(nil)

// NewClient builds a REST client for the guild authenticated with the bot
// token.
func NewClient(token, guildID string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		token:   token,
		guildID: guildID,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("component", "discord").Logger(),
	}
}

// SetBaseURL overrides the REST base URL (tests).
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// do performs one REST call and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s %s", ErrPermission, method, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("request failed: %s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// threadNode is Discord's channel object for threads, reduced to what the
// bridge reads.
type threadNode struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
	Metadata *struct {
		ArchiveTimestamp string `json:"archive_timestamp"`
	} `json:"thread_metadata"`
}

// messageNode is Discord's message object, reduced to what the bridge reads.
type messageNode struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Author  *struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"author"`
}

// ListThreads returns the forum channel's threads, active and archived.
func (c *Client) ListThreads(ctx context.Context, channelID string) ([]bridge.Thread, error) {
	var out []bridge.Thread
	seen := make(map[string]bool)

	var active struct {
		Threads []threadNode `json:"threads"`
	}
	if err := c.do(ctx, http.MethodGet, "/guilds/"+c.guildID+"/threads/active", nil, &active); err != nil {
		return nil, fmt.Errorf("failed to list active threads: %w", err)
	}
	for _, t := range active.Threads {
		if t.ParentID == channelID && !seen[t.ID] {
			seen[t.ID] = true
			out = append(out, bridge.Thread{ID: t.ID, Name: t.Name})
		}
	}

	before := ""
	for {
		path := "/channels/" + channelID + "/threads/archived/public?limit=100"
		if before != "" {
			path += "&before=" + url.QueryEscape(before)
		}
		var archived struct {
			Threads []threadNode `json:"threads"`
			HasMore bool         `json:"has_more"`
		}
		if err := c.do(ctx, http.MethodGet, path, nil, &archived); err != nil {
			return nil, fmt.Errorf("failed to list archived threads: %w", err)
		}
		for _, t := range archived.Threads {
			if !seen[t.ID] {
				seen[t.ID] = true
				out = append(out, bridge.Thread{ID: t.ID, Name: t.Name})
			}
			if t.Metadata != nil {
				before = t.Metadata.ArchiveTimestamp
			}
		}
		if !archived.HasMore || len(archived.Threads) == 0 {
			return out, nil
		}
	}
}

// ListThreadMessages returns the thread's messages oldest-first, excluding
// the seed message. In forum threads the seed shares the thread's ID, which
// is how it is recognized and dropped here.
func (c *Client) ListThreadMessages(ctx context.Context, threadID string) ([]bridge.Message, error) {
	var out []bridge.Message
	after := "0"
	for {
		path := "/channels/" + threadID + "/messages?limit=100&after=" + after
		var page []messageNode
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list thread messages: %w", err)
		}
		if len(page) == 0 {
			return out, nil
		}
		// Discord returns newest-first even with "after"; walk backwards.
		for i := len(page) - 1; i >= 0; i-- {
			node := page[i]
			if node.ID == threadID {
				continue
			}
			out = append(out, c.toMessage(threadID, node, len(out)))
		}
		after = page[0].ID
		if len(page) < 100 {
			return out, nil
		}
	}
}

// FetchSeedMessage returns the thread's starter message, used once while
// creating a counterpart discussion and excluded from every listing.
func (c *Client) FetchSeedMessage(ctx context.Context, threadID string) (bridge.Message, error) {
	var node messageNode
	if err := c.do(ctx, http.MethodGet, "/channels/"+threadID+"/messages/"+threadID, nil, &node); err != nil {
		return bridge.Message{}, fmt.Errorf("failed to fetch seed message: %w", err)
	}
	return c.toMessage(threadID, node, 0), nil
}

// CreateThread creates a forum thread with the given seed body.
func (c *Client) CreateThread(ctx context.Context, channelID, name, seedBody string) (bridge.Thread, error) {
	// Forum thread names cap at 100 characters.
	if runes := []rune(name); len(runes) > 100 {
		name = string(runes[:100])
	}
	req := map[string]any{
		"name":    name,
		"message": map[string]any{"content": seedBody},
	}
	var resp threadNode
	if err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/threads", req, &resp); err != nil {
		return bridge.Thread{}, fmt.Errorf("failed to create thread: %w", err)
	}
	return bridge.Thread{ID: resp.ID, Name: resp.Name}, nil
}

// SendThreadMessage posts one message to the thread and returns its ID.
func (c *Client) SendThreadMessage(ctx context.Context, threadID, body string) (string, error) {
	var resp messageNode
	if err := c.do(ctx, http.MethodPost, "/channels/"+threadID+"/messages", map[string]any{"content": body}, &resp); err != nil {
		return "", fmt.Errorf("failed to send thread message: %w", err)
	}
	return resp.ID, nil
}

func (c *Client) toMessage(threadID string, node messageNode, position int) bridge.Message {
	msg := bridge.Message{
		ID:       node.ID,
		Text:     node.Content,
		Mirrored: bridge.IsMirrored(node.Content),
		Position: position,
		Link:     fmt.Sprintf("https://discord.com/channels/%s/%s/%s", c.guildID, threadID, node.ID),
	}
	if node.Author != nil {
		msg.Author = node.Author.Username
	}
	return msg
}
