// Copyright 2024-2026 Aiku AI

package github

import (
	"context"
	"fmt"

	"github.com/aiku/discussion-bridge/pkg/bridge"
)

// pageSize is the GraphQL page size for listings.
const pageSize = 100

// Compile-time assertion that Client satisfies the core's forum contract.
var _ bridge.ForumAPI = (*Client)(nil)

// ListDiscussions returns every discussion in the category, oldest first.
func (c *Client) ListDiscussions(ctx context.Context, categoryID string) ([]bridge.Discussion, error) {
	const query = `
query($owner: String!, $repo: String!, $category: ID!, $first: Int!, $after: String) {
  repository(owner: $owner, name: $repo) {
    discussions(categoryId: $category, first: $first, after: $after, orderBy: {field: CREATED_AT, direction: ASC}) {
      pageInfo { hasNextPage endCursor }
      nodes {
        id
        number
        title
        body
        url
        author { login }
        category { name }
      }
    }
  }
}`

	var out []bridge.Discussion
	var after *string
	for {
		var resp struct {
			Repository struct {
				Discussions struct {
					PageInfo struct {
						HasNextPage bool   `json:"hasNextPage"`
						EndCursor   string `json:"endCursor"`
					} `json:"pageInfo"`
					Nodes []struct {
						ID     string `json:"id"`
						Number int    `json:"number"`
						Title  string `json:"title"`
						Body   string `json:"body"`
						URL    string `json:"url"`
						Author *struct {
							Login string `json:"login"`
						} `json:"author"`
						Category *struct {
							Name string `json:"name"`
						} `json:"category"`
					} `json:"nodes"`
				} `json:"discussions"`
			} `json:"repository"`
		}
		vars := map[string]any{
			"owner": c.owner, "repo": c.repo,
			"category": categoryID, "first": pageSize, "after": after,
		}
		if err := c.do(ctx, query, vars, &resp); err != nil {
			return nil, fmt.Errorf("failed to list discussions: %w", err)
		}

		for _, node := range resp.Repository.Discussions.Nodes {
			d := bridge.Discussion{
				ID:     node.ID,
				Number: node.Number,
				Title:  node.Title,
				Body:   node.Body,
				URL:    node.URL,
			}
			if node.Author != nil {
				d.Author = node.Author.Login
			}
			if node.Category != nil {
				d.Category = node.Category.Name
			}
			out = append(out, d)
		}

		if !resp.Repository.Discussions.PageInfo.HasNextPage {
			return out, nil
		}
		cursor := resp.Repository.Discussions.PageInfo.EndCursor
		after = &cursor
	}
}

// ListComments returns the discussion's comments oldest-first as unified
// messages. Mirrored comments are recognized by the attribution prefix.
func (c *Client) ListComments(ctx context.Context, number int) ([]bridge.Message, error) {
	const query = `
query($owner: String!, $repo: String!, $number: Int!, $first: Int!, $after: String) {
  repository(owner: $owner, name: $repo) {
    discussion(number: $number) {
      comments(first: $first, after: $after) {
        pageInfo { hasNextPage endCursor }
        nodes {
          id
          body
          url
          author { login }
        }
      }
    }
  }
}`

	var out []bridge.Message
	var after *string
	for {
		var resp struct {
			Repository struct {
				Discussion *struct {
					Comments struct {
						PageInfo struct {
							HasNextPage bool   `json:"hasNextPage"`
							EndCursor   string `json:"endCursor"`
						} `json:"pageInfo"`
						Nodes []struct {
							ID     string `json:"id"`
							Body   string `json:"body"`
							URL    string `json:"url"`
							Author *struct {
								Login string `json:"login"`
							} `json:"author"`
						} `json:"nodes"`
					} `json:"comments"`
				} `json:"discussion"`
			} `json:"repository"`
		}
		vars := map[string]any{
			"owner": c.owner, "repo": c.repo,
			"number": number, "first": pageSize, "after": after,
		}
		if err := c.do(ctx, query, vars, &resp); err != nil {
			return nil, fmt.Errorf("failed to list comments: %w", err)
		}
		if resp.Repository.Discussion == nil {
			return nil, fmt.Errorf("%w: discussion #%d", ErrNotFound, number)
		}

		for _, node := range resp.Repository.Discussion.Comments.Nodes {
			msg := bridge.Message{
				ID:       node.ID,
				Text:     node.Body,
				Link:     node.URL,
				Mirrored: bridge.IsMirrored(node.Body),
				Position: len(out),
			}
			if node.Author != nil {
				msg.Author = node.Author.Login
			}
			out = append(out, msg)
		}

		if !resp.Repository.Discussion.Comments.PageInfo.HasNextPage {
			return out, nil
		}
		cursor := resp.Repository.Discussion.Comments.PageInfo.EndCursor
		after = &cursor
	}
}

// CreateDiscussion creates a discussion in the category and returns its
// identifiers. Resolve must have succeeded first so the repository ID is
// known.
func (c *Client) CreateDiscussion(ctx context.Context, categoryID, title, body string) (bridge.Discussion, error) {
	if c.repoID == "" {
		return bridge.Discussion{}, fmt.Errorf("repository not resolved")
	}
	const mutation = `
mutation($repo: ID!, $category: ID!, $title: String!, $body: String!) {
  createDiscussion(input: {repositoryId: $repo, categoryId: $category, title: $title, body: $body}) {
    discussion { id number url }
  }
}`
	var resp struct {
		CreateDiscussion struct {
			Discussion struct {
				ID     string `json:"id"`
				Number int    `json:"number"`
				URL    string `json:"url"`
			} `json:"discussion"`
		} `json:"createDiscussion"`
	}
	vars := map[string]any{"repo": c.repoID, "category": categoryID, "title": title, "body": body}
	if err := c.do(ctx, mutation, vars, &resp); err != nil {
		return bridge.Discussion{}, fmt.Errorf("failed to create discussion: %w", err)
	}
	return bridge.Discussion{
		ID:     resp.CreateDiscussion.Discussion.ID,
		Number: resp.CreateDiscussion.Discussion.Number,
		Title:  title,
		Body:   body,
		URL:    resp.CreateDiscussion.Discussion.URL,
	}, nil
}

// AddComment appends a comment to the discussion and returns the comment ID.
func (c *Client) AddComment(ctx context.Context, discussionID, body string) (string, error) {
	const mutation = `
mutation($discussion: ID!, $body: String!) {
  addDiscussionComment(input: {discussionId: $discussion, body: $body}) {
    comment { id }
  }
}`
	var resp struct {
		AddDiscussionComment struct {
			Comment struct {
				ID string `json:"id"`
			} `json:"comment"`
		} `json:"addDiscussionComment"`
	}
	if err := c.do(ctx, mutation, map[string]any{"discussion": discussionID, "body": body}, &resp); err != nil {
		return "", fmt.Errorf("failed to add comment: %w", err)
	}
	return resp.AddDiscussionComment.Comment.ID, nil
}

// UpdateDiscussionBody replaces the discussion's body, used to stamp the
// link marker after counterpart creation.
func (c *Client) UpdateDiscussionBody(ctx context.Context, discussionID, body string) error {
	const mutation = `
mutation($discussion: ID!, $body: String!) {
  updateDiscussion(input: {discussionId: $discussion, body: $body}) {
    discussion { id }
  }
}`
	if err := c.do(ctx, mutation, map[string]any{"discussion": discussionID, "body": body}, nil); err != nil {
		return fmt.Errorf("failed to update discussion body: %w", err)
	}
	return nil
}
