// Copyright 2024-2026 Aiku AI

package bridge

import (
	"github.com/aiku/discussion-bridge/pkg/bridge/discordfmt"
	"github.com/aiku/discussion-bridge/pkg/bridge/githubfmt"
)

// renderOutbound turns a native message body into the exact string posted on
// the other platform: attribution header, then the direction's image
// normalization, then the length clamp. The image transforms are not
// idempotent, so this is the only place they may be invoked.
func renderOutbound(dir Direction, author, backlink, body string, maxLen int) string {
	header := BuildHeader(dir, author, backlink)
	var normalized string
	if dir == DirectionToDiscussion {
		normalized = githubfmt.Render(body)
	} else {
		normalized = discordfmt.Render(body)
	}
	return ClampLength(header, normalized, maxLen)
}
