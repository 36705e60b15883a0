// Copyright 2024-2026 Aiku AI

package bridge

import (
	"fmt"
	"strings"
)

// MirrorPrefix starts every message the bridge posts on either platform.
// The gateway and webhook handlers use it to detect already-mirrored content,
// so its value must stay stable across releases.
const MirrorPrefix = "\U0001f501 "

// truncationNote is appended to a clamped body so readers know to follow
// the attribution link for the rest.
const truncationNote = "\n\n*(message truncated, follow the link above for the full text)*"

// platform labels used in attribution headers.
const (
	labelGitHub  = "GitHub"
	labelDiscord = "Discord"
)

// BuildHeader renders the attribution line for a message pushed in the given
// direction. The line names the source platform and author and links back to
// the originating message. It always ends with a blank line separating it
// from the body.
func BuildHeader(dir Direction, author, backlink string) string {
	source := labelGitHub
	if dir == DirectionToDiscussion {
		source = labelDiscord
	}
	if author == "" {
		author = "unknown"
	}
	if backlink == "" {
		return fmt.Sprintf("%s**%s** on %s:\n\n", MirrorPrefix, author, source)
	}
	return fmt.Sprintf("%s**%s** on [%s](%s):\n\n", MirrorPrefix, author, source, backlink)
}

// IsMirrored reports whether text was produced by the bridge, judged by the
// attribution prefix.
func IsMirrored(text string) bool {
	return strings.HasPrefix(text, MirrorPrefix)
}

// ClampLength joins header and body, truncating the body (never the header)
// so the result fits the target platform's per-message ceiling. A truncation
// note is appended if and only if the body was cut. The function always
// returns a string no longer than max, including for empty input and
// non-positive ceilings; if the header alone exceeds max, the header itself
// is hard-cut as a last resort.
func ClampLength(header, body string, max int) string {
	if max <= 0 {
		return ""
	}
	full := header + body
	if len([]rune(full)) <= max {
		return full
	}

	headerRunes := []rune(header)
	noteRunes := []rune(truncationNote)
	budget := max - len(headerRunes) - len(noteRunes)
	if budget < 0 {
		// Degenerate ceiling smaller than the header. Nothing sensible to
		// preserve; hard-cut so the call still succeeds.
		if len(headerRunes) > max {
			return string(headerRunes[:max])
		}
		return header
	}

	bodyRunes := []rune(body)
	if budget > len(bodyRunes) {
		budget = len(bodyRunes)
	}
	return header + string(bodyRunes[:budget]) + truncationNote
}
