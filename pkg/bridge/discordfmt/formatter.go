// Copyright 2024-2026 Aiku AI

// Package discordfmt rewrites GitHub-flavored discussion bodies for Discord.
//
// Discord renders no markdown image syntax but auto-embeds any image URL that
// stands alone on its own line. The transform therefore unwraps markdown
// images and HTML image tags to bare URLs and newline-isolates GitHub
// attachment URLs so the auto-embed heuristic triggers.
//
// Render is not idempotent with respect to githubfmt: running it over an
// already-converted body can corrupt the markup. Callers must apply it
// exactly once per outbound message.
package discordfmt

import (
	"regexp"
	"strings"
)

var (
	mdImageRe    = regexp.MustCompile(`!\[[^\]]*\]\(\s*([^)\s]+)(?:\s+"[^"]*")?\s*\)`)
	htmlImageRe  = regexp.MustCompile(`(?is)<img\b[^>]*?\bsrc\s*=\s*['"]([^'"]+)['"][^>]*?/?>`)
	attachmentRe = regexp.MustCompile(`https://(?:github\.com/user-attachments/\S+|user-images\.githubusercontent\.com/\S+)`)
	multiBlankRe = regexp.MustCompile(`\n{3,}`)
)

// Render converts a GitHub discussion body or comment body into a Discord
// message body. Each pass produces a new string; nothing is mutated in place.
func Render(body string) string {
	if body == "" {
		return ""
	}

	// Markdown images become the bare URL on its own line.
	out := mdImageRe.ReplaceAllString(body, "\n$1\n")

	// Inline HTML image tags, with or without alt, become the src alone.
	out = htmlImageRe.ReplaceAllString(out, "\n$1\n")

	// GitHub attachment URLs embed only when newline-isolated, even when the
	// author pasted them mid-sentence without any image syntax.
	out = isolateAttachmentURLs(out)

	out = multiBlankRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// isolateAttachmentURLs surrounds every attachment-namespace URL with
// newlines unless it is already at a line boundary. A single left-to-right
// scan builds the result, so later insertions never shift earlier indices.
func isolateAttachmentURLs(s string) string {
	matches := attachmentRe.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*len(matches))
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		b.WriteString(s[last:start])
		if start > 0 && s[start-1] != '\n' {
			b.WriteByte('\n')
		}
		b.WriteString(s[start:end])
		if end < len(s) && s[end] != '\n' {
			b.WriteByte('\n')
		}
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}
