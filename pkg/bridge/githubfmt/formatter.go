// Copyright 2024-2026 Aiku AI

// Package githubfmt rewrites Discord message bodies for GitHub.
//
// GitHub does not auto-embed bare image URLs the way Discord does, so the
// transform wraps bare image URLs and HTML image tags into markdown image
// syntax. URLs already inside markdown image or link syntax are left alone.
//
// Render is not idempotent with respect to discordfmt: callers must apply it
// exactly once per outbound message.
package githubfmt

import (
	"regexp"
	"strconv"
	"strings"
)

// genericAlt labels images whose source carried no alt text.
const genericAlt = "image"

var (
	// Existing markdown images and links are protected from re-wrapping.
	mdLinkRe = regexp.MustCompile(`!?\[[^\]]*\]\([^)]*\)`)

	htmlImgAltSrcRe = regexp.MustCompile(`(?is)<img\b[^>]*?\balt\s*=\s*['"]([^'"]*)['"][^>]*?\bsrc\s*=\s*['"]([^'"]+)['"][^>]*?/?>`)
	htmlImgSrcAltRe = regexp.MustCompile(`(?is)<img\b[^>]*?\bsrc\s*=\s*['"]([^'"]+)['"][^>]*?\balt\s*=\s*['"]([^'"]*)['"][^>]*?/?>`)
	htmlImgSrcRe    = regexp.MustCompile(`(?is)<img\b[^>]*?\bsrc\s*=\s*['"]([^'"]+)['"][^>]*?/?>`)

	bareImageURLRe = regexp.MustCompile(`https?://\S+?\.(?:png|jpe?g|gif|webp)(?:\?\S*)?|https://(?:cdn|media)\.discordapp\.(?:com|net)/attachments/\S+`)
)

// Render converts a Discord message body into a GitHub comment body.
func Render(body string) string {
	if body == "" {
		return ""
	}

	var protected []string
	protect := func(span string) string {
		idx := len(protected)
		protected = append(protected, span)
		return "\x00MDLINK" + strconv.Itoa(idx) + "\x00"
	}

	// Step 1: extract existing markdown images/links into placeholders so
	// their URLs are never wrapped a second time.
	out := mdLinkRe.ReplaceAllStringFunc(body, protect)

	// Step 2: HTML image tags become markdown images, using the alt text as
	// label when present. Results are protected immediately so step 3 never
	// wraps their URLs again.
	out = htmlImgAltSrcRe.ReplaceAllStringFunc(out, func(match string) string {
		parts := htmlImgAltSrcRe.FindStringSubmatch(match)
		return protect(mdImage(parts[1], parts[2]))
	})
	out = htmlImgSrcAltRe.ReplaceAllStringFunc(out, func(match string) string {
		parts := htmlImgSrcAltRe.FindStringSubmatch(match)
		return protect(mdImage(parts[2], parts[1]))
	})
	out = htmlImgSrcRe.ReplaceAllStringFunc(out, func(match string) string {
		parts := htmlImgSrcRe.FindStringSubmatch(match)
		return protect(mdImage("", parts[1]))
	})

	// Step 3: bare image URLs become markdown images.
	out = bareImageURLRe.ReplaceAllString(out, "!["+genericAlt+"]($0)")

	// Step 4: restore protected spans.
	for i, span := range protected {
		out = strings.Replace(out, "\x00MDLINK"+strconv.Itoa(i)+"\x00", span, 1)
	}
	return out
}

func mdImage(alt, src string) string {
	if strings.TrimSpace(alt) == "" {
		alt = genericAlt
	}
	return "![" + alt + "](" + src + ")"
}
