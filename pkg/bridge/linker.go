// Copyright 2024-2026 Aiku AI

package bridge

import (
	"fmt"
	"regexp"
	"strings"
)

// linkMarkerRe matches the marker embedded in discussion bodies. Thread IDs
// are Discord snowflakes, so the target is always a digit run.
var linkMarkerRe = regexp.MustCompile(`<!--\s*Link:\s*(\d+)\s*-->`)

// LinkMarker renders the marker that ties a discussion body to threadID.
// At most one marker may appear per body.
func LinkMarker(threadID string) string {
	return fmt.Sprintf("<!-- Link:%s -->", threadID)
}

// ExtractLinkedThreadID returns the thread ID referenced by the first link
// marker in body, or ("", false) when no well-formed marker is present.
func ExtractLinkedThreadID(body string) (string, bool) {
	m := linkMarkerRe.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// StampLinkMarker returns body with a marker for threadID appended. Any
// existing marker is removed first, keeping the one-marker-per-body
// invariant when a dangling link is re-stamped.
func StampLinkMarker(body, threadID string) string {
	body = linkMarkerRe.ReplaceAllString(body, "")
	body = strings.TrimRight(body, " \n")
	return body + "\n\n" + LinkMarker(threadID)
}

// ResolveThread returns the thread the discussion's marker points at.
// A missing marker, or a marker referencing a thread that is not in threads
// (dangling), resolves as unlinked. Lookup is a linear scan; fine at
// category scale, revisit before pointing this at thousands of threads.
func ResolveThread(discussion Discussion, threads []Thread) (Thread, bool) {
	id, ok := ExtractLinkedThreadID(discussion.Body)
	if !ok {
		return Thread{}, false
	}
	for _, th := range threads {
		if th.ID == id {
			return th, true
		}
	}
	return Thread{}, false
}

// ResolveDiscussion returns the discussion whose body carries a marker
// referencing threadID, or unlinked when none does.
func ResolveDiscussion(threadID string, discussions []Discussion) (Discussion, bool) {
	for _, d := range discussions {
		if id, ok := ExtractLinkedThreadID(d.Body); ok && id == threadID {
			return d, true
		}
	}
	return Discussion{}, false
}
