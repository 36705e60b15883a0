// Copyright 2024-2026 Aiku AI

package bridge

import "context"

// Discussion is a GitHub discussion in the bridged category. Body is the
// only field that persists linkage state (see the link marker in linker.go).
type Discussion struct {
	ID       string
	Number   int
	Title    string
	Body     string
	Author   string
	Category string
	URL      string
}

// Thread is a Discord forum thread.
type Thread struct {
	ID   string
	Name string
}

// Message is the unified view of a discussion comment or a thread message
// used by the diff and transform layers.
type Message struct {
	ID     string
	Author string
	Text   string
	// Mirrored marks messages produced by the bridge itself rather than
	// authored natively on the platform.
	Mirrored bool
	// Position is the index in the oldest-first sequence.
	Position int
	// Link is a URL pointing back at the originating message, used for the
	// attribution header of its mirror.
	Link string
}

// ForumAPI is the narrow GitHub Discussions contract the core consumes.
// ListComments returns comments oldest-first.
type ForumAPI interface {
	ListDiscussions(ctx context.Context, categoryID string) ([]Discussion, error)
	ListComments(ctx context.Context, number int) ([]Message, error)
	CreateDiscussion(ctx context.Context, categoryID, title, body string) (Discussion, error)
	AddComment(ctx context.Context, discussionID, body string) (string, error)
	UpdateDiscussionBody(ctx context.Context, discussionID, body string) error
}

// ChatAPI is the narrow Discord contract the core consumes. ListThreadMessages
// returns messages oldest-first with the thread's seed message excluded; the
// seed is only reachable through FetchSeedMessage and is consumed once while
// creating a counterpart discussion.
type ChatAPI interface {
	ListThreads(ctx context.Context, channelID string) ([]Thread, error)
	ListThreadMessages(ctx context.Context, threadID string) ([]Message, error)
	FetchSeedMessage(ctx context.Context, threadID string) (Message, error)
	CreateThread(ctx context.Context, channelID, name, seedBody string) (Thread, error)
	SendThreadMessage(ctx context.Context, threadID, body string) (string, error)
}
