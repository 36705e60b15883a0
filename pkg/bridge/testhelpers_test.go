// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// testConfig returns a config suitable for unit tests: no pacing, small but
// realistic ceilings.
func testConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{Port: 8090},
		GitHub: GitHubConfig{
			Token:         "gh-token",
			Owner:         "example-org",
			Repo:          "example-repo",
			Category:      "General",
			WebhookSecret: "s3cret",
		},
		Discord: DiscordConfig{
			Token:          "bot-token",
			GuildID:        "100",
			ForumChannelID: "500",
			BotUserID:      "900",
		},
		Limits: LimitsConfig{
			ThreadMessageMax: 2000,
			CommentMax:       65536,
		},
	}
}

func newTestBridge(cfg *Config, forum ForumAPI, chat *fakeChat) *Bridge {
	b := New(cfg, forum, chat, "cat-1", zerolog.Nop())
	b.SetPacer(NopPacer())
	return b
}

type addedComment struct {
	DiscussionID string
	Body         string
}

type bodyUpdate struct {
	DiscussionID string
	Body         string
}

// fakeForum is an in-memory ForumAPI recording every mutating call.
type fakeForum struct {
	mu          sync.Mutex
	discussions []Discussion
	comments    map[int][]Message
	nextNumber  int

	listCalls int
	added     []addedComment
	updated   []bodyUpdate
	created   []Discussion

	// failAddAt makes the Nth AddComment call fail (1-based, 0 = never).
	failAddAt int
}

func newFakeForum() *fakeForum {
	return &fakeForum{comments: make(map[int][]Message), nextNumber: 1}
}

func (f *fakeForum) addDiscussion(d Discussion, comments []Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.Number >= f.nextNumber {
		f.nextNumber = d.Number + 1
	}
	f.discussions = append(f.discussions, d)
	f.comments[d.Number] = comments
}

func (f *fakeForum) ListDiscussions(_ context.Context, _ string) ([]Discussion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	out := make([]Discussion, len(f.discussions))
	copy(out, f.discussions)
	return out, nil
}

func (f *fakeForum) ListComments(_ context.Context, number int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.comments[number]))
	copy(out, f.comments[number])
	return out, nil
}

func (f *fakeForum) CreateDiscussion(_ context.Context, _, title, body string) (Discussion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := Discussion{
		ID:     fmt.Sprintf("D_%d", f.nextNumber),
		Number: f.nextNumber,
		Title:  title,
		Body:   body,
	}
	f.nextNumber++
	f.discussions = append(f.discussions, d)
	f.created = append(f.created, d)
	return d, nil
}

func (f *fakeForum) AddComment(_ context.Context, discussionID, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAddAt > 0 && len(f.added)+1 == f.failAddAt {
		return "", fmt.Errorf("simulated comment failure")
	}
	f.added = append(f.added, addedComment{DiscussionID: discussionID, Body: body})
	for _, d := range f.discussions {
		if d.ID == discussionID {
			msgs := f.comments[d.Number]
			f.comments[d.Number] = append(msgs, Message{
				ID:       fmt.Sprintf("C_%d_%d", d.Number, len(msgs)),
				Text:     body,
				Mirrored: true,
				Position: len(msgs),
			})
			break
		}
	}
	return fmt.Sprintf("C_%d", len(f.added)), nil
}

func (f *fakeForum) UpdateDiscussionBody(_ context.Context, discussionID, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, bodyUpdate{DiscussionID: discussionID, Body: body})
	for i := range f.discussions {
		if f.discussions[i].ID == discussionID {
			f.discussions[i].Body = body
			break
		}
	}
	return nil
}

type sentMessage struct {
	ThreadID string
	Body     string
}

// fakeChat is an in-memory ChatAPI recording every mutating call. Message
// listings exclude the seed, matching the real collaborator contract.
type fakeChat struct {
	mu       sync.Mutex
	threads  []Thread
	messages map[string][]Message
	seeds    map[string]Message
	nextID   int

	listCalls int
	sent      []sentMessage
	created   []Thread

	// failSendAt makes the Nth SendThreadMessage call fail (1-based).
	failSendAt int
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		messages: make(map[string][]Message),
		seeds:    make(map[string]Message),
		nextID:   700,
	}
}

func (f *fakeChat) addThread(th Thread, seed Message, messages []Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threads = append(f.threads, th)
	f.seeds[th.ID] = seed
	f.messages[th.ID] = messages
}

func (f *fakeChat) ListThreads(_ context.Context, _ string) ([]Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	out := make([]Thread, len(f.threads))
	copy(out, f.threads)
	return out, nil
}

func (f *fakeChat) ListThreadMessages(_ context.Context, threadID string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.messages[threadID]))
	copy(out, f.messages[threadID])
	return out, nil
}

func (f *fakeChat) FetchSeedMessage(_ context.Context, threadID string) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seed, ok := f.seeds[threadID]
	if !ok {
		return Message{}, fmt.Errorf("no seed for thread %s", threadID)
	}
	return seed, nil
}

func (f *fakeChat) CreateThread(_ context.Context, _, name, seedBody string) (Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	th := Thread{ID: fmt.Sprintf("%d", f.nextID), Name: name}
	f.nextID++
	f.threads = append(f.threads, th)
	f.created = append(f.created, th)
	f.seeds[th.ID] = Message{ID: th.ID, Text: seedBody}
	return th, nil
}

func (f *fakeChat) SendThreadMessage(_ context.Context, threadID, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSendAt > 0 && len(f.sent)+1 == f.failSendAt {
		return "", fmt.Errorf("simulated send failure")
	}
	f.sent = append(f.sent, sentMessage{ThreadID: threadID, Body: body})
	msgs := f.messages[threadID]
	f.messages[threadID] = append(msgs, Message{
		ID:       fmt.Sprintf("M_%s_%d", threadID, len(msgs)),
		Text:     body,
		Mirrored: true,
		Position: len(msgs),
	})
	return fmt.Sprintf("M_%d", len(f.sent)), nil
}

func (f *fakeForum) addedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.added)
}

func (f *fakeForum) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *fakeChat) listCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeChat) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeChat) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}
