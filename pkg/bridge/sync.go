// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.mau.fi/util/random"
)

// Bridge is the sync orchestrator. It owns the collaborator clients, the
// process-lifetime discussion cache, per-pair locking, and write pacing.
// Construct one at startup with New and thread it through every trigger;
// there is no ambient package state.
type Bridge struct {
	cfg        *Config
	forum      ForumAPI
	chat       ChatAPI
	categoryID string
	log        zerolog.Logger
	pacer      Pacer

	locks pairLocks

	// cacheMu guards the discussion listing cache. The cache is a snapshot
	// taken on first read and only ever grows by discussions the bridge
	// itself creates or re-stamps; it is never refreshed otherwise.
	cacheMu         sync.Mutex
	cacheLoaded     bool
	discussionCache []Discussion

	// threadMu guards knownThreads and nonThreads. knownThreads is the set
	// of forum threads seen so far; the gateway handler uses it to tell
	// thread messages apart from unrelated channel traffic. nonThreads
	// remembers channel IDs that a refresh proved are not forum threads, so
	// ordinary guild chatter triggers at most one refresh per channel.
	threadMu     sync.Mutex
	knownThreads map[string]Thread
	nonThreads   map[string]bool
}

// New builds a Bridge. categoryID must already be resolved; resolution
// failures are fatal at startup and never reach this constructor.
func New(cfg *Config, forum ForumAPI, chat ChatAPI, categoryID string, log zerolog.Logger) *Bridge {
	return &Bridge{
		cfg:          cfg,
		forum:        forum,
		chat:         chat,
		categoryID:   categoryID,
		log:          log.With().Str("component", "bridge").Logger(),
		pacer:        cfg.Pacer(),
		knownThreads: make(map[string]Thread),
		nonThreads:   make(map[string]bool),
	}
}

// SetPacer replaces the configured pacing policy. Call before serving
// triggers.
func (b *Bridge) SetPacer(p Pacer) {
	b.pacer = p
}

// SyncAll runs the startup reconciliation: every discussion in the category,
// then every thread in the forum channel, sequentially. Per-pair failures
// are logged and skipped; only the top-level listings can fail the pass.
func (b *Bridge) SyncAll(ctx context.Context) error {
	discussions, err := b.cachedDiscussions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list discussions: %w", err)
	}
	for _, d := range discussions {
		if err := b.SyncDiscussion(ctx, d); err != nil {
			b.log.Error().Err(err).Int("discussion", d.Number).Msg("Failed to sync discussion, continuing")
		}
	}

	threads, err := b.listThreads(ctx)
	if err != nil {
		return fmt.Errorf("failed to list threads: %w", err)
	}
	for _, th := range threads {
		if err := b.SyncThread(ctx, th); err != nil {
			b.log.Error().Err(err).Str("thread_id", th.ID).Msg("Failed to sync thread, continuing")
		}
	}

	b.log.Info().Int("discussions", len(discussions)).Int("threads", len(threads)).Msg("Startup reconciliation complete")
	return nil
}

// SyncDiscussion brings the pair containing d back into lockstep, creating
// the counterpart thread when the discussion is unlinked.
func (b *Bridge) SyncDiscussion(ctx context.Context, d Discussion) error {
	log := b.log.With().Str("pass_id", random.String(8)).Int("discussion", d.Number).Logger()

	key := "discussion:" + d.ID
	if tid, ok := ExtractLinkedThreadID(d.Body); ok {
		key = "thread:" + tid
	}
	release := b.locks.acquire(key)
	defer release()

	threads, err := b.listThreads(ctx)
	if err != nil {
		return fmt.Errorf("failed to list threads: %w", err)
	}

	th, linked := ResolveThread(d, threads)
	if !linked {
		if tid, ok := ExtractLinkedThreadID(d.Body); ok {
			// Dangling marker. Creating a fresh counterpart risks a
			// duplicate if the old thread reappears; warn so the operator
			// can tell the two apart.
			log.Warn().Str("thread_id", tid).Msg("Link marker points at a missing thread, creating a new counterpart")
		}
		th, err = b.createThreadFor(ctx, log, d)
		if err != nil {
			return err
		}
		if th.ID == "" {
			// Dry run stops here: there is no thread to diff against.
			return nil
		}
	}
	return b.catchUp(ctx, log, d, th)
}

// SyncThread brings the pair containing th back into lockstep, creating the
// counterpart discussion when the thread is unlinked.
func (b *Bridge) SyncThread(ctx context.Context, th Thread) error {
	log := b.log.With().Str("pass_id", random.String(8)).Str("thread_id", th.ID).Logger()

	release := b.locks.acquire("thread:" + th.ID)
	defer release()
	b.rememberThread(th)

	discussions, err := b.cachedDiscussions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list discussions: %w", err)
	}

	d, linked := ResolveDiscussion(th.ID, discussions)
	if !linked {
		d, err = b.createDiscussionFor(ctx, log, th)
		if err != nil {
			return err
		}
		if d.ID == "" {
			return nil
		}
	}
	return b.catchUp(ctx, log, d, th)
}

// createThreadFor creates the counterpart thread for an unlinked discussion,
// then stamps the link marker onto the discussion body. The stamp is a
// second, separate write: a crash between the two leaves a thread no marker
// points at, which the next pass will not recognize.
func (b *Bridge) createThreadFor(ctx context.Context, log zerolog.Logger, d Discussion) (Thread, error) {
	// Any marker in the body (dangling or otherwise) is bridge plumbing and
	// must not leak into the thread's seed.
	seedBody := linkMarkerRe.ReplaceAllString(d.Body, "")
	seed := renderOutbound(DirectionToThread, d.Author, d.URL, seedBody, b.cfg.Limits.ThreadMessageMax)

	if b.cfg.DryRun {
		log.Info().Str("title", d.Title).Msg("Dry run: would create thread and stamp link marker")
		return Thread{}, nil
	}

	th, err := b.chat.CreateThread(ctx, b.cfg.Discord.ForumChannelID, d.Title, seed)
	if err != nil {
		return Thread{}, fmt.Errorf("failed to create thread: %w", err)
	}
	b.rememberThread(th)
	b.pacer.Pace(ctx)

	d.Body = StampLinkMarker(d.Body, th.ID)
	if err := b.forum.UpdateDiscussionBody(ctx, d.ID, d.Body); err != nil {
		return Thread{}, fmt.Errorf("failed to stamp link marker: %w", err)
	}
	b.updateCachedDiscussion(d)
	b.pacer.Pace(ctx)

	log.Info().Str("thread_id", th.ID).Str("title", d.Title).Msg("Created counterpart thread")
	return th, nil
}

// createDiscussionFor creates the counterpart discussion for an unlinked
// thread from its seed message. The marker is embedded in the creation body,
// so linking is atomic in this direction.
func (b *Bridge) createDiscussionFor(ctx context.Context, log zerolog.Logger, th Thread) (Discussion, error) {
	seed, err := b.chat.FetchSeedMessage(ctx, th.ID)
	if err != nil {
		return Discussion{}, fmt.Errorf("failed to fetch seed message: %w", err)
	}

	// A bridge-authored seed means this thread is itself a counterpart whose
	// marker stamp has not landed yet. Creating a discussion for it would
	// duplicate the pair; leave it for the stamping pass to finish.
	if IsMirrored(seed.Text) {
		log.Debug().Msg("Seed message is bridge-authored, skipping counterpart creation")
		return Discussion{}, nil
	}

	marker := LinkMarker(th.ID)
	// Clamp below the ceiling so appending the marker can never overflow.
	body := renderOutbound(DirectionToDiscussion, seed.Author, seed.Link, seed.Text, b.cfg.Limits.CommentMax-len(marker)-2)
	body = body + "\n\n" + marker

	if b.cfg.DryRun {
		log.Info().Str("title", th.Name).Msg("Dry run: would create discussion with embedded link marker")
		return Discussion{}, nil
	}

	d, err := b.forum.CreateDiscussion(ctx, b.categoryID, th.Name, body)
	if err != nil {
		return Discussion{}, fmt.Errorf("failed to create discussion: %w", err)
	}
	d.Body = body
	b.appendCachedDiscussion(d)
	b.pacer.Pace(ctx)

	log.Info().Int("discussion", d.Number).Str("title", th.Name).Msg("Created counterpart discussion")
	return d, nil
}

// catchUp is the shared message catch-up step: list both sides, diff, and
// push the surplus one message at a time, oldest first. The first push
// failure aborts the pass; the next trigger recomputes the diff and resumes
// where the counts left off.
func (b *Bridge) catchUp(ctx context.Context, log zerolog.Logger, d Discussion, th Thread) error {
	comments, err := b.forum.ListComments(ctx, d.Number)
	if err != nil {
		return fmt.Errorf("failed to list comments: %w", err)
	}
	messages, err := b.chat.ListThreadMessages(ctx, th.ID)
	if err != nil {
		return fmt.Errorf("failed to list thread messages: %w", err)
	}

	dir, surplus := Diff(comments, messages)
	if dir == DirectionNone {
		log.Debug().Int("count", len(comments)).Msg("Pair already in sync")
		return nil
	}

	log.Info().
		Stringer("direction", dir).
		Int("surplus", len(surplus)).
		Int("comments", len(comments)).
		Int("messages", len(messages)).
		Msg("Pushing surplus messages")

	for _, msg := range surplus {
		maxLen := b.cfg.Limits.ThreadMessageMax
		if dir == DirectionToDiscussion {
			maxLen = b.cfg.Limits.CommentMax
		}
		rendered := renderOutbound(dir, msg.Author, msg.Link, msg.Text, maxLen)

		if b.cfg.DryRun {
			log.Info().
				Stringer("direction", dir).
				Str("message_id", msg.ID).
				Int("position", msg.Position).
				Msg("Dry run: would push message")
			continue
		}

		if dir == DirectionToThread {
			if _, err := b.chat.SendThreadMessage(ctx, th.ID, rendered); err != nil {
				return fmt.Errorf("failed to push comment %s to thread: %w", msg.ID, err)
			}
		} else {
			if _, err := b.forum.AddComment(ctx, d.ID, rendered); err != nil {
				return fmt.Errorf("failed to push message %s to discussion: %w", msg.ID, err)
			}
		}
		b.pacer.Pace(ctx)
	}
	return nil
}

// cachedDiscussions returns the process-lifetime snapshot of the category's
// discussions, fetching it on first call. The snapshot is never invalidated;
// only bridge-created discussions are appended after the fact.
func (b *Bridge) cachedDiscussions(ctx context.Context) ([]Discussion, error) {
	b.cacheMu.Lock()
	defer b.cacheMu.Unlock()
	if !b.cacheLoaded {
		discussions, err := b.forum.ListDiscussions(ctx, b.categoryID)
		if err != nil {
			return nil, err
		}
		b.discussionCache = discussions
		b.cacheLoaded = true
		b.log.Info().Int("count", len(discussions)).Msg("Populated discussion cache")
	}
	out := make([]Discussion, len(b.discussionCache))
	copy(out, b.discussionCache)
	return out, nil
}

func (b *Bridge) appendCachedDiscussion(d Discussion) {
	b.cacheMu.Lock()
	defer b.cacheMu.Unlock()
	if b.cacheLoaded {
		b.discussionCache = append(b.discussionCache, d)
	}
}

func (b *Bridge) updateCachedDiscussion(d Discussion) {
	b.cacheMu.Lock()
	defer b.cacheMu.Unlock()
	for i := range b.discussionCache {
		if b.discussionCache[i].ID == d.ID {
			b.discussionCache[i] = d
			return
		}
	}
	if b.cacheLoaded {
		b.discussionCache = append(b.discussionCache, d)
	}
}

// listThreads lists the forum channel's threads and records them for the
// gateway handler's thread lookup.
func (b *Bridge) listThreads(ctx context.Context) ([]Thread, error) {
	threads, err := b.chat.ListThreads(ctx, b.cfg.Discord.ForumChannelID)
	if err != nil {
		return nil, err
	}
	b.threadMu.Lock()
	for _, th := range threads {
		b.knownThreads[th.ID] = th
	}
	b.threadMu.Unlock()
	return threads, nil
}

func (b *Bridge) rememberThread(th Thread) {
	b.threadMu.Lock()
	b.knownThreads[th.ID] = th
	b.threadMu.Unlock()
}

func (b *Bridge) lookupThread(id string) (Thread, bool) {
	b.threadMu.Lock()
	th, ok := b.knownThreads[id]
	b.threadMu.Unlock()
	return th, ok
}

func (b *Bridge) knownNonThread(id string) bool {
	b.threadMu.Lock()
	defer b.threadMu.Unlock()
	return b.nonThreads[id]
}

func (b *Bridge) rememberNonThread(id string) {
	b.threadMu.Lock()
	b.nonThreads[id] = true
	b.threadMu.Unlock()
}
