// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"encoding/json"
	"fmt"
)

// gatewayThread is the subset of Discord's THREAD_CREATE payload the bridge
// consumes.
type gatewayThread struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
	OwnerID  string `json:"owner_id"`
}

// gatewayMessage is the subset of Discord's MESSAGE_CREATE payload the
// bridge consumes.
type gatewayMessage struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	Author    *struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Bot      bool   `json:"bot"`
	} `json:"author"`
}

// HandleGatewayEvent routes a Discord gateway dispatch to the orchestrator.
// Only THREAD_CREATE and MESSAGE_CREATE are mirrored; everything else is a
// no-op. Recognized events with missing expected fields are errors.
func (b *Bridge) HandleGatewayEvent(ctx context.Context, eventType string, data json.RawMessage) error {
	switch eventType {
	case "THREAD_CREATE":
		return b.handleThreadCreate(ctx, data)
	case "MESSAGE_CREATE":
		return b.handleMessageCreate(ctx, data)
	default:
		return nil
	}
}

func (b *Bridge) handleThreadCreate(ctx context.Context, data json.RawMessage) error {
	var t gatewayThread
	if err := json.Unmarshal(data, &t); err != nil {
		return fmt.Errorf("failed to parse THREAD_CREATE: %w", err)
	}
	if t.ID == "" {
		return fmt.Errorf("THREAD_CREATE missing thread id")
	}
	if t.ParentID != b.cfg.Discord.ForumChannelID {
		return nil
	}
	// Echo prevention: Discord echoes THREAD_CREATE for threads the bridge
	// itself creates, while the marker stamp on the discussion may still be
	// in flight. Syncing that echo would create a duplicate discussion.
	if t.OwnerID == b.cfg.Discord.BotUserID {
		b.log.Debug().Str("thread_id", t.ID).Msg("Skipping own thread creation (echo prevention)")
		return nil
	}

	b.log.Debug().Str("thread_id", t.ID).Str("name", t.Name).Msg("Received new forum thread")
	return b.SyncThread(ctx, Thread{ID: t.ID, Name: t.Name})
}

func (b *Bridge) handleMessageCreate(ctx context.Context, data json.RawMessage) error {
	var m gatewayMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to parse MESSAGE_CREATE: %w", err)
	}
	if m.ID == "" || m.ChannelID == "" {
		return fmt.Errorf("MESSAGE_CREATE missing identifiers")
	}

	// Echo prevention: never mirror the bridge's own messages.
	if m.Author != nil && m.Author.ID == b.cfg.Discord.BotUserID {
		return nil
	}
	// Echo prevention: never re-mirror content that already carries the
	// attribution header.
	if IsMirrored(m.Content) {
		b.log.Debug().Str("message_id", m.ID).Msg("Skipping mirrored message (echo prevention)")
		return nil
	}

	// MESSAGE_CREATE carries no parent channel, so membership in the bridged
	// forum is decided against the threads seen so far, refreshing the set
	// once on a miss for threads that predate this process. Channels a
	// refresh proved are not forum threads are remembered so ordinary guild
	// messages never trigger repeated listings.
	th, ok := b.lookupThread(m.ChannelID)
	if !ok {
		if b.knownNonThread(m.ChannelID) {
			return nil
		}
		if _, err := b.listThreads(ctx); err != nil {
			return fmt.Errorf("failed to refresh thread set: %w", err)
		}
		th, ok = b.lookupThread(m.ChannelID)
		if !ok {
			b.rememberNonThread(m.ChannelID)
			return nil
		}
	}

	b.log.Debug().Str("thread_id", th.ID).Str("message_id", m.ID).Msg("Received new thread message")
	return b.SyncThread(ctx, th)
}
