// Copyright 2024-2026 Aiku AI

package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const defaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// Gateway intents: GUILDS, GUILD_MESSAGES, MESSAGE_CONTENT.
const gatewayIntents = 1<<0 | 1<<9 | 1<<15

// Gateway opcodes used by the bridge.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opResume         = 6
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatACK   = 11
)

// EventHandler receives one gateway dispatch. Errors are logged, not fatal.
type EventHandler func(ctx context.Context, eventType string, data json.RawMessage) error

// Gateway maintains the Discord gateway WebSocket: identify, heartbeat,
// resume, and dispatch of events to the handler.
type Gateway struct {
	token   string
	handler EventHandler
	log     zerolog.Logger
	url     string

	mu   sync.Mutex // guards writes to conn
	conn *websocket.Conn

	// seq is written by the read loop and read by the heartbeat goroutine.
	seq       atomic.Int64
	sessionID string
	resumeURL string
}

// NewGateway builds a gateway for the bot token delivering events to handler.
func NewGateway(token string, handler EventHandler, log zerolog.Logger) *Gateway {
	return &Gateway{
		token:   token,
		handler: handler,
		log:     log.With().Str("component", "gateway").Logger(),
		url:     defaultGatewayURL,
	}
}

// SetURL overrides the gateway URL (tests).
func (g *Gateway) SetURL(u string) {
	g.url = u
}

// payload is the gateway frame envelope.
type payload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int64          `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

// Run connects to the gateway and processes events until ctx is cancelled,
// reconnecting with backoff after connection loss.
func (g *Gateway) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := g.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		g.log.Warn().Err(err).Dur("backoff", backoff).Msg("Gateway connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 60*time.Second {
			backoff *= 2
		}
	}
}

// runOnce performs one full connection lifecycle: dial, hello, identify or
// resume, then read until the connection drops.
func (g *Gateway) runOnce(ctx context.Context) error {
	dialURL := g.url
	if g.resumeURL != "" && g.sessionID != "" {
		dialURL = g.resumeURL
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, dialURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial gateway: %w", err)
	}
	defer conn.Close()
	// Reads have no context; closing the connection is the only way to
	// unblock them when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()

	// First frame must be hello with the heartbeat interval.
	var hello payload
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("failed to read hello: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var helloData struct {
		HeartbeatInterval int `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.D, &helloData); err != nil {
		return fmt.Errorf("failed to parse hello: %w", err)
	}

	if g.sessionID != "" {
		err = g.send(payload{Op: opResume, D: mustMarshal(map[string]any{
			"token":      g.token,
			"session_id": g.sessionID,
			"seq":        g.seq.Load(),
		})})
	} else {
		err = g.send(payload{Op: opIdentify, D: mustMarshal(map[string]any{
			"token":   g.token,
			"intents": gatewayIntents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "discussion-bridge",
				"device":  "discussion-bridge",
			},
		})})
	}
	if err != nil {
		return fmt.Errorf("failed to send identify/resume: %w", err)
	}

	hbCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go g.heartbeatLoop(hbCtx, time.Duration(helloData.HeartbeatInterval)*time.Millisecond)

	for {
		var frame payload
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("gateway read failed: %w", err)
		}
		if frame.S != nil {
			g.seq.Store(*frame.S)
		}

		switch frame.Op {
		case opDispatch:
			g.handleDispatch(ctx, frame)
		case opHeartbeat:
			if err := g.sendHeartbeat(); err != nil {
				return err
			}
		case opReconnect:
			return fmt.Errorf("gateway requested reconnect")
		case opInvalidSession:
			g.sessionID = ""
			g.resumeURL = ""
			g.seq.Store(0)
			return fmt.Errorf("gateway invalidated session")
		case opHeartbeatACK:
		default:
			g.log.Trace().Int("op", frame.Op).Msg("Unhandled gateway opcode")
		}
	}
}

func (g *Gateway) handleDispatch(ctx context.Context, frame payload) {
	if frame.T == "READY" {
		var ready struct {
			SessionID string `json:"session_id"`
			ResumeURL string `json:"resume_gateway_url"`
		}
		if err := json.Unmarshal(frame.D, &ready); err == nil {
			g.sessionID = ready.SessionID
			if ready.ResumeURL != "" {
				g.resumeURL = ready.ResumeURL + "/?v=10&encoding=json"
			}
		}
		g.log.Info().Msg("Gateway ready")
		return
	}

	if err := g.handler(ctx, frame.T, frame.D); err != nil {
		g.log.Error().Err(err).Str("event", frame.T).Msg("Gateway event handler failed")
	}
}

func (g *Gateway) heartbeatLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 41250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.sendHeartbeat(); err != nil {
				g.log.Warn().Err(err).Msg("Failed to send heartbeat")
				return
			}
		}
	}
}

func (g *Gateway) sendHeartbeat() error {
	return g.send(payload{Op: opHeartbeat, D: mustMarshal(g.seq.Load())})
}

func (g *Gateway) send(p payload) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return fmt.Errorf("gateway not connected")
	}
	return g.conn.WriteJSON(p)
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
