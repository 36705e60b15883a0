// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxWebhookBodySize bounds inbound webhook payloads (1 MB).
const maxWebhookBodySize = 1 << 20

// webhookPayload is the subset of GitHub's discussion webhook payloads the
// bridge consumes. Both recognized event kinds carry the discussion node.
type webhookPayload struct {
	Action     string `json:"action"`
	Discussion *struct {
		NodeID string `json:"node_id"`
		Number int    `json:"number"`
		Title  string `json:"title"`
		Body   string `json:"body"`
		URL    string `json:"html_url"`
		User   *struct {
			Login string `json:"login"`
		} `json:"user"`
		Category *struct {
			Name string `json:"name"`
		} `json:"category"`
	} `json:"discussion"`
}

// Router returns the webhook HTTP handler: the GitHub endpoint plus a
// health check.
func (b *Bridge) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/webhook/github", b.handleGitHubWebhook)
	return r
}

// NewServer wraps the router in an http.Server with sane timeouts.
func (b *Bridge) NewServer() *http.Server {
	return &http.Server{
		Addr:         b.cfg.HTTP.Address(),
		Handler:      b.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// handleGitHubWebhook accepts "discussion" and "discussion_comment" events
// with action "created" and routes both to SyncDiscussion. Unrecognized
// event kinds are acknowledged as no-ops; recognized kinds with missing
// fields fail loudly.
func (b *Bridge) handleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	if !b.verifySignature(body, r.Header.Get("X-Hub-Signature-256")) {
		b.log.Warn().Str("remote_addr", r.RemoteAddr).Msg("Webhook signature verification failed")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	delivery := r.Header.Get("X-GitHub-Delivery")
	if delivery == "" {
		delivery = uuid.NewString()
	}
	event := r.Header.Get("X-GitHub-Event")
	log := b.log.With().Str("delivery", delivery).Str("event", event).Logger()

	switch event {
	case "discussion", "discussion_comment":
	default:
		// Not a kind we mirror. Acknowledge so GitHub does not retry.
		log.Debug().Msg("Ignoring webhook event kind")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error().Err(err).Msg("Failed to parse webhook payload")
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}
	if payload.Action != "created" {
		log.Debug().Str("action", payload.Action).Msg("Ignoring webhook action")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if payload.Discussion == nil || payload.Discussion.NodeID == "" {
		log.Error().Msg("Webhook payload missing discussion node")
		http.Error(w, "missing discussion", http.StatusBadRequest)
		return
	}

	d := Discussion{
		ID:     payload.Discussion.NodeID,
		Number: payload.Discussion.Number,
		Title:  payload.Discussion.Title,
		Body:   payload.Discussion.Body,
		URL:    payload.Discussion.URL,
	}
	if payload.Discussion.User != nil {
		d.Author = payload.Discussion.User.Login
	}
	if payload.Discussion.Category != nil {
		d.Category = payload.Discussion.Category.Name
		if d.Category != b.cfg.GitHub.Category {
			log.Debug().Str("category", d.Category).Msg("Ignoring discussion outside the bridged category")
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	// Sync off the request goroutine; webhook deliveries time out long
	// before a large catch-up finishes. The per-pair lock serializes
	// overlapping deliveries for the same discussion.
	go func() {
		if err := b.SyncDiscussion(context.Background(), d); err != nil {
			log.Error().Err(err).Int("discussion", d.Number).Msg("Webhook-triggered sync failed")
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

// verifySignature checks GitHub's HMAC SHA-256 webhook signature.
func (b *Bridge) verifySignature(body []byte, header string) bool {
	const prefix = "sha256="
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}
	mac := hmac.New(sha256.New, []byte(b.cfg.GitHub.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header[len(prefix):]))
}
