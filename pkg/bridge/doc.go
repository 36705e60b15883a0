// Copyright 2024-2026 Aiku AI

// Package bridge keeps conversations mirrored between a GitHub Discussions
// category and a Discord forum channel. Each discussion has exactly one
// counterpart thread and vice versa, with their message sequences kept in
// lockstep by webhook and gateway triggers rather than polling.
//
// # Core Types
//
// [Bridge] is the sync orchestrator. Its two entry points,
// [Bridge.SyncDiscussion] and [Bridge.SyncThread], resolve the counterpart
// entity, create it when missing, and then run the shared message catch-up
// step. [Bridge.SyncAll] performs the startup reconciliation pass over every
// known pair.
//
// [Diff] compares the two oldest-first message sequences of a linked pair
// and decides the sync direction plus the exact surplus to push. The diff is
// position-based: it assumes messages are only ever appended, never edited,
// deleted, or reordered.
//
// # Entity Linking
//
// Linkage state lives entirely inside discussion bodies as a marker of the
// form "<!-- Link:<threadID> -->". There is no local database. A missing,
// malformed, or dangling marker is treated as unlinked, never as an error.
//
// # Echo Prevention
//
// Every bridged message starts with the attribution header prefix, and the
// gateway handler drops messages carrying that prefix as well as messages
// authored by the bridge's own user. Both layers are required to prevent
// mirror loops; neither may be removed.
//
// # Sub-packages
//
//   - discordfmt rewrites GitHub-flavored image markup for Discord's
//     bare-URL auto-embedding.
//   - githubfmt rewrites bare image URLs and HTML image tags from Discord
//     into markdown image syntax.
package bridge
